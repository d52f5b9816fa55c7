package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yubzen/ballpark/internal/agent"
	"github.com/yubzen/ballpark/internal/config"
	"github.com/yubzen/ballpark/internal/providers"
	"github.com/yubzen/ballpark/internal/state"
	"github.com/yubzen/ballpark/internal/toolschema"
)

// GlobalOptions holds the flags shared by every command.
type GlobalOptions struct {
	ConfigPath string
}

// ErrModelFailed makes `ballpark ask` exit non-zero when the model could not be reached.
var ErrModelFailed = errors.New("language model request failed")

func NewAskCmd(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question without the chat UI",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := Bootstrap(cmd.Context(), opts.ConfigPath)
			if err != nil {
				return err
			}
			defer rt.Close()
			return runAsk(rt.Ctx, cmd.OutOrStdout(), rt.Orchestrator, strings.Join(args, " "))
		},
	}
}

func runAsk(ctx context.Context, out io.Writer, orc *agent.Orchestrator, question string) error {
	turn, err := orc.Ask(ctx, state.NewSession(), question)
	if turn.Query != "" {
		fmt.Fprintf(out, "SQL query:\n%s\n\n", turn.Query)
	}
	if turn.Result != "" {
		fmt.Fprintln(out, turn.Result)
	}
	if turn.Notice != "" {
		fmt.Fprintln(out, turn.Notice)
	}
	if err != nil {
		if turn.Outcome == agent.OutcomeModelError {
			return fmt.Errorf("%w: %w", ErrModelFailed, err)
		}
		return err
	}
	return nil
}

func NewSchemaCmd(opts *GlobalOptions) *cobra.Command {
	var examplesOnly bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the ask_database tool description sent to the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(opts.ConfigPath)
			if err != nil {
				return err
			}
			schema, err := toolschema.Default()
			if cfg.Schema.Path != "" {
				schema, err = toolschema.Load(cfg.Schema.Path)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if examplesOnly {
				for _, ex := range schema.Examples() {
					fmt.Fprintf(out, "%s\n  %s\n", ex.Question, ex.Query)
				}
				return nil
			}
			fmt.Fprintln(out, schema.ParameterDescription())
			return nil
		},
	}
	cmd.Flags().BoolVar(&examplesOnly, "examples", false, "Print only the example question/query pairs")
	return cmd
}

func NewConfigCmd(opts *GlobalOptions) *cobra.Command {
	var initFile bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if initFile {
				return runConfigInit(cmd, opts)
			}
			cfg, path, err := loadConfig(opts.ConfigPath)
			if err != nil {
				return err
			}
			key, _, _ := providers.ResolveCredential(cfg.Provider.APIKeyEnv, cfg.Provider.Name)
			fmt.Fprintln(cmd.OutOrStdout(), cfg.Summary(path, key))
			return nil
		},
	}
	cmd.Flags().BoolVar(&initFile, "init", false, "Write a config file with the default settings")
	return cmd
}

// runConfigInit writes the defaults to the config path. An existing file is never replaced.
func runConfigInit(cmd *cobra.Command, opts *GlobalOptions) error {
	path := opts.ConfigPath
	if strings.TrimSpace(path) == "" {
		path = config.GetConfigPath()
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := config.Default().Save(path); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
	return nil
}

func NewAuthCmd(opts *GlobalOptions) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the provider API credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthStatus(cmd, opts, false)
		},
	}

	var ping bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show where the credential comes from",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthStatus(cmd, opts, ping)
		},
	}
	statusCmd.Flags().BoolVar(&ping, "check", false, "Also run the provider health check")

	var setKey string
	setCmd := &cobra.Command{
		Use:   "set [provider]",
		Short: "Store an API key in the OS keyring",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := authProvider(opts, args)
			if err != nil {
				return err
			}

			key := strings.TrimSpace(setKey)
			if key == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Enter API key for %s: ", name)
				reader := bufio.NewReader(cmd.InOrStdin())
				line, err := reader.ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("read api key: %w", err)
				}
				key = strings.TrimSpace(line)
			}
			if err := providers.StoreCredential(name, key); err != nil {
				return fmt.Errorf("store key for %s: %w", name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored API key for %s\n", name)
			return nil
		},
	}
	setCmd.Flags().StringVar(&setKey, "key", "", "API key value")

	removeCmd := &cobra.Command{
		Use:     "remove [provider]",
		Aliases: []string{"rm", "delete"},
		Short:   "Remove the stored API key",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := authProvider(opts, args)
			if err != nil {
				return err
			}
			if err := providers.DeleteCredential(name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed API key for %s\n", name)
			return nil
		},
	}

	authCmd.AddCommand(statusCmd, setCmd, removeCmd)
	return authCmd
}

// authProvider picks the provider named on the command line, else the configured one.
func authProvider(opts *GlobalOptions, args []string) (string, error) {
	if len(args) == 1 {
		name := strings.ToLower(strings.TrimSpace(args[0]))
		switch name {
		case config.ProviderOpenAI, config.ProviderAnthropic:
			return name, nil
		}
		return "", fmt.Errorf("unknown provider %q (expected openai or anthropic)", args[0])
	}
	cfg, _, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return "", err
	}
	return cfg.Provider.Name, nil
}

func runAuthStatus(cmd *cobra.Command, opts *GlobalOptions, ping bool) error {
	cfg, _, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	key, source, err := providers.ResolveCredential(cfg.Provider.APIKeyEnv, cfg.Provider.Name)
	if err != nil {
		fmt.Fprintf(out, "%s: not connected (%v)\n", cfg.Provider.Name, err)
		return nil
	}
	fmt.Fprintf(out, "%s: %s (from %s)\n", cfg.Provider.Name, config.RedactKey(key), source)
	if source == providers.SourceEnv {
		if stored, err := providers.LoadCredential(cfg.Provider.Name); err == nil {
			fmt.Fprintf(out, "%s: stored key %s is shadowed by %s\n", cfg.Provider.Name, config.RedactKey(stored), cfg.Provider.APIKeyEnv)
		}
	}
	if !ping {
		return nil
	}

	provider, err := providers.New(cfg.Provider.Name, cfg.Provider.BaseURL, key)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	status := providers.Check(ctx, provider)
	if !status.IsOnline {
		return fmt.Errorf("%s check failed: %s", status.Name, status.ErrorMsg)
	}
	fmt.Fprintf(out, "%s: ok\n", status.Name)
	return nil
}
