package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yubzen/ballpark/internal/cli"
	"github.com/yubzen/ballpark/internal/state"
	"github.com/yubzen/ballpark/internal/tui"
)

func main() {
	opts := &cli.GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:           "ballpark",
		Short:         "Ask questions about baseball history in plain English",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := cli.Bootstrap(cmd.Context(), opts.ConfigPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			app := tui.NewAppModel(rt.Ctx, rt.Config, state.NewSession(), rt.Orchestrator, rt.Logger.Named("tui"))
			app.SetExamples(rt.Orchestrator.Schema.Current().Examples())
			return tui.Run(rt.Ctx, app)
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "Path to config.toml (default ~/.config/ballpark/config.toml)")

	rootCmd.AddCommand(
		cli.NewAskCmd(opts),
		cli.NewSchemaCmd(opts),
		cli.NewAuthCmd(opts),
		cli.NewConfigCmd(opts),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	cli.RestoreTerminal()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
