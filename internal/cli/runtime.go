package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yubzen/ballpark/internal/agent"
	"github.com/yubzen/ballpark/internal/config"
	"github.com/yubzen/ballpark/internal/logging"
	"github.com/yubzen/ballpark/internal/metrics"
	"github.com/yubzen/ballpark/internal/providers"
	"github.com/yubzen/ballpark/internal/redact"
	"github.com/yubzen/ballpark/internal/statsdb"
	"github.com/yubzen/ballpark/internal/toolschema"
)

// Runtime is everything a turn needs, built once at startup.
type Runtime struct {
	Ctx          context.Context
	Config       *config.Config
	Logger       *zap.Logger
	DB           *statsdb.DB
	Orchestrator *agent.Orchestrator

	cancel  context.CancelFunc
	watcher *toolschema.Watcher
}

// Close stops background work and releases the database.
func (r *Runtime) Close() {
	if r == nil {
		return
	}
	if r.cancel != nil {
		r.cancel()
	}
	if r.watcher != nil {
		select {
		case <-r.watcher.Done:
		case <-time.After(3 * time.Second):
			r.Logger.Warn("timed out waiting for schema watcher shutdown")
		}
	}
	if r.DB != nil {
		_ = r.DB.Close()
	}
	if r.Logger != nil {
		_ = r.Logger.Sync()
	}
}

// loadConfig reads and validates the config at path, or the default location.
func loadConfig(path string) (*config.Config, string, error) {
	if strings.TrimSpace(path) == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, path, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, path, nil
}

// Bootstrap validates the configuration, the credential and the database
// before anything is shown. Every failure here is fatal.
func Bootstrap(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logPath := cfg.Log.Path
	if logPath == "" {
		logPath = config.DefaultLogPath()
	}
	logger, err := logging.New(logPath, cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Config: cfg, Logger: logger}
	rt.Ctx, rt.cancel = context.WithCancel(ctx)

	key, source, err := providers.ResolveCredential(cfg.Provider.APIKeyEnv, cfg.Provider.Name)
	if err != nil {
		rt.Close()
		return nil, err
	}
	logger.Info("credential resolved", zap.String("provider", cfg.Provider.Name), zap.String("source", string(source)))

	provider, err := providers.New(cfg.Provider.Name, cfg.Provider.BaseURL, key)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if status := providers.Check(rt.Ctx, provider); !status.IsOnline {
		rt.Close()
		return nil, fmt.Errorf("provider %s is not usable: %s", status.Name, status.ErrorMsg)
	}

	startupCtx, cancelStartup := context.WithTimeout(rt.Ctx, 5*time.Second)
	defer cancelStartup()
	rt.DB, err = statsdb.Open(startupCtx, statsdb.Options{
		Path:     cfg.Database.Path,
		ReadOnly: cfg.Database.ReadOnly,
		Logger:   logger.Named("statsdb"),
	})
	if err != nil {
		rt.Close()
		return nil, err
	}

	schema, err := rt.schemaSource(cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.Orchestrator = &agent.Orchestrator{
		Completer: &agent.Completer{
			Provider: provider,
			Model:    cfg.Provider.Model,
			Retry: agent.RetryPolicy{
				MaxAttempts: cfg.Retry.MaxAttempts,
				Multiplier:  time.Duration(cfg.Retry.MultiplierSeconds) * time.Second,
				MaxWait:     time.Duration(cfg.Retry.MaxWaitSeconds) * time.Second,
			},
			Logger: logger.Named("completion"),
		},
		Schema: schema,
		DB:     rt.DB,
		Logger: logger.Named("agent"),
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(rt.Ctx, cfg.Metrics.Addr, logger.Named("metrics")); err != nil {
				logger.Error("metrics listener stopped", zap.String("error", redact.Error(err)))
			}
		}()
	}

	logger.Info("runtime ready",
		zap.String("provider", provider.Name()),
		zap.String("model", cfg.Provider.Model),
		zap.String("database", rt.DB.Path()),
	)
	return rt, nil
}

func (r *Runtime) schemaSource(cfg *config.Config) (agent.SchemaSource, error) {
	if cfg.Schema.Path == "" {
		return toolschema.Default()
	}
	if !cfg.Schema.Watch {
		return toolschema.Load(cfg.Schema.Path)
	}
	w, err := toolschema.NewWatcher(cfg.Schema.Path, r.Logger.Named("toolschema"))
	if err != nil {
		return nil, err
	}
	w.Start(r.Ctx)
	r.watcher = w
	return w, nil
}

// RestoreTerminal puts the cursor back after the full-screen program exits.
func RestoreTerminal() {
	fmt.Fprint(os.Stderr, "\x1b[?25h\x1b[0m")
}
