package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"dealradar/internal/api"
	"dealradar/internal/catalog"
	"dealradar/internal/collect"
	"dealradar/internal/config"
	"dealradar/internal/daemon"
	"dealradar/internal/deps"
	"dealradar/internal/discovery"
	"dealradar/internal/docstore"
	"dealradar/internal/download"
	"dealradar/internal/extract"
	"dealradar/internal/fetch"
	"dealradar/internal/insight"
	"dealradar/internal/llm"
	"dealradar/internal/logging"
	"dealradar/internal/queue"
	"dealradar/internal/ranking"
	"dealradar/internal/scoring"
	"dealradar/internal/searchindex"
	"dealradar/internal/store"
	"dealradar/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Runtime is every long-lived component of a daemon process.
type Runtime struct {
	Config  *config.Config
	Catalog *catalog.Catalog
	Store   *store.Store
	Manager *workflow.Manager
	Service *api.Service
	Daemon  *daemon.Daemon
}

// Build opens the store and wires the pipeline, the insight service and the
// daemon. Callers own the returned runtime and must Close it.
func Build(cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	cat, err := catalog.Load(cfg.Paths.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load signal catalog: %w", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	registry := queue.NewRegistry(
		queue.WithPersister(st),
		queue.WithLogLines(cfg.Pipeline.TaskLogLines),
		queue.WithRetention(cfg.Pipeline.KeepTasks),
	)
	manager := workflow.NewManager(cfg, registry, logger)

	fetcher := fetch.New(cfg)
	model := llm.NewClient(llm.FromConfig(cfg))
	locks := docstore.NewLocks()
	engine := scoring.NewEngine(cat, st, scoring.WithLogger(logger))

	if err := manager.ConfigureStages(
		discovery.NewStage(cfg, fetcher, st, discovery.NewLLMRecognizer(model)),
		collect.NewStage(cfg, fetcher),
		download.NewStage(cfg, fetcher, st),
		extract.NewStage(cfg, st, nil),
		ranking.NewScanStage(engine, locks),
		ranking.NewScoreStage(st, locks),
		searchindex.NewStage(st, st),
	); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("configure stages: %w", err)
	}

	insights := insight.NewService(model, cat, st, st, st, insight.WithLogger(logger))
	service := api.NewService(manager, st, insights, cat)

	d, err := daemon.New(cfg, manager, service, logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("create daemon: %w", err)
	}

	return &Runtime{
		Config:  cfg,
		Catalog: cat,
		Store:   st,
		Manager: manager,
		Service: service,
		Daemon:  d,
	}, nil
}

// Close stops the daemon and closes the store.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	if r.Daemon != nil {
		r.Daemon.Stop()
	}
	if r.Store != nil {
		return r.Store.Close()
	}
	return nil
}

// Run starts the dealradar daemon and blocks until SIGINT, SIGTERM or ctx
// cancellation.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		clone := *cfg
		clone.Logging.Level = level
		cfg = &clone
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	pidPath := filepath.Join(cfg.Paths.DataDir, "dealradar.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	runtime, err := Build(cfg, logger)
	if err != nil {
		logger.Error("daemon setup failed",
			logging.Error(err),
			logging.EventType("daemon_setup_failed"),
			logging.ErrorHint("check the catalog path and database permissions"),
		)
		return err
	}
	defer runtime.Close()

	if err := runtime.Daemon.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.EventType("daemon_start_failed"),
			logging.ErrorHint("another daemon may be running or paths.api_bind is taken"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("dealradar daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.EventType("dependency_snapshot"),
		logging.Bool("llm_key_present", cfg.LLMEnabled()),
		logging.String("llm_model", cfg.LLM.Model),
		logging.String("catalog", valueOr(cfg.Paths.CatalogPath, "built-in")),
	}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		attrs = append(attrs,
			logging.Bool(status.Name+"_available", status.Available),
			logging.String(status.Name+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
