package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"dealradar/internal/api"
	"dealradar/internal/config"
	"dealradar/internal/logging"
)

// Manager is the workflow lifecycle the daemon drives.
type Manager interface {
	Start(ctx context.Context) error
	Stop()
}

// Daemon owns the single-instance lock, the workflow manager and the API
// server.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	manager  Manager
	backend  api.Backend
	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	server  *apiServer
	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running  bool   `json:"running"`
	PID      int    `json:"pid"`
	LockPath string `json:"lock_path"`
	Address  string `json:"address,omitempty"`
}

// New constructs a daemon. backend answers API requests; it normally wraps
// the same manager.
func New(cfg *config.Config, manager Manager, backend api.Backend, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || manager == nil || backend == nil {
		return nil, errors.New("daemon requires config, workflow manager and backend")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		manager:  manager,
		backend:  backend,
		lockPath: cfg.Paths.LockPath,
		lock:     flock.New(cfg.Paths.LockPath),
	}, nil
}

// Start acquires the lock, starts the manager and begins serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another dealradar daemon holds %s", d.lockPath)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.manager.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}

	server := newAPIServer(d.cfg.Paths.APIBind, d.cfg.Paths.APIToken, d.backend, d.logger)
	if err := server.start(); err != nil {
		d.manager.Stop()
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.mu.Lock()
	d.server = server
	d.cancel = cancel
	d.mu.Unlock()
	d.running.Store(true)
	d.logger.Info("dealradar daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", server.address()),
		logging.EventType("daemon_start"),
	)
	return nil
}

// Stop shuts the API down, stops the manager and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}
	d.mu.Lock()
	server, cancel := d.server, d.cancel
	d.server, d.cancel = nil, nil
	d.mu.Unlock()

	server.stop()
	d.manager.Stop()
	if cancel != nil {
		cancel()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.logger.Info("dealradar daemon stopped", logging.EventType("daemon_stop"))
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Address returns the address the API listens on, or "" when stopped.
func (d *Daemon) Address() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.server.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:  d.running.Load(),
		PID:      os.Getpid(),
		LockPath: d.lockPath,
		Address:  d.Address(),
	}
}
