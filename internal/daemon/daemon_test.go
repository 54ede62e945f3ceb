package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"dealradar/internal/api"
	"dealradar/internal/daemon"
	"dealradar/internal/logging"
	"dealradar/internal/testsupport"
)

type managerStub struct {
	started atomic.Int32
	stopped atomic.Int32
}

func (m *managerStub) Start(context.Context) error {
	m.started.Add(1)
	return nil
}

func (m *managerStub) Stop() { m.stopped.Add(1) }

type statusBackend struct {
	api.Backend
}

func (statusBackend) Status(context.Context) (api.WorkflowStatus, error) {
	return api.WorkflowStatus{Running: true, Workers: 2}, nil
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mgr := &managerStub{}
	d, err := daemon.New(cfg, mgr, statusBackend{}, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(d.Stop)

	if !d.Running() || mgr.started.Load() != 1 {
		t.Fatalf("daemon not running after start")
	}
	addr := d.Address()
	if addr == "" || strings.HasSuffix(addr, ":0") {
		t.Fatalf("unexpected listen address %q", addr)
	}

	resp, err := http.Get("http://" + addr + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer resp.Body.Close()
	var status api.WorkflowStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || status.Workers != 2 {
		t.Fatalf("unexpected status %+v", status)
	}

	d.Stop()
	if d.Running() || mgr.stopped.Load() != 1 {
		t.Fatalf("daemon still running after stop")
	}
	if d.Address() != "" {
		t.Fatalf("address should be empty after stop")
	}
	d.Stop()
	if mgr.stopped.Load() != 1 {
		t.Fatalf("second stop must be a no-op")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := daemon.New(cfg, &managerStub{}, statusBackend{}, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	t.Cleanup(first.Stop)

	secondMgr := &managerStub{}
	second, err := daemon.New(cfg, secondMgr, statusBackend{}, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatalf("expected lock conflict")
	}
	if secondMgr.started.Load() != 0 {
		t.Fatalf("manager must not start without the lock")
	}

	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("Start after release: %v", err)
	}
	second.Stop()
}
