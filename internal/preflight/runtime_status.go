package preflight

import (
	"context"
	"fmt"
	"time"

	"dealradar/internal/api"
)

// StatusSource is anything that reports workflow status, normally an
// api.Client pointed at the daemon.
type StatusSource interface {
	Status(ctx context.Context) (api.WorkflowStatus, error)
}

// CheckDaemon asks a running daemon for its status and folds unhealthy
// stages into the detail. An unreachable daemon is an optional failure.
func CheckDaemon(ctx context.Context, source StatusSource) Result {
	const name = "Daemon"
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	status, err := source.Status(checkCtx)
	if err != nil {
		return Result{Name: name, Optional: true, Detail: "not reachable (start it with `dealradar serve`)"}
	}
	if !status.Running {
		return Result{Name: name, Detail: "reachable but the workflow is stopped"}
	}
	var unhealthy []string
	for _, health := range status.StageHealth {
		if !health.Ready {
			unhealthy = append(unhealthy, fmt.Sprintf("%s: %s", health.Name, health.Detail))
		}
	}
	if len(unhealthy) > 0 {
		return Result{Name: name, Detail: fmt.Sprintf("running, %d stage(s) not ready: %v", len(unhealthy), unhealthy)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("running, %d/%d workers busy", status.Busy, status.Workers)}
}
