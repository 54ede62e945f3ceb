package workflow

import (
	"context"
	"log/slog"

	"dealradar/internal/logging"
)

// taskBaseLogger tees the manager logger into the task's activity log.
func (m *Manager) taskBaseLogger(id string) *slog.Logger {
	sink := func(line string) { m.registry.AppendLog(id, line) }
	return logging.TeeLogger(m.logger, logging.NewLineHandler(slog.LevelInfo, sink))
}

func (m *Manager) taskLogger(ctx context.Context, id string) *slog.Logger {
	return logging.WithContext(ctx, m.taskBaseLogger(id))
}
