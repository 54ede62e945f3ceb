package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"dealradar/internal/logging"
	"dealradar/internal/queue"
	"dealradar/internal/services"
	"dealradar/internal/stage"
)

type stageOutcome struct {
	artifacts stage.Artifacts
	err       error
}

func (m *Manager) runTask(ctx context.Context, id string) {
	defer m.wg.Done()

	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		m.requeue(id)
		return
	}
	defer func() { <-m.sem }()

	if ctx.Err() != nil {
		m.requeue(id)
		return
	}
	task, err := m.registry.Get(id)
	if err != nil || task.Status != queue.StatusPending {
		return
	}

	stages := m.stageList()
	taskCtx := services.WithTaskID(ctx, id)
	logger := m.taskLogger(taskCtx, id)
	started := m.now()

	task, err = m.update(taskCtx, logger, id, func(t *queue.Task) error {
		t.Status = queue.StatusRunning
		t.StartedAt = started
		t.Progress = 0
		if len(stages) > 0 {
			t.CurrentStep = stages[0].Label()
		}
		return nil
	})
	if err != nil && !errors.Is(err, queue.ErrPersist) {
		// Cancelled between Get and Update.
		return
	}
	logger.Info("task started",
		logging.String("company_name", task.CompanyName),
		logging.Int("stages", len(stages)),
		logging.EventType("task_start"),
	)

	token := m.registry.Token(id)
	run := &stage.Run{
		Request: stage.Request{
			TaskID:      id,
			CompanyName: task.CompanyName,
			Website:     task.Website,
			IRURL:       task.IRURL,
			Country:     task.Country,
		},
		Cancel: token,
	}

	for i, handler := range stages {
		if token.Requested() {
			m.finish(taskCtx, logger, id, queue.StatusCancelled, "", "")
			return
		}
		if ctx.Err() != nil {
			m.finish(taskCtx, logger, id, queue.StatusFailed, queue.ShutdownReason, string(services.KindStageFailure))
			return
		}

		stageCtx := services.WithStage(taskCtx, handler.Name())
		stageCtx = services.WithRequestID(stageCtx, uuid.NewString())
		if run.Company.ID != "" {
			stageCtx = services.WithCompanyID(stageCtx, run.Company.ID)
		}
		stageLogger := logging.WithContext(stageCtx, m.taskBaseLogger(id))
		run.Logger = stageLogger

		outcome := m.executeStage(stageCtx, stageLogger, handler, run)

		if outcome.err != nil {
			if ctx.Err() != nil {
				stageLogger.Warn("stage interrupted by shutdown",
					logging.EventType("stage_interrupted"),
				)
				m.finish(taskCtx, logger, id, queue.StatusFailed, queue.ShutdownReason, string(services.KindStageFailure))
				return
			}
			if token.Requested() || errors.Is(outcome.err, stage.ErrCancelled) {
				stageLogger.Info("stage ended after cancel request", logging.Error(outcome.err))
				m.finish(taskCtx, logger, id, queue.StatusCancelled, "", "")
				return
			}
			m.fail(taskCtx, stageLogger, id, handler.Name(), outcome.err)
			return
		}

		next := ""
		if i+1 < len(stages) {
			next = stages[i+1].Label()
		}
		progress := float64(i+1) / float64(len(stages))
		_, _ = m.update(taskCtx, stageLogger, id, func(t *queue.Task) error {
			t.StepsCompleted = append(t.StepsCompleted, handler.Name())
			t.Progress = progress
			t.AddCompanies(outcome.artifacts.Companies...)
			t.AddDocuments(outcome.artifacts.Documents...)
			if t.Status == queue.StatusRunning {
				t.CurrentStep = next
			}
			return nil
		})
	}

	if token.Requested() {
		m.finish(taskCtx, logger, id, queue.StatusCancelled, "", "")
		return
	}
	m.finish(taskCtx, logger, id, queue.StatusCompleted, "", "")
}

// executeStage runs one handler under the stage deadline. It returns when the
// handler returns or the deadline passes, whichever comes first.
func (m *Manager) executeStage(ctx context.Context, logger *slog.Logger, handler stage.Handler, run *stage.Run) stageOutcome {
	name := handler.Name()
	timeout := m.cfg.StageTimeout(name)
	stageCtx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	start := m.now()
	logger.Info("stage started",
		logging.EventType("stage_start"),
		logging.String("label", handler.Label()),
	)

	done := make(chan stageOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- stageOutcome{err: services.Wrap(services.ErrStageFailure, name, "execute", fmt.Sprintf("panic: %v", r), nil)}
			}
		}()
		artifacts, err := handler.Execute(stageCtx, run)
		done <- stageOutcome{artifacts: artifacts, err: err}
	}()

	var outcome stageOutcome
	select {
	case outcome = <-done:
	case <-stageCtx.Done():
		if ctx.Err() != nil {
			outcome = stageOutcome{err: ctx.Err()}
		} else {
			outcome = stageOutcome{err: services.Wrap(services.ErrTimeout, name, "execute",
				fmt.Sprintf("exceeded %s", timeout), context.DeadlineExceeded)}
		}
	}
	if outcome.err == nil {
		attrs := []logging.Attr{
			logging.EventType("stage_complete"),
			logging.Duration("stage_duration", m.now().Sub(start)),
		}
		if outcome.artifacts.Message != "" {
			attrs = append(attrs, logging.String("result", outcome.artifacts.Message))
		}
		logger.Info("stage completed", logging.Args(attrs...)...)
	}
	return outcome
}

func (m *Manager) fail(ctx context.Context, logger *slog.Logger, id, stageName string, stageErr error) {
	details := services.Details(stageErr)
	message := details.Message
	if message == "" {
		message = fmt.Sprintf("%s failed", stageName)
	}
	attrs := []logging.Attr{
		logging.String("error_kind", string(details.Kind)),
		logging.EventType("stage_failure"),
		logging.Error(stageErr),
	}
	if details.Hint != "" {
		attrs = append(attrs, logging.ErrorHint(details.Hint))
	}
	logger.Error("stage failed", logging.Args(attrs...)...)
	m.setLastError(stageErr)
	m.finish(ctx, logger, id, queue.StatusFailed, message, string(details.Kind))
}

// finish moves the task into a terminal status. The closing activity line is
// written with the terminal snapshot because the log is frozen afterwards.
// Persistence uses a context detached from shutdown so the final state is
// still written.
func (m *Manager) finish(ctx context.Context, logger *slog.Logger, id string, status queue.Status, message, kind string) {
	ctx = context.WithoutCancel(ctx)
	task, err := m.update(ctx, logger, id, func(t *queue.Task) error {
		if t.Status == queue.StatusCancelling && status == queue.StatusCompleted {
			status = queue.StatusCancelled
		}
		now := m.now()
		t.Finish(status, now)
		t.Error = message
		t.ErrorKind = kind
		line := "task finished status=" + string(status)
		if message != "" {
			line += fmt.Sprintf(" reason=%q", message)
		}
		t.Log = append(t.Log, queue.LogLine(now, "INFO", line))
		return nil
	})
	if err != nil && !errors.Is(err, queue.ErrPersist) {
		logger.Warn("could not record final task state",
			logging.String("status", string(status)),
			logging.Error(err),
		)
		return
	}
	attrs := []logging.Attr{
		logging.String("status", string(status)),
		logging.Duration("task_duration", task.Duration(m.now())),
		logging.EventType("task_"+string(status)),
	}
	if message != "" {
		attrs = append(attrs, logging.String("reason", message))
	}
	logger.Info("task finished", logging.Args(attrs...)...)
	m.setLastTask(task)
	m.prune(ctx)
}

func (m *Manager) prune(ctx context.Context) {
	removed, err := m.registry.Prune(ctx)
	if err != nil {
		m.logger.Warn("task pruning failed",
			logging.Error(err),
			logging.EventType("task_prune_failed"),
			logging.ErrorHint("check database path permissions"),
		)
		return
	}
	if removed > 0 {
		m.logger.Debug("pruned finished tasks", logging.Int("removed", removed))
	}
}

// update wraps Registry.Update and logs persistence failures. The returned
// snapshot reflects the in-memory state even when persisting failed.
func (m *Manager) update(ctx context.Context, logger *slog.Logger, id string, fn func(*queue.Task) error) (queue.Task, error) {
	task, err := m.registry.Update(ctx, id, fn)
	if err != nil && errors.Is(err, queue.ErrPersist) {
		logger.Warn("task state not persisted",
			logging.Error(err),
			logging.EventType("task_persist_failed"),
			logging.ErrorHint("check database path permissions"),
		)
	}
	return task, err
}

func (m *Manager) requeue(id string) {
	m.mu.Lock()
	m.backlog = append(m.backlog, id)
	m.mu.Unlock()
}
