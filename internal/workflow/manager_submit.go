package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"dealradar/internal/logging"
	"dealradar/internal/queue"
	"dealradar/internal/services"
)

// SubmitOption supplies optional hints with a submission.
type SubmitOption func(*queue.Task)

// WithWebsite sets the company's website, skipping website discovery.
func WithWebsite(website string) SubmitOption {
	return func(t *queue.Task) { t.Website = strings.TrimSpace(website) }
}

// WithIRURL sets the investor relations page, skipping IR discovery.
func WithIRURL(irURL string) SubmitOption {
	return func(t *queue.Task) { t.IRURL = strings.TrimSpace(irURL) }
}

// WithCountry records the company's country.
func WithCountry(country string) SubmitOption {
	return func(t *queue.Task) { t.Country = strings.TrimSpace(country) }
}

// Submit validates the company name, records a pending task and schedules it.
// It returns as soon as the task is recorded. Submitting the same name twice
// creates two independent tasks.
func (m *Manager) Submit(ctx context.Context, companyName string, opts ...SubmitOption) (queue.Task, error) {
	request, err := m.prepare(companyName, opts...)
	if err != nil {
		return queue.Task{}, services.Wrap(services.ErrInvalidInput, "workflow", "submit", err.Error(), nil)
	}
	return m.record(ctx, request)
}

// prepare builds the request for one company and checks it. Errors are plain
// descriptions; callers classify them.
func (m *Manager) prepare(companyName string, opts ...SubmitOption) (queue.Task, error) {
	name := strings.TrimSpace(companyName)
	if name == "" {
		return queue.Task{}, errors.New("company name is required")
	}
	if limit := m.cfg.Pipeline.MaxCompanyNameLength; limit > 0 && utf8.RuneCountInString(name) > limit {
		return queue.Task{}, fmt.Errorf("company name exceeds %d characters", limit)
	}

	request := queue.Task{CompanyName: name}
	for _, opt := range opts {
		opt(&request)
	}
	for _, field := range []struct{ name, value string }{{"website", request.Website}, {"ir_url", request.IRURL}} {
		if field.value == "" {
			continue
		}
		if err := validateURL(field.value); err != nil {
			return queue.Task{}, fmt.Errorf("%s %q: %w", field.name, field.value, err)
		}
	}
	return request, nil
}

// record creates the pending task and hands it to the dispatcher.
func (m *Manager) record(ctx context.Context, request queue.Task) (queue.Task, error) {
	task, err := m.registry.Create(ctx, request)
	if err != nil {
		if task.ID == "" {
			return queue.Task{}, err
		}
		m.logger.Warn("task recorded in memory only",
			logging.String(logging.FieldTaskID, task.ID),
			logging.Error(err),
			logging.EventType("task_persist_failed"),
			logging.ErrorHint("check database path permissions"),
		)
	}
	m.logger.Info("task submitted",
		logging.String(logging.FieldTaskID, task.ID),
		logging.String("company_name", task.CompanyName),
		logging.EventType("task_submitted"),
	)
	m.dispatch(task.ID)
	return task, nil
}

// List returns task snapshots, most recent first. A non-positive limit
// returns every task.
func (m *Manager) List(limit int) []queue.Task {
	return m.registry.List(limit)
}

// Get returns one task snapshot.
func (m *Manager) Get(id string) (queue.Task, error) {
	return m.registry.Get(id)
}

// Cancel requests cancellation. Pending tasks are cancelled at once, running
// tasks stop at the next stage boundary, and cancelling or finished tasks are
// returned unchanged.
func (m *Manager) Cancel(ctx context.Context, id string) (queue.Task, error) {
	before, err := m.registry.Get(id)
	if err != nil {
		return queue.Task{}, err
	}
	task, err := m.registry.RequestCancel(ctx, id)
	if err != nil && task.ID == "" {
		return queue.Task{}, err
	}
	if err != nil {
		m.logger.Warn("cancel recorded in memory only",
			logging.String(logging.FieldTaskID, id),
			logging.Error(err),
			logging.EventType("task_persist_failed"),
		)
	}
	if before.Status != task.Status {
		m.logger.Info("task cancel requested",
			logging.String(logging.FieldTaskID, id),
			logging.String("from_status", string(before.Status)),
			logging.String("status", string(task.Status)),
			logging.EventType("task_cancel_requested"),
		)
	}
	if task.Status.IsTerminal() {
		m.prune(ctx)
	}
	return task, nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
