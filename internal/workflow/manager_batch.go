package workflow

import (
	"context"
	"fmt"

	"dealradar/internal/logging"
	"dealradar/internal/queue"
	"dealradar/internal/services"
)

// MaxBatchSize bounds the number of companies accepted in one batch.
const MaxBatchSize = 500

// Submission is one company request of a batch.
type Submission struct {
	CompanyName string
	Website     string
	IRURL       string
	Country     string
}

func (s Submission) options() []SubmitOption {
	return []SubmitOption{WithWebsite(s.Website), WithIRURL(s.IRURL), WithCountry(s.Country)}
}

// SubmitBatch records one task per submission, in order. Every submission is
// validated first; a single invalid row rejects the whole batch and no task
// is created.
func (m *Manager) SubmitBatch(ctx context.Context, submissions []Submission) ([]queue.Task, error) {
	if len(submissions) == 0 {
		return nil, services.Wrap(services.ErrInvalidInput, "workflow", "submit_batch", "no companies found", nil)
	}
	if len(submissions) > MaxBatchSize {
		return nil, services.Wrap(services.ErrInvalidInput, "workflow", "submit_batch",
			fmt.Sprintf("%d companies exceed the batch limit of %d", len(submissions), MaxBatchSize), nil)
	}

	requests := make([]queue.Task, 0, len(submissions))
	for i, sub := range submissions {
		request, err := m.prepare(sub.CompanyName, sub.options()...)
		if err != nil {
			return nil, services.Wrap(services.ErrInvalidInput, "workflow", "submit_batch",
				fmt.Sprintf("row %d: %s", i+1, err), nil)
		}
		requests = append(requests, request)
	}

	tasks := make([]queue.Task, 0, len(requests))
	for _, request := range requests {
		task, err := m.record(ctx, request)
		if err != nil {
			return tasks, err
		}
		tasks = append(tasks, task)
	}
	m.logger.Info("batch submitted",
		logging.Int("tasks", len(tasks)),
		logging.EventType("batch_submitted"),
	)
	return tasks, nil
}
