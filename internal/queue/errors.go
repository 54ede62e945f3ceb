package queue

import (
	"errors"
	"fmt"

	"dealradar/internal/services"
)

// ErrInvalidTransition is returned when an update would break the task state machine.
var ErrInvalidTransition = errors.New("invalid task transition")

// ErrPersist marks a change that was applied in memory but could not be saved.
var ErrPersist = errors.New("persist task")

func notFound(id string) error {
	return services.Wrap(services.ErrNotFound, "queue", "lookup", fmt.Sprintf("task %q", id), nil)
}

func invalidTransition(id string, from, to Status) error {
	return fmt.Errorf("%w: task %s: %s -> %s", ErrInvalidTransition, id, from, to)
}
