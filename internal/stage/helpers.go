package stage

import (
	"errors"

	"dealradar/internal/services"
)

// ErrCancelled is returned by stages that stop early because the task was
// cancelled between units of work.
var ErrCancelled = errors.New("stage cancelled")

// Fail wraps a stage error with services.ErrStageFailure unless it already
// carries a classification marker.
func Fail(stageName, operation, message string, err error) error {
	if err != nil && services.KindOf(err) != services.KindInternal {
		return services.Wrap(markerFor(err), stageName, operation, message, err)
	}
	return services.Wrap(services.ErrStageFailure, stageName, operation, message, err)
}

func markerFor(err error) error {
	switch services.KindOf(err) {
	case services.KindInvalidInput:
		return services.ErrInvalidInput
	case services.KindNotFound:
		return services.ErrNotFound
	case services.KindCorruptInput:
		return services.ErrCorruptInput
	case services.KindUpstreamUnavailable:
		return services.ErrUpstreamUnavailable
	case services.KindTimeout:
		return services.ErrTimeout
	case services.KindConfiguration:
		return services.ErrConfiguration
	default:
		return services.ErrStageFailure
	}
}
