package planning

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConflict matches every *ConflictError.
	ErrConflict = errors.New("planning: conflict")

	// ErrCriticalStagesOverlap is the reason when two pinned slots share time.
	ErrCriticalStagesOverlap = errors.New("critical stages overlap")
	// ErrCriticalStagesOutOfOrder is the reason when pinned slots contradict stage order.
	ErrCriticalStagesOutOfOrder = errors.New("critical stages are out of order")
	// ErrInsufficientGap is the reason when stages between two pinned stages do not fit.
	ErrInsufficientGap = errors.New("stages do not fit between critical stages")

	// ErrInvalidStages is returned for malformed stage definitions.
	ErrInvalidStages = errors.New("planning: invalid stages")
	// ErrUnknownStage is returned when a critical stage is not part of the project.
	ErrUnknownStage = errors.New("planning: unknown stage")
	// ErrNoCriticalStage is returned when critical-path planning has nothing to pin to.
	ErrNoCriticalStage = errors.New("planning: no critical stage")
)

// ConflictError reports a schedule that cannot be built from the pinned slots.
type ConflictError struct {
	Reason error
	Stages []string
}

func (e *ConflictError) Error() string {
	if len(e.Stages) == 0 {
		return fmt.Sprintf("planning conflict: %v", e.Reason)
	}
	return fmt.Sprintf("planning conflict: %v (%s)", e.Reason, strings.Join(e.Stages, ", "))
}

func (e *ConflictError) Unwrap() error { return e.Reason }

// Is makes errors.Is(err, ErrConflict) hold for any conflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func conflict(reason error, stages ...string) error {
	return &ConflictError{Reason: reason, Stages: stages}
}
