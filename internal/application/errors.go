package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/resource-scheduler/internal/availability"
	"github.com/example/resource-scheduler/internal/persistence"
	"github.com/example/resource-scheduler/internal/planning"
	"github.com/example/resource-scheduler/internal/timeslot"
)

var (
	// ErrNotFound is returned when the requested project or capability does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when slots or entities would be created twice.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrConflict is returned when state changed underneath the caller or a
	// plan cannot be built. Callers retry with fresh state.
	ErrConflict = errors.New("application: conflict")
	// ErrInvalidInput wraps malformed slots, segments and stage definitions.
	ErrInvalidInput = errors.New("application: invalid input")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func validateSlot(v *ValidationError, field string, slot timeslot.TimeSlot) {
	switch {
	case slot.From.IsZero() || slot.To.IsZero():
		v.add(field, "from and to are required")
	case !slot.From.Before(slot.To):
		v.add(field, "from must be before to")
	}
}

// mapRepoError translates persistence sentinels into application errors.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	case errors.Is(err, persistence.ErrVersionConflict):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

// mapDomainError tags domain failures with the matching application error
// while keeping the original error reachable through errors.Is/As.
func mapDomainError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, planning.ErrConflict):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case errors.Is(err, planning.ErrUnknownStage):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, planning.ErrInvalidStages),
		errors.Is(err, planning.ErrNoCriticalStage),
		errors.Is(err, timeslot.ErrInvalidSlot),
		errors.Is(err, availability.ErrInvalidSegment):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}
