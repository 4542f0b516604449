package application

import "time"

// Operation outcomes reported to an OperationRecorder.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// OperationRecorder observes facade calls. internal/telemetry provides the
// Prometheus implementation.
type OperationRecorder interface {
	RecordOperation(facade, operation, outcome string, elapsed time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordOperation(string, string, string, time.Duration) {}

func defaultRecorder(r OperationRecorder) OperationRecorder {
	if r != nil {
		return r
	}
	return noopRecorder{}
}

func outcome(ok bool, err error) string {
	switch {
	case err != nil:
		return OutcomeError
	case !ok:
		return OutcomeRejected
	}
	return OutcomeSuccess
}
