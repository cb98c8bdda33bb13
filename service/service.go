package service

import (
	"context"
	"time"

	"casetrack/hooks"
	"casetrack/metrics"
)

// HookDispatcher defines the hook operations services need.
// Defined here (consumer package) following Interface Segregation Principle.
type HookDispatcher interface {
	DispatchPre(ctx context.Context, hctx hooks.Context, payload any) (any, error)
	DispatchPost(ctx context.Context, hctx hooks.Context, entity any)
}

// ActivityTracker defines the audit operations services need.
type ActivityTracker interface {
	Record(ctx context.Context, caseID, userID, message string)
}

// observeOperation records the outcome and duration of a mutating business
// operation. Meant to be deferred at the top of the operation with a named
// error return.
func observeOperation(entity, operation string, start time.Time, err *error) {
	outcome := "success"
	if *err != nil {
		outcome = "error"
	}
	metrics.OperationsTotal.WithLabelValues(entity, operation, outcome).Inc()
	metrics.OperationDuration.Observe(time.Since(start).Seconds())
}
