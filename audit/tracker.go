package audit

import (
	"context"

	"casetrack/core"
	"casetrack/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher pushes recorded entries to an external stream, best effort.
type Publisher interface {
	Publish(ctx context.Context, entry *core.ActivityEntry)
}

// Tracker writes the per-case audit trail. Record is called only after the
// triggering mutation has durably committed, so a failed append is logged and
// counted but never reverses the mutation or surfaces to the caller.
type Tracker struct {
	store     core.ActivityStorage
	publisher Publisher
	logger    *zap.SugaredLogger
}

// NewTracker creates an activity tracker. publisher may be nil.
func NewTracker(store core.ActivityStorage, publisher Publisher, logger *zap.SugaredLogger) *Tracker {
	return &Tracker{store: store, publisher: publisher, logger: logger}
}

// Record appends one audit entry for a committed mutation.
func (t *Tracker) Record(ctx context.Context, caseID, userID, message string) {
	entry := &core.ActivityEntry{
		ID:      uuid.NewString(),
		CaseID:  caseID,
		UserID:  userID,
		Message: message,
	}

	if err := t.store.AppendActivity(ctx, entry); err != nil {
		metrics.ActivityRecordFailures.Inc()
		t.logger.Errorw("Failed to record activity",
			"case_id", caseID, "user_id", userID, "message", message, "error", err)
		return
	}

	if t.publisher != nil {
		t.publisher.Publish(ctx, entry)
	}
}

// ListByCase reads a page of the case's audit trail.
func (t *Tracker) ListByCase(ctx context.Context, caseID string, filters *core.ActivityFilters) ([]*core.ActivityEntry, int64, error) {
	return t.store.ListActivitiesByCase(ctx, caseID, filters)
}
