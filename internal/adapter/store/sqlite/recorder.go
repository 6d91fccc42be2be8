package sqlite

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bkyoung/review-pipeline/internal/usecase/integrate"
)

// Recorder adapts Store to the integrator's outcome port.
type Recorder struct {
	store *Store
}

func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store}
}

func (r *Recorder) RecordOutcome(ctx context.Context, outcome integrate.Outcome) error {
	return r.store.Record(ctx, Entry{
		EntryID:       uuid.NewString(),
		Owner:         outcome.Owner,
		Repo:          outcome.Repo,
		PullNumber:    outcome.PullNumber,
		CorrelationID: outcome.CorrelationID,
		Provider:      outcome.Provider,
		Model:         outcome.Model,
		Status:        outcome.Status,
		Error:         outcome.Error,
		CreatedAt:     time.Now().UTC(),
	})
}
