// Package store persists assessment and mode-scoring results for later
// retrieval by the CLI and the HTTP server.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/schema-engine/internal/model"
)

// ErrNotFound is returned by GetResult for an unknown id.
var ErrNotFound = eris.New("store: result not found")

// ResultFilter specifies criteria for listing results.
type ResultFilter struct {
	Kind   model.ResultKind `json:"kind,omitempty"`
	Label  string           `json:"label,omitempty"`
	Limit  int              `json:"limit,omitempty"`
	Offset int              `json:"offset,omitempty"`
}

// Store defines the persistence interface for scoring results.
type Store interface {
	// SaveResult persists rec, assigning ID and CreatedAt when unset.
	SaveResult(ctx context.Context, rec *model.ResultRecord) error
	// SaveResults persists many records in one round trip.
	SaveResults(ctx context.Context, recs []*model.ResultRecord) error
	GetResult(ctx context.Context, id string) (*model.ResultRecord, error)
	ListResults(ctx context.Context, filter ResultFilter) ([]model.ResultRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// NewRecord marshals v into a record of the given kind.
func NewRecord(kind model.ResultKind, label, summary string, v any) (*model.ResultRecord, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal payload")
	}
	return &model.ResultRecord{Kind: kind, Label: label, Summary: summary, Payload: payload}, nil
}

// Open returns the store for driver, migrated and ready. Driver "none"
// returns a nil Store.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "none", "":
		return nil, nil
	case "sqlite":
		s, err = NewSQLite(dsn)
	case "postgres":
		s, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

func prepare(rec *model.ResultRecord) error {
	if rec == nil {
		return eris.New("store: nil record")
	}
	switch rec.Kind {
	case model.ResultKindAssessment, model.ResultKindModes:
	default:
		return eris.Errorf("store: unknown result kind %q", rec.Kind)
	}
	if len(rec.Payload) == 0 || !json.Valid(rec.Payload) {
		return eris.Errorf("store: %s payload is not valid JSON", rec.Kind)
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return nil
}

func limitOf(f ResultFilter) int {
	if f.Limit <= 0 {
		return 100
	}
	return f.Limit
}
