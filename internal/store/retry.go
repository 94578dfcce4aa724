package store

import (
	"context"

	"github.com/sells-group/schema-engine/internal/model"
	"github.com/sells-group/schema-engine/internal/resilience"
)

// retryStore retries every operation on transient errors.
type retryStore struct {
	Store
	cfg resilience.RetryConfig
}

// WithRetry wraps s so that transient failures are retried per cfg.
// A nil s stays nil.
func WithRetry(s Store, cfg resilience.RetryConfig) Store {
	if s == nil {
		return nil
	}
	return &retryStore{Store: s, cfg: cfg}
}

func (r *retryStore) with(op string) resilience.RetryConfig {
	cfg := r.cfg
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(op)
	}
	return cfg
}

func (r *retryStore) SaveResult(ctx context.Context, rec *model.ResultRecord) error {
	return resilience.Do(ctx, r.with("save_result"), func(ctx context.Context) error {
		return r.Store.SaveResult(ctx, rec)
	})
}

func (r *retryStore) SaveResults(ctx context.Context, recs []*model.ResultRecord) error {
	return resilience.Do(ctx, r.with("save_results"), func(ctx context.Context) error {
		return r.Store.SaveResults(ctx, recs)
	})
}

func (r *retryStore) GetResult(ctx context.Context, id string) (*model.ResultRecord, error) {
	return resilience.DoVal(ctx, r.with("get_result"), func(ctx context.Context) (*model.ResultRecord, error) {
		return r.Store.GetResult(ctx, id)
	})
}

func (r *retryStore) ListResults(ctx context.Context, filter ResultFilter) ([]model.ResultRecord, error) {
	return resilience.DoVal(ctx, r.with("list_results"), func(ctx context.Context) ([]model.ResultRecord, error) {
		return r.Store.ListResults(ctx, filter)
	})
}
