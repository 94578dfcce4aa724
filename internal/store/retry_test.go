package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/schema-engine/internal/model"
	"github.com/sells-group/schema-engine/internal/resilience"
)

// flakyStore fails the first n calls with a busy error before delegating.
type flakyStore struct {
	Store
	n     int
	calls int
}

func (f *flakyStore) fail() error {
	f.calls++
	if f.calls <= f.n {
		return errors.New("database is locked (5) (SQLITE_BUSY)")
	}
	return nil
}

func (f *flakyStore) SaveResult(ctx context.Context, rec *model.ResultRecord) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.Store.SaveResult(ctx, rec)
}

func (f *flakyStore) GetResult(ctx context.Context, id string) (*model.ResultRecord, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.Store.GetResult(ctx, id)
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()
	base, err := NewSQLite(filepath.Join(t.TempDir(), "retry.db"))
	require.NoError(t, err)
	require.NoError(t, base.Migrate(ctx))
	t.Cleanup(func() { _ = base.Close() })

	flaky := &flakyStore{Store: base, n: 2}
	st := WithRetry(flaky, fastRetry())

	rec, err := NewRecord(model.ResultKindModes, "retry", "healthy_adult", map[string]int{"n": 1})
	require.NoError(t, err)
	require.NoError(t, st.SaveResult(ctx, rec))
	assert.Equal(t, 3, flaky.calls)

	flaky.calls, flaky.n = 0, 5
	_, err = st.GetResult(ctx, rec.ID)
	require.Error(t, err)
	assert.Equal(t, 3, flaky.calls)

	flaky.calls, flaky.n = 0, 0
	_, err = st.GetResult(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, flaky.calls, "not-found is not retried")
}

func TestWithRetry_Nil(t *testing.T) {
	assert.Nil(t, WithRetry(nil, fastRetry()))
}
