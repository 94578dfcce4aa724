package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/schema-engine/internal/config"
	"github.com/sells-group/schema-engine/internal/pipeline"
	"github.com/sells-group/schema-engine/internal/resilience"
	"github.com/sells-group/schema-engine/internal/store"
)

// engineEnv holds the loaded engine and, when requested, an open store.
type engineEnv struct {
	Engine *pipeline.Engine
	Store  store.Store
}

// Close releases the store, if any.
func (e *engineEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEngine validates cfg for mode, loads every table and opens the store
// when withStore is set.
func initEngine(ctx context.Context, c *config.Config, mode string, withStore bool) (*engineEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	eng, err := pipeline.Load(c)
	if err != nil {
		return nil, eris.Wrap(err, "init engine")
	}
	env := &engineEnv{Engine: eng}

	if withStore {
		st, err := initStore(ctx, c)
		if err != nil {
			return nil, err
		}
		env.Store = st
	}
	return env, nil
}

func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, c.Store.Driver, c.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if st == nil {
		return nil, eris.Errorf("store driver %q does not persist results", c.Store.Driver)
	}
	return store.WithRetry(st, resilience.FromStoreConfig(c.Store.RetryAttempts, c.Store.RetryBackoffMs)), nil
}
