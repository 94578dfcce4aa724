package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/schema-engine/internal/config"
	"github.com/sells-group/schema-engine/internal/modescore"
	"github.com/sells-group/schema-engine/internal/pipeline"
	"github.com/sells-group/schema-engine/internal/selector"
	"github.com/sells-group/schema-engine/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.Tables.TableFiles = modescore.DefaultTableFiles(filepath.Join("..", "tables"))
	c.Tables.Instruments = "instruments.yaml"
	c.Selector.Thresholds = selector.DefaultThresholds()
	c.Selector.Fallback = "strict"
	c.Modes.Options = modescore.DefaultOptions()
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "results.db")
	c.Batch.Concurrency = 4
	c.Server.Port = 8080
	c.Server.RateLimit = 1000
	c.Server.RateBurst = 1000
	c.Server.CORSOrigins = []string{"*"}
	return c
}

// newTestEnv loads the sample tables and, when withStore is set, a
// migrated SQLite store in a temp dir.
func newTestEnv(t *testing.T, withStore bool) *engineEnv {
	t.Helper()
	c := testConfig(t)
	eng, err := pipeline.Load(c)
	require.NoError(t, err)

	env := &engineEnv{Engine: eng}
	if withStore {
		st, err := store.Open(context.Background(), c.Store.Driver, c.Store.DatabaseURL)
		require.NoError(t, err)
		env.Store = st
	}
	t.Cleanup(env.Close)
	return env
}
