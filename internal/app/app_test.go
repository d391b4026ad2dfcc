package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meeting-continuity/internal/config"
	"meeting-continuity/pkg/llm"
	"meeting-continuity/pkg/task"
)

func TestOpenStores_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{Store: config.StoreConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "nested", "continuity.sqlite"),
	}}

	stores, err := OpenStores(ctx, cfg)
	require.NoError(t, err)
	defer stores.Close()

	_, err = stores.Sessions.Ensure(ctx, "A")
	require.NoError(t, err)
	created, err := stores.Tasks.Create(ctx, "A", task.Draft{Title: "Build recorder"}, "")
	require.NoError(t, err)
	_, err = stores.Journal.Append(ctx, "task.rooted", "A", map[string]any{"task_id": created.ID})
	require.NoError(t, err)

	n, err := stores.Journal.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpenStores_UnknownDriver(t *testing.T) {
	_, err := OpenStores(context.Background(), &config.Config{Store: config.StoreConfig{Driver: "mysql"}})
	assert.Error(t, err)
}

func TestNewGenerator(t *testing.T) {
	cfg := &config.Config{LLM: config.LLMConfig{
		Provider: config.ProviderOpenAI,
		APIKey:   "sk-test",
		Model:    "gpt-4o-mini",
		Timeout:  time.Second,
	}}
	gen, err := NewGenerator(cfg)
	require.NoError(t, err)
	assert.NotNil(t, gen)

	cfg.LLM.Provider = config.ProviderClaude
	cfg.LLM.Timeout = 0
	gen, err = NewGenerator(cfg)
	require.NoError(t, err)
	_, ok := gen.(*llm.Claude)
	assert.True(t, ok, "zero timeout should leave the generator unwrapped")

	cfg.LLM.Provider = "bard"
	_, err = NewGenerator(cfg)
	assert.Error(t, err)
}
