package library

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirelo/sdsort/internal/filter"
	"github.com/mirelo/sdsort/pkg/db/models"
	"github.com/mirelo/sdsort/pkg/db/store"
)

func newTestLibrary(t *testing.T) (*Library, store.ImageStore) {
	t.Helper()

	s, err := store.NewSQLiteStore(store.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { s.Close() })

	return NewLibrary(s), s
}

func TestPromptTokenCounts(t *testing.T) {
	lib, s := newTestLibrary(t)
	ctx := context.Background()

	images := []models.Image{
		{Path: "/img/a.png", Filename: "a.png", Prompt: "1girl, long_hair, smile"},
		{Path: "/img/b.png", Filename: "b.png", Prompt: "1girl, Long Hair"},
		{Path: "/img/c.png", Filename: "c.png", Prompt: "landscape, mountains"},
	}
	for i := range images {
		require.NoError(t, s.UpsertImage(ctx, &images[i]))
	}

	entries, err := lib.PromptTokenCounts(ctx, 2)
	require.NoError(t, err)

	counts := make(map[string]int, len(entries))
	for _, entry := range entries {
		counts[entry.Name] = entry.Count
	}

	// Spelling variants collapse into one key
	assert.Equal(t, 2, counts["1girl"])
	assert.Equal(t, 2, counts["long hair"])
	assert.NotContains(t, counts, "smile", "below min count")
}

func TestLoraCounts(t *testing.T) {
	lib, s := newTestLibrary(t)
	ctx := context.Background()

	images := []models.Image{
		{Path: "/img/a.png", Filename: "a.png", Loras: `["Style_A.safetensors"]`},
		{Path: "/img/b.png", Filename: "b.png", Prompt: "x <lora:style_a:0.8>"},
		{Path: "/img/c.png", Filename: "c.png", Loras: `["other_style"]`},
	}
	for i := range images {
		require.NoError(t, s.UpsertImage(ctx, &images[i]))
	}

	entries, err := lib.LoraCounts(ctx, 1)
	require.NoError(t, err)

	counts := make(map[string]int, len(entries))
	for _, entry := range entries {
		counts[entry.Name] = entry.Count
	}
	assert.Equal(t, 2, counts["style_a"])
	assert.Equal(t, 1, counts["other_style"])
}

// A library count must equal the size of the filter result for the
// same key.
func TestCountsAgreeWithFilter(t *testing.T) {
	lib, s := newTestLibrary(t)
	ctx := context.Background()

	images := []models.Image{
		{Path: "/img/a.png", Filename: "a.png", Prompt: "a cat, forest"},
		{Path: "/img/b.png", Filename: "b.png", Prompt: "category, forest"},
		{Path: "/img/c.png", Filename: "c.png", Prompt: "a cat, beach"},
	}
	for i := range images {
		require.NoError(t, s.UpsertImage(ctx, &images[i]))
	}

	entries, err := lib.PromptTokenCounts(ctx, 1)
	require.NoError(t, err)

	engine := filter.NewEngine(s)
	for _, entry := range entries {
		matched, err := engine.Query(ctx, filter.Request{PromptTerms: []string{entry.Name}})
		require.NoError(t, err)
		assert.Len(t, matched, entry.Count, "count for %q must match its filter result", entry.Name)
	}
}

func TestStats(t *testing.T) {
	lib, s := newTestLibrary(t)
	ctx := context.Background()

	a := models.Image{Path: "/img/a.png", Filename: "a.png", Generator: "webui", Checkpoint: "anything_v5"}
	require.NoError(t, s.UpsertImage(ctx, &a))
	require.NoError(t, s.ReplaceTags(ctx, a.ID, []models.Tag{{Tag: "1girl"}}))

	stats, err := lib.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.TotalImages)
	assert.Len(t, stats.Generators, 1)
	assert.Len(t, stats.Checkpoints, 1)
	assert.Equal(t, 1, stats.TagCount)
}
