package filter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirelo/sdsort/pkg/db/models"
	"github.com/mirelo/sdsort/pkg/db/store"
)

func newTestEngine(t *testing.T) (*Engine, store.ImageStore) {
	t.Helper()

	s, err := store.NewSQLiteStore(store.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.Migrate(ctx))

	t.Cleanup(func() { s.Close() })
	return NewEngine(s), s
}

func seed(t *testing.T, s store.ImageStore, img models.Image) {
	t.Helper()
	require.NoError(t, s.UpsertImage(context.Background(), &img))
}

func TestQueryExactTokenMatching(t *testing.T) {
	engine, s := newTestEngine(t)
	ctx := context.Background()

	seed(t, s, models.Image{Path: "/img/a.png", Filename: "a.png", Prompt: "a cat, forest"})
	seed(t, s, models.Image{Path: "/img/b.png", Filename: "b.png", Prompt: "category, forest"})

	// "cat" must not match the "category" token
	images, err := engine.Query(ctx, Request{PromptTerms: []string{"cat"}})
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "/img/a.png", images[0].Path)
}

func TestQueryTermsAreANDed(t *testing.T) {
	engine, s := newTestEngine(t)
	ctx := context.Background()

	seed(t, s, models.Image{Path: "/img/a.png", Filename: "a.png", Prompt: "1girl, smile, beach"})
	seed(t, s, models.Image{Path: "/img/b.png", Filename: "b.png", Prompt: "1girl, beach"})

	images, err := engine.Query(ctx, Request{PromptTerms: []string{"1girl", "smile"}})
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "/img/a.png", images[0].Path)
}

func TestQueryTermNormalization(t *testing.T) {
	engine, s := newTestEngine(t)
	ctx := context.Background()

	seed(t, s, models.Image{Path: "/img/a.png", Filename: "a.png", Prompt: "long_hair, 1girl"})

	// Request spelling differs from prompt spelling; keys must agree
	images, err := engine.Query(ctx, Request{PromptTerms: []string{"Long Hair"}})
	require.NoError(t, err)
	assert.Len(t, images, 1)
}

func TestQueryLorasAreORed(t *testing.T) {
	engine, s := newTestEngine(t)
	ctx := context.Background()

	seed(t, s, models.Image{Path: "/img/a.png", Filename: "a.png", Loras: `["style_a"]`})
	seed(t, s, models.Image{Path: "/img/b.png", Filename: "b.png", Prompt: "x <lora:style_b:0.8>"})
	seed(t, s, models.Image{Path: "/img/c.png", Filename: "c.png", Loras: `["style_c"]`})

	images, err := engine.Query(ctx, Request{Loras: []string{"Style_A.safetensors", "style_b"}})
	require.NoError(t, err)

	paths := make([]string, 0, len(images))
	for _, img := range images {
		paths = append(paths, img.Path)
	}
	assert.ElementsMatch(t, []string{"/img/a.png", "/img/b.png"}, paths)
}

func TestQueryLoraSubstringDoesNotSurviveRefinement(t *testing.T) {
	engine, s := newTestEngine(t)
	ctx := context.Background()

	// Coarse substring match hits "style_a_extended" for "style_a";
	// exact refinement must reject it
	seed(t, s, models.Image{Path: "/img/a.png", Filename: "a.png", Loras: `["style_a_extended"]`})

	images, err := engine.Query(ctx, Request{Loras: []string{"style_a"}})
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestQueryPaginationAfterRefinement(t *testing.T) {
	engine, s := newTestEngine(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		prompt := "tree, snow"
		if i%2 == 1 {
			// Coarse candidates that refinement rejects
			prompt = "treehouse, snow"
		}
		seed(t, s, models.Image{
			Path:      fmt.Sprintf("/img/%d.png", i),
			Filename:  fmt.Sprintf("%d.png", i),
			Prompt:    prompt,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}

	// Refined set is images 0, 2, 4 ordered newest first: 4, 2, 0.
	// Offset 1 and limit 2 must slice the refined list, not the coarse one.
	images, err := engine.Query(ctx, Request{
		PromptTerms: []string{"tree"},
		SortBy:      "newest",
		Limit:       2,
		Offset:      1,
	})
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "/img/2.png", images[0].Path)
	assert.Equal(t, "/img/0.png", images[1].Path)
}

func TestQueryFastPathPagination(t *testing.T) {
	engine, s := newTestEngine(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		seed(t, s, models.Image{
			Path:      fmt.Sprintf("/img/%d.png", i),
			Filename:  fmt.Sprintf("%d.png", i),
			Generator: "webui",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}

	images, err := engine.Query(ctx, Request{
		Generators: []string{"webui"},
		SortBy:     "oldest",
		Limit:      2,
		Offset:     1,
	})
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "/img/1.png", images[0].Path)
	assert.Equal(t, "/img/2.png", images[1].Path)
}

func TestCountIgnoresPagination(t *testing.T) {
	engine, s := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		seed(t, s, models.Image{
			Path:     fmt.Sprintf("/img/%d.png", i),
			Filename: fmt.Sprintf("%d.png", i),
			Prompt:   "tree",
		})
	}

	count, err := engine.Count(ctx, Request{PromptTerms: []string{"tree"}, Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestQueryEmptyRequestReturnsAll(t *testing.T) {
	engine, s := newTestEngine(t)
	ctx := context.Background()

	seed(t, s, models.Image{Path: "/img/a.png", Filename: "a.png"})
	seed(t, s, models.Image{Path: "/img/b.png", Filename: "b.png"})

	images, err := engine.Query(ctx, Request{})
	require.NoError(t, err)
	assert.Len(t, images, 2)
}
