// Package filter executes combined filter/sort/paginate queries over
// the image catalog using a two-phase strategy: a coarse relational
// query, then an exact in-memory refinement pass when token or lora
// criteria demand it.
package filter

import (
	"context"

	"github.com/mirelo/sdsort/internal/index"
	"github.com/mirelo/sdsort/pkg/db/models"
	"github.com/mirelo/sdsort/pkg/db/store"
)

// Engine evaluates catalog queries against an ImageStore.
type Engine struct {
	store store.ImageStore
}

// NewEngine creates a filter engine backed by the given store.
func NewEngine(s store.ImageStore) *Engine {
	return &Engine{store: s}
}

// Query runs the two-phase evaluation.
//
// Phase 1 pushes every relationally-expressible criterion into the
// store. Without token or lora criteria, the store also applies order,
// limit and offset, and the result is final.
//
// Phase 2 fetches all coarse candidates in order, recomputes each
// candidate's normalized token and lora sets with the same functions
// used for library counts, and keeps a candidate only if every
// requested prompt term is present (AND) and, when loras were
// requested, at least one of them is present (OR). Pagination applies
// to the refined list, never the coarse one.
func (e *Engine) Query(ctx context.Context, req Request) ([]models.Image, error) {
	query := req.toStoreQuery()

	if !req.needsRefinement() {
		return e.store.QueryImages(ctx, query)
	}

	// Refinement needs every coarse candidate, so limit and offset
	// move to the post-refinement step
	query.Limit = 0
	query.Offset = 0

	candidates, err := e.store.QueryImages(ctx, query)
	if err != nil {
		return nil, err
	}

	terms := req.normalizedTerms()
	wantedLoras := req.normalizedLoras()

	refined := make([]models.Image, 0, len(candidates))
	for i := range candidates {
		img := &candidates[i]

		if len(terms) > 0 {
			tokens := index.PromptTokens(img.Prompt)
			if !containsAll(tokens, terms) {
				continue
			}
		}

		if len(wantedLoras) > 0 {
			names := index.LoraNames(img.Loras, img.Prompt)
			if !containsAny(names, wantedLoras) {
				continue
			}
		}

		refined = append(refined, *img)
	}

	return paginate(refined, req.Limit, req.Offset), nil
}

// Count returns the number of images matching the request, ignoring
// pagination.
func (e *Engine) Count(ctx context.Context, req Request) (int, error) {
	req.Limit = 0
	req.Offset = 0
	images, err := e.Query(ctx, req)
	if err != nil {
		return 0, err
	}
	return len(images), nil
}

func containsAll(set map[string]struct{}, keys []string) bool {
	for _, key := range keys {
		if _, ok := set[key]; !ok {
			return false
		}
	}
	return true
}

func containsAny(set map[string]struct{}, keys []string) bool {
	for _, key := range keys {
		if _, ok := set[key]; ok {
			return true
		}
	}
	return false
}

func paginate(images []models.Image, limit, offset int) []models.Image {
	if offset > 0 {
		if offset >= len(images) {
			return []models.Image{}
		}
		images = images[offset:]
	}
	if limit > 0 && limit < len(images) {
		images = images[:limit]
	}
	return images
}
