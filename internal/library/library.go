// Package library computes the browsable catalog libraries: tag,
// prompt-token, lora, checkpoint and generator counts plus overall
// stats. Token and lora counts use the same index functions as the
// filter engine, so a library count always equals the matching filter
// result size.
package library

import (
	"context"
	"sort"

	"github.com/mirelo/sdsort/internal/index"
	"github.com/mirelo/sdsort/pkg/db/store"
)

// Entry pairs a library key with the number of images carrying it.
type Entry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stats summarizes the catalog.
type Stats struct {
	TotalImages int64                  `json:"total_images"`
	Generators  []store.GeneratorCount `json:"generators"`
	Checkpoints []store.CheckpointCount `json:"checkpoints"`
	TagCount    int                    `json:"tag_count"`
}

// Library answers count queries over the catalog.
type Library struct {
	store store.ImageStore
}

// NewLibrary creates a library over the given store.
func NewLibrary(s store.ImageStore) *Library {
	return &Library{store: s}
}

// PromptTokenCounts counts, per normalized prompt token, the number of
// images whose prompt contains it. Entries below minCount are dropped;
// results are ordered by count descending, then name.
func (l *Library) PromptTokenCounts(ctx context.Context, minCount int) ([]Entry, error) {
	images, err := l.store.ImagesWithPrompt(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for i := range images {
		for token := range index.PromptTokens(images[i].Prompt) {
			counts[token]++
		}
	}

	return sortedEntries(counts, minCount), nil
}

// LoraCounts counts, per normalized lora name, the number of images
// referencing it either in the stored list or inline in the prompt.
func (l *Library) LoraCounts(ctx context.Context, minCount int) ([]Entry, error) {
	images, err := l.store.ImagesWithLoras(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for i := range images {
		for name := range index.LoraNames(images[i].Loras, images[i].Prompt) {
			counts[name]++
		}
	}

	return sortedEntries(counts, minCount), nil
}

// TagCounts returns the tag library.
func (l *Library) TagCounts(ctx context.Context) ([]store.TagCount, error) {
	return l.store.TagCounts(ctx)
}

// GeneratorCounts returns image counts per generator family.
func (l *Library) GeneratorCounts(ctx context.Context) ([]store.GeneratorCount, error) {
	return l.store.GeneratorCounts(ctx)
}

// CheckpointCounts returns image counts per checkpoint.
func (l *Library) CheckpointCounts(ctx context.Context, limit int) ([]store.CheckpointCount, error) {
	return l.store.CheckpointCounts(ctx, limit)
}

// Stats assembles the overall catalog summary.
func (l *Library) Stats(ctx context.Context) (*Stats, error) {
	total, err := l.store.CountImages(ctx)
	if err != nil {
		return nil, err
	}
	generators, err := l.store.GeneratorCounts(ctx)
	if err != nil {
		return nil, err
	}
	checkpoints, err := l.store.CheckpointCounts(ctx, 10)
	if err != nil {
		return nil, err
	}
	tags, err := l.store.TagCounts(ctx)
	if err != nil {
		return nil, err
	}

	return &Stats{
		TotalImages: total,
		Generators:  generators,
		Checkpoints: checkpoints,
		TagCount:    len(tags),
	}, nil
}

func sortedEntries(counts map[string]int, minCount int) []Entry {
	entries := make([]Entry, 0, len(counts))
	for name, count := range counts {
		if count < minCount {
			continue
		}
		entries = append(entries, Entry{Name: name, Count: count})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Name < entries[j].Name
	})
	return entries
}
