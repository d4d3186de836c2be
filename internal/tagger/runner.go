package tagger

import (
	"context"
	"fmt"
	"sync"

	"github.com/mirelo/sdsort/internal/jobs"
	"github.com/mirelo/sdsort/pkg/db/models"
	"github.com/mirelo/sdsort/pkg/db/store"
	"github.com/mirelo/sdsort/pkg/log"
)

// Options selects the images a tagging run covers. With neither IDs
// nor RetagAll, only untagged images are processed.
type Options struct {
	Settings Settings `json:"settings"`
	IDs      []uint   `json:"ids"`
	RetagAll bool     `json:"retag_all"`
}

// Result summarizes a tagging run.
type Result struct {
	Total  int `json:"total"`
	Tagged int `json:"tagged"`
	Errors int `json:"errors"`
}

// Runner drives the tagger over catalog images and writes the
// resulting tag sets. The backend is recreated only when the settings
// key changes.
type Runner struct {
	store   store.ImageStore
	factory Factory
	log     log.LoggerService

	mu     sync.Mutex
	key    string
	tagger Tagger
}

// NewRunner creates a tagging runner using the given backend factory.
func NewRunner(s store.ImageStore, factory Factory, logger log.LoggerService) *Runner {
	return &Runner{
		store:   s,
		factory: factory,
		log:     logger,
	}
}

func (r *Runner) resolveTagger(settings Settings) (Tagger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := settings.Key()
	if r.tagger != nil && r.key == key {
		return r.tagger, nil
	}

	tagger, err := r.factory(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create tagger backend: %w", err)
	}

	r.key = key
	r.tagger = tagger
	return tagger, nil
}

// TagImages runs the tagger over the selected images, replacing each
// image's tag set wholesale and stamping tagged_at. Per-image errors
// are counted, never fatal to the run.
func (r *Runner) TagImages(ctx context.Context, job *jobs.Job, opts Options) (*Result, error) {
	tagger, err := r.resolveTagger(opts.Settings)
	if err != nil {
		return nil, err
	}

	images, err := r.selectImages(ctx, opts)
	if err != nil {
		return nil, err
	}

	result := &Result{Total: len(images)}

	for i := range images {
		img := &images[i]
		if job != nil {
			job.Progress(i+1, result.Total, img.Filename)
		}

		scores, err := tagger.Tag(ctx, img.Path)
		if err != nil {
			r.log.Error("Failed to tag '%s': %v", img.Path, err)
			result.Errors++
			continue
		}

		scores = ExclusiveRatings(scores, models.IsRatingTag)

		tags := make([]models.Tag, 0, len(scores))
		for _, score := range scores {
			tags = append(tags, models.Tag{
				ImageID:    img.ID,
				Tag:        score.Tag,
				Confidence: score.Confidence,
			})
		}

		if err := r.store.ReplaceTags(ctx, img.ID, tags); err != nil {
			r.log.Error("Failed to store tags for '%s': %v", img.Path, err)
			result.Errors++
			continue
		}

		result.Tagged++
	}

	return result, nil
}

func (r *Runner) selectImages(ctx context.Context, opts Options) ([]models.Image, error) {
	if len(opts.IDs) > 0 {
		images := make([]models.Image, 0, len(opts.IDs))
		for _, id := range opts.IDs {
			img, err := r.store.GetImage(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("failed to load image %d: %w", id, err)
			}
			images = append(images, *img)
		}
		return images, nil
	}

	if opts.RetagAll {
		return r.store.QueryImages(ctx, store.ImageQuery{SortBy: "oldest"})
	}

	return r.store.ListUntagged(ctx, 0)
}
