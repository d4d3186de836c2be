// Package tagger integrates an external tag-inference collaborator
// with the catalog: running it over image batches, enforcing rating
// exclusivity and exporting/importing tag data.
package tagger

import (
	"context"
	"fmt"
)

// Score is a single inferred tag with its confidence.
type Score struct {
	Tag        string  `json:"tag"`
	Confidence float64 `json:"confidence"`
}

// Tagger produces tag scores for an image file. Implementations wrap
// external inference backends; this package never runs inference
// itself.
type Tagger interface {
	Tag(ctx context.Context, path string) ([]Score, error)
}

// Settings selects and parameterizes the inference backend.
type Settings struct {
	ModelName          string  `json:"model_name"`
	ModelPath          string  `json:"model_path"`
	TagsPath           string  `json:"tags_path"`
	Threshold          float64 `json:"threshold"`
	CharacterThreshold float64 `json:"character_threshold"`
	UseGPU             bool    `json:"use_gpu"`
}

// Key identifies the backend instance these settings would produce.
// Threshold changes do not require a new backend.
func (s Settings) Key() string {
	return fmt.Sprintf("%s|%s|%s|%t", s.ModelName, s.ModelPath, s.TagsPath, s.UseGPU)
}

// Factory creates a tagger for the given settings.
type Factory func(settings Settings) (Tagger, error)

// DisabledFactory is used when no inference backend is configured.
// Every tagging attempt fails with a clear error.
func DisabledFactory(Settings) (Tagger, error) {
	return nil, fmt.Errorf("no tagger backend is configured")
}

// ExclusiveRatings enforces the single-rating invariant on a score
// list: of all rating tags present, only the highest-confidence one
// survives. Order of the remaining scores is preserved.
func ExclusiveRatings(scores []Score, isRating func(string) bool) []Score {
	best := -1
	for i, score := range scores {
		if !isRating(score.Tag) {
			continue
		}
		if best < 0 || score.Confidence > scores[best].Confidence {
			best = i
		}
	}
	if best < 0 {
		return scores
	}

	result := make([]Score, 0, len(scores))
	for i, score := range scores {
		if isRating(score.Tag) && i != best {
			continue
		}
		result = append(result, score)
	}
	return result
}
