package tagger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mirelo/sdsort/pkg/db/models"
	"github.com/mirelo/sdsort/pkg/db/store"
)

// ExportEntry is one tagged image in a JSON export.
type ExportEntry struct {
	Path string  `json:"path"`
	Tags []Score `json:"tags"`
}

// ExportTags collects every tagged image's tag set as JSON.
func ExportTags(ctx context.Context, s store.ImageStore) ([]byte, error) {
	images, err := s.QueryImages(ctx, store.ImageQuery{SortBy: "oldest"})
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	entries := make([]ExportEntry, 0, len(images))
	for i := range images {
		img := &images[i]
		if img.TaggedAt == nil {
			continue
		}

		tags, err := s.GetImageTags(ctx, img.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load tags for '%s': %w", img.Path, err)
		}

		scores := make([]Score, 0, len(tags))
		for _, tag := range tags {
			scores = append(scores, Score{Tag: tag.Tag, Confidence: tag.Confidence})
		}
		entries = append(entries, ExportEntry{Path: img.Path, Tags: scores})
	}

	return json.MarshalIndent(entries, "", "  ")
}

// ImportTags applies a JSON export to the catalog, matching entries by
// path. Already-tagged images are skipped unless overwrite is set.
// Returns the number of images updated.
func ImportTags(ctx context.Context, s store.ImageStore, data []byte, overwrite bool) (int, error) {
	var entries []ExportEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return 0, fmt.Errorf("failed to parse tag export: %w", err)
	}

	imported := 0
	for _, entry := range entries {
		img, err := s.GetImageByPath(ctx, entry.Path)
		if err != nil {
			continue
		}
		if img.TaggedAt != nil && !overwrite {
			continue
		}

		scores := ExclusiveRatings(entry.Tags, models.IsRatingTag)
		tags := make([]models.Tag, 0, len(scores))
		for _, score := range scores {
			tags = append(tags, models.Tag{
				ImageID:    img.ID,
				Tag:        score.Tag,
				Confidence: score.Confidence,
			})
		}

		if err := s.ReplaceTags(ctx, img.ID, tags); err != nil {
			return imported, fmt.Errorf("failed to import tags for '%s': %w", entry.Path, err)
		}
		imported++
	}

	return imported, nil
}

// SidecarOptions control per-image .txt tag file export.
type SidecarOptions struct {
	Blacklist []string `json:"blacklist"`
	Prefix    string   `json:"prefix"`
}

// ExportSidecars writes a comma-separated .txt tag file next to each
// tagged image. Blacklisted tags are dropped; the prefix, when set, is
// prepended as the first entry. Returns the number of files written.
func ExportSidecars(ctx context.Context, s store.ImageStore, opts SidecarOptions) (int, error) {
	images, err := s.QueryImages(ctx, store.ImageQuery{SortBy: "oldest"})
	if err != nil {
		return 0, fmt.Errorf("failed to list images: %w", err)
	}

	blacklist := make(map[string]bool, len(opts.Blacklist))
	for _, tag := range opts.Blacklist {
		blacklist[strings.ToLower(strings.TrimSpace(tag))] = true
	}

	written := 0
	for i := range images {
		img := &images[i]
		if img.TaggedAt == nil {
			continue
		}

		tags, err := s.GetImageTags(ctx, img.ID)
		if err != nil {
			return written, fmt.Errorf("failed to load tags for '%s': %w", img.Path, err)
		}

		var parts []string
		if opts.Prefix != "" {
			parts = append(parts, opts.Prefix)
		}
		for _, tag := range tags {
			if blacklist[strings.ToLower(tag.Tag)] {
				continue
			}
			parts = append(parts, tag.Tag)
		}

		ext := filepath.Ext(img.Path)
		sidecar := strings.TrimSuffix(img.Path, ext) + ".txt"
		if err := os.WriteFile(sidecar, []byte(strings.Join(parts, ", ")), 0o644); err != nil {
			return written, fmt.Errorf("failed to write '%s': %w", sidecar, err)
		}
		written++
	}

	return written, nil
}
