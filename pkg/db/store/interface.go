package store

import (
	"context"

	"github.com/mirelo/sdsort/pkg/db/models"
)

// ImageQuery describes the coarse, relationally-expressible part of a
// catalog query. Substring and equality predicates only; exact
// token/lora matching happens in the filter engine's refinement pass.
type ImageQuery struct {
	Generators     []string // OR
	TagsLike       []string // AND, each substring-matched independently
	Ratings        []string // OR, untagged images always included
	Checkpoints    []string // OR, exact
	LoraSubstrings []string // OR, substring against loras/metadata/prompt
	Search         string   // substring against prompt or filename

	MinWidth  int
	MaxWidth  int
	MinHeight int
	MaxHeight int

	// square, landscape or portrait; anything else is ignored
	AspectRatio string

	SortBy string
	Limit  int // <= 0 means no limit
	Offset int
}

// TagCount pairs a tag with the number of rows carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// GeneratorCount pairs a generator family with its image count.
type GeneratorCount struct {
	Generator string `json:"generator"`
	Count     int    `json:"count"`
}

// CheckpointCount pairs a checkpoint name with its image count.
type CheckpointCount struct {
	Checkpoint string `json:"checkpoint"`
	Count      int    `json:"count"`
}

// ImageStore defines the interface for catalog persistence
type ImageStore interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	Health(ctx context.Context) error

	// Image operations
	UpsertImage(ctx context.Context, image *models.Image) error
	GetImage(ctx context.Context, id uint) (*models.Image, error)
	GetImageByPath(ctx context.Context, path string) (*models.Image, error)
	QueryImages(ctx context.Context, query ImageQuery) ([]models.Image, error)
	ListUntagged(ctx context.Context, limit int) ([]models.Image, error)
	UpdateImagePath(ctx context.Context, id uint, newPath, newFilename string) error
	DeleteImage(ctx context.Context, id uint) error
	CountImages(ctx context.Context) (int64, error)
	ClearAll(ctx context.Context) error

	// Tag operations
	ReplaceTags(ctx context.Context, imageID uint, tags []models.Tag) error
	GetImageTags(ctx context.Context, imageID uint) ([]models.Tag, error)
	RepairRatings(ctx context.Context) (int, error)

	// Aggregates
	TagCounts(ctx context.Context) ([]TagCount, error)
	GeneratorCounts(ctx context.Context) ([]GeneratorCount, error)
	CheckpointCounts(ctx context.Context, limit int) ([]CheckpointCount, error)
	ImagesWithPrompt(ctx context.Context) ([]models.Image, error)
	ImagesWithLoras(ctx context.Context) ([]models.Image, error)
}
