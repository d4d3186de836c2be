package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mirelo/sdsort/pkg/db/migrations"
	"github.com/mirelo/sdsort/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SQLiteStore implements ImageStore using SQLite
type SQLiteStore struct {
	db   *gorm.DB
	path string
}

// DB returns the underlying GORM database instance
func (s *SQLiteStore) DB() *gorm.DB {
	return s.db
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path     string
	LogLevel logger.LogLevel
}

// NewSQLiteStore creates a new SQLite-backed image store
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	// Default to silent logging
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Silent
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(cfg.LogLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	return &SQLiteStore{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Connect initializes the database connection
func (s *SQLiteStore) Connect(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(1) // SQLite only supports 1 writer
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

// Migrate runs all pending database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return migrations.NewMigrator(s.db).Migrate(ctx)
}

// Health checks database connectivity
func (s *SQLiteStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Image operations

// UpsertImage inserts an image record or, when the path already
// exists, replaces the prior record in place. Re-indexing never
// produces duplicate rows for the same path.
func (s *SQLiteStore) UpsertImage(ctx context.Context, image *models.Image) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"filename", "generator", "prompt", "negative_prompt",
			"metadata_json", "width", "height", "file_size",
			"checkpoint", "loras", "created_at", "indexed_at",
		}),
	}).Create(image).Error
}

func (s *SQLiteStore) GetImage(ctx context.Context, id uint) (*models.Image, error) {
	var image models.Image
	err := s.db.WithContext(ctx).First(&image, id).Error
	if err != nil {
		return nil, err
	}
	return &image, nil
}

func (s *SQLiteStore) GetImageByPath(ctx context.Context, path string) (*models.Image, error) {
	var image models.Image
	err := s.db.WithContext(ctx).Where("path = ?", path).First(&image).Error
	if err != nil {
		return nil, err
	}
	return &image, nil
}

// sortClauses maps sort keys to their ORDER BY expressions. Keys that
// need a computed column get it through querySelect.
var sortClauses = map[string]string{
	"newest":          "images.created_at DESC",
	"oldest":          "images.created_at ASC",
	"name_asc":        "images.filename ASC",
	"name_desc":       "images.filename DESC",
	"generator":       "images.generator ASC, images.created_at DESC",
	"prompt_length":   "LENGTH(COALESCE(images.prompt, '')) DESC",
	"tag_count":       "tag_count DESC",
	"rating":          "rating_order ASC",
	"character_count": "char_count DESC",
	"file_size":       "images.file_size DESC",
	"file_size_asc":   "images.file_size ASC",
	"random":          "RANDOM()",
}

func querySelect(sortBy string) string {
	switch sortBy {
	case "tag_count":
		return "DISTINCT images.*, (SELECT COUNT(*) FROM tags t WHERE t.image_id = images.id) AS tag_count"
	case "character_count":
		return "DISTINCT images.*, (SELECT COUNT(*) FROM tags t WHERE t.image_id = images.id AND t.tag LIKE '%character%') AS char_count"
	case "rating":
		return `DISTINCT images.*, CASE
			WHEN EXISTS (SELECT 1 FROM tags t WHERE t.image_id = images.id AND t.tag = 'explicit') THEN 1
			WHEN EXISTS (SELECT 1 FROM tags t WHERE t.image_id = images.id AND t.tag = 'questionable') THEN 2
			WHEN EXISTS (SELECT 1 FROM tags t WHERE t.image_id = images.id AND t.tag = 'sensitive') THEN 3
			WHEN EXISTS (SELECT 1 FROM tags t WHERE t.image_id = images.id AND t.tag = 'general') THEN 4
			ELSE 5
		END AS rating_order`
	default:
		return "DISTINCT images.*"
	}
}

// effectiveRatings returns the rating set to filter on. Selecting all
// four ratings means "no rating filter at all".
func effectiveRatings(ratings []string) []string {
	if len(ratings) == 0 {
		return nil
	}
	selected := make(map[string]bool, len(ratings))
	for _, r := range ratings {
		selected[r] = true
	}
	all := true
	for _, r := range models.RatingTags {
		if !selected[r] {
			all = false
			break
		}
	}
	if all {
		return nil
	}
	return ratings
}

// QueryImages executes the coarse relational query. Rows come back in
// the requested order; limit and offset are applied only when set, so
// the filter engine can fetch all candidates for refinement.
func (s *SQLiteStore) QueryImages(ctx context.Context, q ImageQuery) ([]models.Image, error) {
	db := s.db.WithContext(ctx).
		Model(&models.Image{}).
		Select(querySelect(q.SortBy))

	// Tag filters use AND logic: one join per requested tag
	for i, tag := range q.TagsLike {
		alias := fmt.Sprintf("ft%d", i)
		db = db.Joins(
			fmt.Sprintf("INNER JOIN tags %s ON images.id = %s.image_id AND %s.tag LIKE ?", alias, alias, alias),
			"%"+tag+"%",
		)
	}

	if len(q.Generators) > 0 {
		db = db.Where("images.generator IN ?", q.Generators)
	}

	// Rating filter: match a requested rating OR be wholly untagged
	if ratings := effectiveRatings(q.Ratings); len(ratings) > 0 {
		db = db.Where(
			"(EXISTS (SELECT 1 FROM tags rt WHERE rt.image_id = images.id AND rt.tag IN ?) OR images.tagged_at IS NULL)",
			ratings,
		)
	}

	if len(q.Checkpoints) > 0 {
		db = db.Where("images.checkpoint IN ?", q.Checkpoints)
	}

	// Coarse lora match against the stored list, the raw metadata blob
	// and the prompt. This is a superset; refinement decides.
	if len(q.LoraSubstrings) > 0 {
		conds := make([]string, 0, len(q.LoraSubstrings))
		args := make([]any, 0, len(q.LoraSubstrings)*3)
		for _, lora := range q.LoraSubstrings {
			pattern := "%" + lora + "%"
			conds = append(conds, "(images.loras LIKE ? OR images.metadata_json LIKE ? OR images.prompt LIKE ?)")
			args = append(args, pattern, pattern, pattern)
		}
		db = db.Where("("+strings.Join(conds, " OR ")+")", args...)
	}

	if q.Search != "" {
		pattern := "%" + strings.ToLower(strings.ReplaceAll(q.Search, "_", " ")) + "%"
		db = db.Where(
			"(REPLACE(LOWER(images.prompt), '_', ' ') LIKE ? OR REPLACE(LOWER(images.filename), '_', ' ') LIKE ?)",
			pattern, pattern,
		)
	}

	if q.MinWidth > 0 {
		db = db.Where("images.width >= ?", q.MinWidth)
	}
	if q.MaxWidth > 0 {
		db = db.Where("images.width <= ?", q.MaxWidth)
	}
	if q.MinHeight > 0 {
		db = db.Where("images.height >= ?", q.MinHeight)
	}
	if q.MaxHeight > 0 {
		db = db.Where("images.height <= ?", q.MaxHeight)
	}

	switch q.AspectRatio {
	case "square":
		db = db.Where("images.height > 0 AND ABS(CAST(images.width AS REAL) / images.height - 1.0) < 0.1")
	case "landscape":
		db = db.Where("images.height > 0 AND CAST(images.width AS REAL) / images.height > 1.1")
	case "portrait":
		db = db.Where("images.height > 0 AND CAST(images.width AS REAL) / images.height < 0.9")
	default:
		// Unrecognized values are ignored, not rejected
	}

	order, ok := sortClauses[q.SortBy]
	if !ok {
		order = sortClauses["newest"]
	}
	db = db.Order(order)

	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	if q.Offset > 0 {
		db = db.Offset(q.Offset)
	}

	var images []models.Image
	err := db.Find(&images).Error
	return images, err
}

func (s *SQLiteStore) ListUntagged(ctx context.Context, limit int) ([]models.Image, error) {
	var images []models.Image
	db := s.db.WithContext(ctx).Where("tagged_at IS NULL")
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Find(&images).Error
	return images, err
}

func (s *SQLiteStore) UpdateImagePath(ctx context.Context, id uint, newPath, newFilename string) error {
	return s.db.WithContext(ctx).
		Model(&models.Image{}).
		Where("id = ?", id).
		Updates(map[string]any{"path": newPath, "filename": newFilename}).Error
}

func (s *SQLiteStore) DeleteImage(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("image_id = ?", id).Delete(&models.Tag{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Image{}, id).Error
	})
}

func (s *SQLiteStore) CountImages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Image{}).Count(&count).Error
	return count, err
}

// ClearAll removes every image and tag record from the catalog.
func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Tag{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&models.Image{}).Error
	})
}

// Tag operations

// ReplaceTags swaps an image's tag set wholesale and stamps tagged_at.
// Tags are never patched incrementally.
func (s *SQLiteStore) ReplaceTags(ctx context.Context, imageID uint, tags []models.Tag) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("image_id = ?", imageID).Delete(&models.Tag{}).Error; err != nil {
			return err
		}
		for i := range tags {
			tags[i].ID = 0
			tags[i].ImageID = imageID
		}
		if len(tags) > 0 {
			if err := tx.Create(&tags).Error; err != nil {
				return err
			}
		}
		now := time.Now().UTC()
		return tx.Model(&models.Image{}).
			Where("id = ?", imageID).
			Update("tagged_at", &now).Error
	})
}

func (s *SQLiteStore) GetImageTags(ctx context.Context, imageID uint) ([]models.Tag, error) {
	var tags []models.Tag
	err := s.db.WithContext(ctx).
		Where("image_id = ?", imageID).
		Order("confidence DESC").
		Find(&tags).Error
	return tags, err
}

// RepairRatings enforces rating exclusivity on historical rows: for
// every image carrying more than one rating tag, only the
// highest-confidence one survives. Returns the number of images fixed.
func (s *SQLiteStore) RepairRatings(ctx context.Context) (int, error) {
	fixed := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var imageIDs []uint
		if err := tx.Model(&models.Tag{}).
			Where("tag IN ?", models.RatingTags).
			Group("image_id").
			Having("COUNT(*) > 1").
			Pluck("image_id", &imageIDs).Error; err != nil {
			return err
		}

		for _, id := range imageIDs {
			var ratings []models.Tag
			if err := tx.Where("image_id = ? AND tag IN ?", id, models.RatingTags).
				Order("confidence DESC").
				Find(&ratings).Error; err != nil {
				return err
			}
			if len(ratings) <= 1 {
				continue
			}

			drop := make([]uint, 0, len(ratings)-1)
			for _, r := range ratings[1:] {
				drop = append(drop, r.ID)
			}
			if err := tx.Delete(&models.Tag{}, drop).Error; err != nil {
				return err
			}
			fixed++
		}
		return nil
	})
	return fixed, err
}

// Aggregates

func (s *SQLiteStore) TagCounts(ctx context.Context) ([]TagCount, error) {
	var counts []TagCount
	err := s.db.WithContext(ctx).
		Model(&models.Tag{}).
		Select("tag, COUNT(*) AS count").
		Group("tag").
		Order("count DESC").
		Scan(&counts).Error
	return counts, err
}

func (s *SQLiteStore) GeneratorCounts(ctx context.Context) ([]GeneratorCount, error) {
	var counts []GeneratorCount
	err := s.db.WithContext(ctx).
		Model(&models.Image{}).
		Select("generator, COUNT(*) AS count").
		Group("generator").
		Order("count DESC").
		Scan(&counts).Error
	return counts, err
}

func (s *SQLiteStore) CheckpointCounts(ctx context.Context, limit int) ([]CheckpointCount, error) {
	var counts []CheckpointCount
	db := s.db.WithContext(ctx).
		Model(&models.Image{}).
		Select("checkpoint, COUNT(*) AS count").
		Where("checkpoint IS NOT NULL AND checkpoint != ''").
		Group("checkpoint").
		Order("count DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Scan(&counts).Error
	return counts, err
}

// ImagesWithPrompt returns every image carrying prompt text, for
// library token counting.
func (s *SQLiteStore) ImagesWithPrompt(ctx context.Context) ([]models.Image, error) {
	var images []models.Image
	err := s.db.WithContext(ctx).
		Where("prompt IS NOT NULL AND prompt != ''").
		Find(&images).Error
	return images, err
}

// ImagesWithLoras returns every image with a stored lora list or an
// inline <lora:...> reference in its prompt.
func (s *SQLiteStore) ImagesWithLoras(ctx context.Context) ([]models.Image, error) {
	var images []models.Image
	err := s.db.WithContext(ctx).
		Where("(loras IS NOT NULL AND loras != '' AND loras != '[]') OR prompt LIKE '%<lora:%'").
		Find(&images).Error
	return images, err
}
