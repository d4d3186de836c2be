package models

// Rating tags are mutually exclusive per image. At most one of these
// may be attached to an image at any time.
var RatingTags = []string{"general", "sensitive", "questionable", "explicit"}

// IsRatingTag reports whether tag is one of the reserved rating values.
func IsRatingTag(tag string) bool {
	for _, r := range RatingTags {
		if tag == r {
			return true
		}
	}
	return false
}

// Tag represents a label attached to an image with a confidence score
type Tag struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	ImageID    uint    `gorm:"not null;index:idx_tags_image_id" json:"image_id"`
	Tag        string  `gorm:"type:text;not null;index:idx_tags_tag" json:"tag"`
	Confidence float64 `gorm:"default:1.0" json:"confidence"`

	// Relationships
	Image Image `gorm:"foreignKey:ImageID;references:ID" json:"-"`
}
