package models

import (
	"encoding/json"
	"time"
)

// Generator families detectable from embedded metadata.
const (
	GeneratorComfyUI = "comfyui"
	GeneratorNovelAI = "novelai"
	GeneratorWebUI   = "webui"
	GeneratorForge   = "forge"
	GeneratorUnknown = "unknown"
)

// Image represents an indexed generated image and its extracted provenance
type Image struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Path     string `gorm:"type:text;not null;uniqueIndex" json:"path"`
	Filename string `gorm:"type:text;not null" json:"filename"`

	// Extracted provenance
	Generator      string `gorm:"type:text;default:unknown;index" json:"generator"`
	Prompt         string `gorm:"type:text" json:"prompt"`
	NegativePrompt string `gorm:"type:text" json:"negative_prompt"`
	Checkpoint     string `gorm:"type:text" json:"checkpoint"`
	Loras          string `gorm:"type:text" json:"loras"` // JSON array of lora names
	MetadataJSON   string `gorm:"type:text" json:"metadata_json"`

	// File properties
	Width    int   `json:"width"`
	Height   int   `json:"height"`
	FileSize int64 `json:"file_size"`

	// Timestamps
	CreatedAt time.Time  `json:"created_at"` // file modification time
	IndexedAt time.Time  `gorm:"autoCreateTime" json:"indexed_at"`
	TaggedAt  *time.Time `json:"tagged_at"`

	// Relationships
	Tags []Tag `gorm:"foreignKey:ImageID;constraint:OnDelete:CASCADE" json:"-"`
}

// LoraList decodes the serialized lora column. A malformed or empty
// column yields an empty list, never an error.
func (i *Image) LoraList() []string {
	if i.Loras == "" {
		return nil
	}
	var loras []string
	if err := json.Unmarshal([]byte(i.Loras), &loras); err != nil {
		return nil
	}
	return loras
}

// SetLoraList serializes the lora names into the stored column.
func (i *Image) SetLoraList(loras []string) {
	if len(loras) == 0 {
		i.Loras = ""
		return
	}
	data, err := json.Marshal(loras)
	if err != nil {
		i.Loras = ""
		return
	}
	i.Loras = string(data)
}
