// Package provenance recovers generation metadata embedded in images
// by Stable Diffusion tooling. It classifies the generator family and
// extracts prompt, negative prompt, checkpoint and lora references
// from the loosely-structured key/value pairs each tool writes.
package provenance

import (
	"github.com/mirelo/sdsort/pkg/db/models"
)

// Provenance is the canonical extraction result for one image.
type Provenance struct {
	Generator      string
	Prompt         string
	NegativePrompt string
	Checkpoint     string
	Loras          []string
}

// Extract classifies the generator family from a flat metadata map and
// pulls out the fields that family can populate. Detection is a
// priority-ordered chain; the first matching heuristic wins. A parse
// failure inside a step never aborts extraction, it just means that
// step does not match.
func Extract(metadata map[string]string) Provenance {
	if p, ok := extractComfyUI(metadata); ok {
		return p
	}
	if p, ok := extractNovelAIComment(metadata); ok {
		return p
	}
	if p, ok := extractNovelAIDescription(metadata); ok {
		return p
	}
	if p, ok := extractWebUI(metadata); ok {
		return p
	}
	if p, ok := extractSoftwareTag(metadata); ok {
		return p
	}
	return Provenance{Generator: models.GeneratorUnknown}
}
