package provenance

import (
	"encoding/json"
	"strings"

	"github.com/mirelo/sdsort/pkg/db/models"
)

// extractNovelAIComment matches the NovelAI "Comment" field: a JSON
// object holding "prompt" and the undesired-content list "uc". NovelAI
// does not expose checkpoint or lora references this way.
func extractNovelAIComment(metadata map[string]string) (Provenance, bool) {
	raw, ok := metadata["Comment"]
	if !ok {
		return Provenance{}, false
	}

	var comment map[string]any
	if err := json.Unmarshal([]byte(raw), &comment); err != nil {
		return Provenance{}, false
	}

	_, hasPrompt := comment["prompt"]
	_, hasUC := comment["uc"]
	if !hasPrompt && !hasUC {
		return Provenance{}, false
	}

	p := Provenance{Generator: models.GeneratorNovelAI}
	if text, ok := comment["prompt"].(string); ok {
		p.Prompt = text
	}
	if text, ok := comment["uc"].(string); ok {
		p.NegativePrompt = text
	}
	return p, true
}

// extractNovelAIDescription matches older NovelAI exports that put the
// prompt directly into the "Description" field.
func extractNovelAIDescription(metadata map[string]string) (Provenance, bool) {
	desc, ok := metadata["Description"]
	if !ok {
		return Provenance{}, false
	}
	if !strings.Contains(strings.ToLower(desc), "novelai") {
		return Provenance{}, false
	}
	return Provenance{
		Generator: models.GeneratorNovelAI,
		Prompt:    desc,
	}, true
}

// extractSoftwareTag is the last resort before "unknown": a Software
// field naming a known tool classifies the generator but yields no
// prompt fields.
func extractSoftwareTag(metadata map[string]string) (Provenance, bool) {
	software, ok := metadata["Software"]
	if !ok {
		return Provenance{}, false
	}

	lower := strings.ToLower(software)
	if strings.Contains(lower, "novelai") {
		return Provenance{Generator: models.GeneratorNovelAI}, true
	}
	if strings.Contains(lower, "comfyui") {
		return Provenance{Generator: models.GeneratorComfyUI}, true
	}
	return Provenance{}, false
}
