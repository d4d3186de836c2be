package provenance

import (
	"regexp"
	"strings"

	"github.com/mirelo/sdsort/pkg/db/models"
)

var (
	// Inline lora references: <lora:name:weight>
	webuiLoraPattern = regexp.MustCompile(`<lora:([^:]+):[^>]+>`)
	// Checkpoint: "Model: <value>" terminated by a comma
	webuiModelPattern = regexp.MustCompile(`Model:\s*([^,]+)`)
	// First generation-parameter line
	webuiStepsPattern = regexp.MustCompile(`^Steps:\s*\d+`)
)

// extractWebUI matches the A1111 WebUI "parameters" text block, either
// under its canonical key or stashed into Parameters/Comment/UserComment
// by EXIF-writing forks. Refined to forge when the text mentions it.
func extractWebUI(metadata map[string]string) (Provenance, bool) {
	if params, ok := metadata["parameters"]; ok {
		return parseParameters(params), true
	}

	for _, key := range []string{"Parameters", "Comment", "UserComment"} {
		params, ok := metadata[key]
		if !ok {
			continue
		}
		// EXIF UserComment carries an encoding prefix
		if strings.HasPrefix(params, "UNICODE") || strings.HasPrefix(params, "ASCII") {
			params = strings.Trim(params[7:], "\x00 ")
		}
		if strings.Contains(params, "Steps:") && strings.Contains(params, "Sampler:") {
			return parseParameters(params), true
		}
	}

	return Provenance{}, false
}

// parseParameters splits a WebUI parameters block into positive
// prompt, negative prompt, checkpoint and lora references.
//
// Format: prompt lines, an optional "Negative prompt:" section, then a
// "Steps: N, Sampler: ..." parameter line.
func parseParameters(params string) Provenance {
	p := Provenance{Generator: models.GeneratorWebUI}
	if strings.Contains(strings.ToLower(params), "forge") {
		p.Generator = models.GeneratorForge
	}
	if params == "" {
		return p
	}

	// Collect distinct lora names in order of first appearance
	seen := make(map[string]bool)
	for _, match := range webuiLoraPattern.FindAllStringSubmatch(params, -1) {
		name := match[1]
		if !seen[name] {
			seen[name] = true
			p.Loras = append(p.Loras, name)
		}
	}

	if match := webuiModelPattern.FindStringSubmatch(params); match != nil {
		p.Checkpoint = strings.TrimSpace(match[1])
	}

	lines := strings.Split(params, "\n")

	negStart := -1
	for i, line := range lines {
		if strings.HasPrefix(line, "Negative prompt:") {
			negStart = i
			break
		}
	}

	paramStart := -1
	for i, line := range lines {
		if webuiStepsPattern.MatchString(line) {
			paramStart = i
			break
		}
	}

	switch {
	case negStart > 0:
		p.Prompt = strings.TrimSpace(strings.Join(lines[:negStart], "\n"))
	case paramStart > 0:
		p.Prompt = strings.TrimSpace(strings.Join(lines[:paramStart], "\n"))
	default:
		p.Prompt = params
	}

	if negStart >= 0 {
		negEnd := len(lines)
		if paramStart > negStart {
			negEnd = paramStart
		}
		negLines := append([]string(nil), lines[negStart:negEnd]...)
		negLines[0] = strings.TrimSpace(strings.Replace(negLines[0], "Negative prompt:", "", 1))
		p.NegativePrompt = strings.TrimSpace(strings.Join(negLines, "\n"))
	}

	return p
}
