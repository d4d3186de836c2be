// Package index derives the normalized token and lora key sets for a
// stored image. The filter engine's exact refinement and the library
// counts both call these functions; keeping them as the single
// implementation is what keeps displayed counts and filter results in
// agreement.
package index

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/mirelo/sdsort/internal/provenance"
)

var (
	// XML-like tag pairs and inline lora references are markup, not
	// prompt content
	xmlPairPattern = regexp.MustCompile(`<[^>]+>[^<]*</[^>]+>`)
	loraTagPattern = regexp.MustCompile(`<lora:[^>]+>`)
	anyTagPattern  = regexp.MustCompile(`<[^>]+>`)

	leadingParens = regexp.MustCompile(`^\(+|\)+$`)
	weightSuffix  = regexp.MustCompile(`:\d+\.?\d*\)?$`)

	loraRefPattern = regexp.MustCompile(`(?i)<lora:([^:>]+)(?:[^>]*)?>`)
)

// PromptTokens returns the set of normalized comma-delimited tokens in
// a prompt. Tokens are whole phrases: the prompt is split on commas
// only, never on whitespace.
func PromptTokens(prompt string) map[string]struct{} {
	tokens := make(map[string]struct{})
	if prompt == "" {
		return tokens
	}

	clean := xmlPairPattern.ReplaceAllString(prompt, "")
	clean = loraTagPattern.ReplaceAllString(clean, "")
	clean = anyTagPattern.ReplaceAllString(clean, "")

	for _, segment := range strings.Split(clean, ",") {
		token := strings.TrimSpace(segment)
		if token == "" {
			continue
		}

		// Strip attention parentheses and ":1.2" weight suffixes
		token = leadingParens.ReplaceAllString(token, "")
		token = weightSuffix.ReplaceAllString(token, "")
		token = strings.TrimSpace(token)
		if len(token) <= 1 {
			continue
		}

		normalized := provenance.NormalizeToken(token)
		if len(normalized) > 1 {
			tokens[normalized] = struct{}{}
		}
	}

	return tokens
}

// LoraNames returns the set of normalized lora names for an image:
// every entry of the stored lora list plus every inline <lora:...>
// reference in the prompt, all normalized identically.
func LoraNames(lorasJSON, prompt string) map[string]struct{} {
	names := make(map[string]struct{})

	if lorasJSON != "" {
		var loras []string
		if err := json.Unmarshal([]byte(lorasJSON), &loras); err == nil {
			for _, name := range loras {
				addLoraName(names, name)
			}
		}
	}

	if prompt != "" {
		for _, match := range loraRefPattern.FindAllStringSubmatch(prompt, -1) {
			addLoraName(names, match[1])
		}
	}

	return names
}

func addLoraName(names map[string]struct{}, raw string) {
	if len(raw) <= 2 {
		return
	}
	normalized := provenance.NormalizeLoraName(raw)
	if len(normalized) > 2 {
		names[normalized] = struct{}{}
	}
}
