package provenance

import (
	"strconv"
	"strings"
)

// loraExtensions are the model file extensions stripped from lora
// references during normalization.
var loraExtensions = []string{".safetensors", ".ckpt", ".pt", ".pth", ".bin"}

// NormalizeToken canonicalizes a prompt token for exact matching:
// lowercase, underscores become spaces, surrounding whitespace is
// trimmed. Idempotent, so keys can be re-normalized safely.
//
// "Best_quality", "best quality" and "BEST QUALITY" all map to
// "best quality".
func NormalizeToken(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(strings.ToLower(text), "_", " "))
}

// NormalizeLoraName canonicalizes a lora reference for exact matching:
//
//	"my_lora:0.8"          -> "my_lora"
//	"My_Lora.safetensors"  -> "my_lora"
//	"my-lora_v2.ckpt"      -> "my-lora_v2"
//
// Weight stripping and extension stripping are independent passes,
// applied in that order.
func NormalizeLoraName(raw string) string {
	name := raw

	// Drop a trailing ":<weight>" suffix when the suffix is numeric
	if idx := strings.LastIndex(name, ":"); idx >= 0 {
		if _, err := strconv.ParseFloat(strings.TrimSpace(name[idx+1:]), 64); err == nil {
			name = name[:idx]
		}
	}

	// Strip one trailing model file extension
	lower := strings.ToLower(name)
	for _, ext := range loraExtensions {
		if strings.HasSuffix(lower, ext) {
			name = name[:len(name)-len(ext)]
			break
		}
	}

	return strings.TrimSpace(strings.ToLower(name))
}
