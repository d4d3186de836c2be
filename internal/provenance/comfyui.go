package provenance

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/mirelo/sdsort/pkg/db/models"
)

// graphNode is one entry of a ComfyUI prompt graph.
type graphNode struct {
	ClassType string         `json:"class_type"`
	Inputs    map[string]any `json:"inputs"`
}

// extractComfyUI matches images carrying a ComfyUI node graph. A
// "prompt" field that decodes to a graph object wins outright; a
// "workflow" field alone still classifies as comfyui even when no
// graph can be parsed out of it.
func extractComfyUI(metadata map[string]string) (Provenance, bool) {
	if raw, ok := metadata["prompt"]; ok {
		if graph, ok := decodeGraph(raw); ok {
			p := parseGraph(graph)
			_, hasWorkflow := metadata["workflow"]
			if p.Prompt != "" || hasWorkflow {
				return p, true
			}
		}
	}

	if _, ok := metadata["workflow"]; ok {
		graph, _ := decodeGraph(metadata["prompt"])
		return parseGraph(graph), true
	}

	return Provenance{}, false
}

// decodeGraph decodes a prompt value into graph nodes. Entries that
// are not objects are dropped rather than failing the whole graph.
func decodeGraph(raw string) (map[string]graphNode, bool) {
	if raw == "" {
		return nil, false
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, false
	}

	graph := make(map[string]graphNode, len(entries))
	for id, entry := range entries {
		var node graphNode
		if err := json.Unmarshal(entry, &node); err != nil {
			continue
		}
		graph[id] = node
	}
	return graph, true
}

// parseGraph scans graph nodes for prompt encoders, checkpoint and
// lora loaders. Nodes are visited in node-id order so that "the first
// non-empty text becomes the positive prompt" is deterministic.
func parseGraph(graph map[string]graphNode) Provenance {
	p := Provenance{Generator: models.GeneratorComfyUI}
	if len(graph) == 0 {
		return p
	}

	ids := make([]string, 0, len(graph))
	for id := range graph {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool {
		na, errA := strconv.Atoi(ids[a])
		nb, errB := strconv.Atoi(ids[b])
		if errA == nil && errB == nil {
			return na < nb
		}
		return ids[a] < ids[b]
	})

	var positive, negative []string
	for _, id := range ids {
		node := graph[id]

		if strings.Contains(node.ClassType, "CLIPTextEncode") {
			if text, ok := node.Inputs["text"].(string); ok && text != "" {
				if len(positive) == 0 {
					positive = append(positive, text)
				} else {
					negative = append(negative, text)
				}
			}
		}

		if strings.Contains(node.ClassType, "CheckpointLoader") || node.ClassType == "CheckPointLoaderSimple" {
			if ckpt, ok := node.Inputs["ckpt_name"].(string); ok && ckpt != "" {
				p.Checkpoint = ckpt
			}
		}

		if strings.Contains(node.ClassType, "LoraLoader") {
			if lora, ok := node.Inputs["lora_name"].(string); ok && lora != "" {
				p.Loras = append(p.Loras, lora)
			}
		}

		// Samplers occasionally carry prompt text inline instead of a
		// node reference
		if text, ok := node.Inputs["positive"].(string); ok {
			positive = append(positive, text)
		}
		if text, ok := node.Inputs["negative"].(string); ok {
			negative = append(negative, text)
		}
	}

	p.Prompt = strings.Join(positive, " ")
	p.NegativePrompt = strings.Join(negative, " ")
	return p
}
