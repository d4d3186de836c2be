package provenance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirelo/sdsort/pkg/db/models"
)

const comfyGraph = `{
	"4": {"class_type": "CheckpointLoaderSimple", "inputs": {"ckpt_name": "sdxl_base.safetensors"}},
	"6": {"class_type": "CLIPTextEncode", "inputs": {"text": "a castle on a hill"}},
	"7": {"class_type": "CLIPTextEncode", "inputs": {"text": "blurry, lowres"}},
	"10": {"class_type": "LoraLoader", "inputs": {"lora_name": "castle_style.safetensors"}}
}`

const webuiParams = "a cat, forest\nNegative prompt: bad hands\nSteps: 20, Sampler: Euler a, Model: anything_v5"

func TestExtractComfyUI(t *testing.T) {
	p := Extract(map[string]string{"prompt": comfyGraph})

	assert.Equal(t, models.GeneratorComfyUI, p.Generator)
	assert.Equal(t, "a castle on a hill", p.Prompt)
	assert.Equal(t, "blurry, lowres", p.NegativePrompt)
	assert.Equal(t, "sdxl_base.safetensors", p.Checkpoint)
	assert.Equal(t, []string{"castle_style.safetensors"}, p.Loras)
}

func TestExtractComfyUIWinsOverWebUI(t *testing.T) {
	// Detection is priority ordered: a parseable graph beats a
	// parameters block in the same file
	p := Extract(map[string]string{
		"prompt":     comfyGraph,
		"parameters": webuiParams,
	})
	assert.Equal(t, models.GeneratorComfyUI, p.Generator)
}

func TestExtractComfyUIWorkflowOnly(t *testing.T) {
	p := Extract(map[string]string{"workflow": `{"nodes": []}`})
	assert.Equal(t, models.GeneratorComfyUI, p.Generator)
	assert.Empty(t, p.Prompt)
}

func TestExtractComfyUIMalformedGraphFallsThrough(t *testing.T) {
	// A prompt field that is not a graph must not classify as comfyui
	p := Extract(map[string]string{
		"prompt":     "just some text",
		"parameters": webuiParams,
	})
	assert.Equal(t, models.GeneratorWebUI, p.Generator)
}

func TestExtractNovelAIComment(t *testing.T) {
	p := Extract(map[string]string{
		"Comment": `{"prompt": "1girl, silver hair", "uc": "lowres, bad anatomy", "steps": 28}`,
	})

	assert.Equal(t, models.GeneratorNovelAI, p.Generator)
	assert.Equal(t, "1girl, silver hair", p.Prompt)
	assert.Equal(t, "lowres, bad anatomy", p.NegativePrompt)
}

func TestExtractNovelAIMalformedComment(t *testing.T) {
	p := Extract(map[string]string{"Comment": "not json at all"})
	assert.Equal(t, models.GeneratorUnknown, p.Generator)
}

func TestExtractWebUIParameters(t *testing.T) {
	p := Extract(map[string]string{"parameters": webuiParams})

	require.Equal(t, models.GeneratorWebUI, p.Generator)
	assert.Equal(t, "a cat, forest", p.Prompt)
	assert.Equal(t, "bad hands", p.NegativePrompt)
	assert.Equal(t, "anything_v5", p.Checkpoint)
}

func TestExtractWebUINoNegative(t *testing.T) {
	p := Extract(map[string]string{
		"parameters": "a lone tree\nSteps: 30, Sampler: DPM++ 2M, Model: dreamshaper",
	})

	assert.Equal(t, "a lone tree", p.Prompt)
	assert.Empty(t, p.NegativePrompt)
	assert.Equal(t, "dreamshaper", p.Checkpoint)
}

func TestExtractWebUILoras(t *testing.T) {
	p := Extract(map[string]string{
		"parameters": "a cat <lora:detail_tweaker:0.8>, forest <lora:forest_style:1.0> <lora:detail_tweaker:0.8>\nSteps: 20, Sampler: Euler a",
	})

	assert.Equal(t, []string{"detail_tweaker", "forest_style"}, p.Loras)
}

func TestExtractForge(t *testing.T) {
	p := Extract(map[string]string{
		"parameters": "a cat\nSteps: 20, Sampler: Euler a, Version: f2.0.1-forge",
	})
	assert.Equal(t, models.GeneratorForge, p.Generator)
}

func TestExtractWebUIFromUserComment(t *testing.T) {
	p := Extract(map[string]string{
		"UserComment": "UNICODE\x00a cat, forest\nNegative prompt: bad\nSteps: 20, Sampler: Euler a",
	})

	require.Equal(t, models.GeneratorWebUI, p.Generator)
	assert.Equal(t, "a cat, forest", p.Prompt)
}

func TestExtractUserCommentWithoutParametersIgnored(t *testing.T) {
	p := Extract(map[string]string{"UserComment": "just a holiday photo caption"})
	assert.Equal(t, models.GeneratorUnknown, p.Generator)
}

func TestExtractSoftwareTag(t *testing.T) {
	p := Extract(map[string]string{"Software": "NovelAI"})
	assert.Equal(t, models.GeneratorNovelAI, p.Generator)
	assert.Empty(t, p.Prompt)
}

func TestExtractEmptyMetadata(t *testing.T) {
	p := Extract(map[string]string{})
	assert.Equal(t, models.GeneratorUnknown, p.Generator)
}
