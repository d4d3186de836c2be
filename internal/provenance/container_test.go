package provenance

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPNG assembles a minimal PNG container around the given text
// chunks. CRCs are garbage; the chunk walker never checks them.
func buildPNG(chunks ...[]byte) []byte {
	var buf bytes.Buffer
	buf.Write(pngMagic)
	for _, chunk := range chunks {
		buf.Write(chunk)
	}
	buf.Write(pngChunk("IEND", nil))
	return buf.Bytes()
}

func pngChunk(typ string, payload []byte) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(len(payload)))
	buf.WriteString(typ)
	buf.Write(payload)
	buf.Write([]byte{0, 0, 0, 0}) // CRC, unchecked
	return buf.Bytes()
}

func textChunk(key, value string) []byte {
	payload := append([]byte(key), 0)
	payload = append(payload, []byte(value)...)
	return pngChunk("tEXt", payload)
}

func TestReadPNGText(t *testing.T) {
	metadata := make(map[string]string)
	data := buildPNG(
		textChunk("parameters", "a cat\nSteps: 20, Sampler: Euler a"),
		textChunk("Software", "NovelAI"),
	)

	readPNGText(data, metadata)

	assert.Equal(t, "a cat\nSteps: 20, Sampler: Euler a", metadata["parameters"])
	assert.Equal(t, "NovelAI", metadata["Software"])
}

func TestReadPNGTextCompressed(t *testing.T) {
	var compressed bytes.Buffer
	w := zlib.NewWriter(&compressed)
	w.Write([]byte("compressed prompt text"))
	w.Close()

	payload := append([]byte("Comment"), 0, 0) // keyword, compression method
	payload = append(payload, compressed.Bytes()...)

	metadata := make(map[string]string)
	readPNGText(buildPNG(pngChunk("zTXt", payload)), metadata)

	assert.Equal(t, "compressed prompt text", metadata["Comment"])
}

func TestReadPNGTextTruncated(t *testing.T) {
	data := buildPNG(textChunk("parameters", "text"))
	metadata := make(map[string]string)

	// A truncated container must not panic or loop
	readPNGText(data[:len(data)-10], metadata)
}

func buildWebP(tag string, payload []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(4+8+len(payload)))
	buf.WriteString("WEBP")
	buf.WriteString(tag)
	binary.Write(&buf, binary.LittleEndian, uint32(len(payload)))
	buf.Write(payload)
	if len(payload)%2 == 1 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func TestReadWebPXMPParameters(t *testing.T) {
	xmp := `<x:xmpmeta><exif:parameters>a cat, forest
Negative prompt: bad
Steps: 20, Sampler: Euler a</exif:parameters></x:xmpmeta>`

	metadata := make(map[string]string)
	readWebPChunks(buildWebP("XMP ", []byte(xmp)), metadata)

	require.Contains(t, metadata, "parameters")
	assert.Contains(t, metadata["parameters"], "a cat, forest")
	assert.Contains(t, metadata, "xmp")
}

func TestReadWebPXMPEmbeddedGraph(t *testing.T) {
	xmp := `<xmp>prompt: {"1": {"class_type": "CLIPTextEncode", "inputs": {"text": "hills"}}}</xmp>`

	metadata := make(map[string]string)
	readWebPChunks(buildWebP("XMP ", []byte(xmp)), metadata)

	require.Contains(t, metadata, "prompt")

	p := Extract(metadata)
	assert.Equal(t, "hills", p.Prompt)
}

func TestReadExifHeuristic(t *testing.T) {
	// Parameter text buried between binary EXIF structures
	payload := append([]byte{0x00, 0x01, 0x02}, []byte("a cat, forest\nSteps: 20, Sampler: Euler a, Seed: 1")...)
	payload = append(payload, 0xFF, 0xFE)

	metadata := make(map[string]string)
	readExifHeuristic(payload, metadata)

	require.Contains(t, metadata, "UserComment")
	assert.Contains(t, metadata["UserComment"], "Steps: 20")
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.png")

	data := buildPNG(textChunk("parameters", "a cat\nSteps: 20, Sampler: Euler a"))
	require.NoError(t, os.WriteFile(path, data, 0o644))

	info, err := ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, int64(len(data)), info.FileSize)
	assert.Equal(t, "a cat\nSteps: 20, Sampler: Euler a", info.Metadata["parameters"])
	assert.False(t, info.ModTime.IsZero())
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.png"))
	assert.Error(t, err)
}

func TestReadFileGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	info, err := ReadFile(path)
	require.NoError(t, err, "corrupt containers yield empty metadata, not an error")
	assert.Empty(t, info.Metadata)
}
