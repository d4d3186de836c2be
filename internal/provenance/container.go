package provenance

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	// Decoders registered for image.DecodeConfig
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// FileInfo holds everything recovered from an image container: the
// flat metadata map the detection chain runs on, plus the file
// properties stored alongside it.
type FileInfo struct {
	Metadata map[string]string
	Width    int
	Height   int
	FileSize int64
	ModTime  time.Time
}

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// ReadFile opens an image file and recovers its embedded metadata.
// Unsupported or corrupt containers yield an empty metadata map, not
// an error; only an unreadable file fails.
func ReadFile(path string) (*FileInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat image file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}

	info := &FileInfo{
		Metadata: make(map[string]string),
		FileSize: int64(len(data)),
		ModTime:  stat.ModTime(),
	}

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		info.Width = cfg.Width
		info.Height = cfg.Height
	}

	switch {
	case bytes.HasPrefix(data, pngMagic):
		readPNGText(data, info.Metadata)
	case isWebP(data):
		readWebPChunks(data, info.Metadata)
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8:
		readJPEGSegments(data, info.Metadata)
	}

	return info, nil
}

// readPNGText walks PNG chunks and collects the tEXt, zTXt and iTXt
// entries tools write their metadata into.
func readPNGText(data []byte, metadata map[string]string) {
	off := len(pngMagic)
	for off+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[off:]))
		typ := string(data[off+4 : off+8])
		start := off + 8
		end := start + length
		if length < 0 || end > len(data) {
			return
		}
		chunk := data[start:end]

		switch typ {
		case "tEXt":
			if key, value, ok := bytes.Cut(chunk, []byte{0}); ok {
				metadata[string(key)] = string(value)
			}
		case "zTXt":
			if key, rest, ok := bytes.Cut(chunk, []byte{0}); ok && len(rest) > 1 {
				// One byte compression method, then zlib data
				if value, ok := inflate(rest[1:]); ok {
					metadata[string(key)] = string(value)
				}
			}
		case "iTXt":
			readITXT(chunk, metadata)
		case "IEND":
			return
		}

		off = end + 4 // skip CRC
	}
}

// readITXT decodes an iTXt chunk: keyword, compression flag and
// method, language tag, translated keyword, then the text itself.
func readITXT(chunk []byte, metadata map[string]string) {
	key, rest, ok := bytes.Cut(chunk, []byte{0})
	if !ok || len(rest) < 2 {
		return
	}
	compressed := rest[0] == 1
	rest = rest[2:]

	if _, rest, ok = bytes.Cut(rest, []byte{0}); !ok { // language tag
		return
	}
	if _, rest, ok = bytes.Cut(rest, []byte{0}); !ok { // translated keyword
		return
	}

	if compressed {
		value, ok := inflate(rest)
		if !ok {
			return
		}
		metadata[string(key)] = string(value)
		return
	}
	metadata[string(key)] = string(rest)
}

func inflate(data []byte) ([]byte, bool) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, 64<<20))
	if err != nil {
		return nil, false
	}
	return out, true
}

func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		bytes.Equal(data[0:4], []byte("RIFF")) &&
		bytes.Equal(data[8:12], []byte("WEBP"))
}

// readWebPChunks walks the RIFF container. WebP hides its metadata in
// dedicated sub-chunks: "XMP " carries XML-packaged text, "EXIF" a
// raw EXIF blob. A missing sub-chunk is simply a no-op.
func readWebPChunks(data []byte, metadata map[string]string) {
	off := 12
	for off+8 <= len(data) {
		tag := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4:]))
		start := off + 8
		end := start + size
		if size < 0 || end > len(data) {
			return
		}
		payload := data[start:end]

		switch tag {
		case "XMP ":
			readXMPPayload(string(payload), metadata)
		case "EXIF":
			readExifHeuristic(payload, metadata)
		}

		off = end + (size & 1) // chunks are padded to even offsets
	}
}

var xmpParametersPattern = regexp.MustCompile(`(?s)parameters>(.*?)</`)

// readXMPPayload keeps the raw XMP text and runs a secondary pass
// over it: tools often stash the WebUI parameters string or a raw
// ComfyUI graph inside the XMP packet. Whatever is found is
// re-injected under the top-level key the detection chain expects.
func readXMPPayload(payload string, metadata map[string]string) {
	metadata["xmp"] = payload

	if _, ok := metadata["parameters"]; !ok && strings.Contains(payload, "parameters") {
		if match := xmpParametersPattern.FindStringSubmatch(payload); match != nil {
			metadata["parameters"] = strings.TrimSpace(match[1])
		} else if strings.Contains(payload, "Steps:") {
			metadata["parameters"] = payload
		}
	}

	if _, ok := metadata["prompt"]; !ok && strings.Contains(payload, "prompt") {
		start := strings.Index(payload, "{")
		end := strings.LastIndex(payload, "}")
		if start != -1 && end > start {
			candidate := payload[start : end+1]
			if json.Valid([]byte(candidate)) {
				metadata["prompt"] = candidate
			}
		}
	}
}

// readJPEGSegments walks JPEG markers up to the image data, collecting
// COM comments and scanning APP1 (EXIF) payloads for parameter text.
func readJPEGSegments(data []byte, metadata map[string]string) {
	off := 2
	for off+4 <= len(data) {
		if data[off] != 0xFF {
			return
		}
		marker := data[off+1]

		// Standalone markers carry no length
		if marker == 0x01 || (marker >= 0xD0 && marker <= 0xD8) {
			off += 2
			continue
		}
		if marker == 0xDA { // start of scan, metadata is behind us
			return
		}

		size := int(binary.BigEndian.Uint16(data[off+2:]))
		if size < 2 || off+2+size > len(data) {
			return
		}
		segment := data[off+4 : off+2+size]

		switch marker {
		case 0xFE: // COM
			if _, ok := metadata["Comment"]; !ok {
				metadata["Comment"] = strings.Trim(string(segment), "\x00")
			}
		case 0xE1: // APP1
			readExifHeuristic(segment, metadata)
		}

		off += 2 + size
	}
}

// readExifHeuristic pulls likely parameter text out of an EXIF blob
// without a full TIFF parse: a printable run holding a WebUI parameter
// block becomes UserComment, which the detection chain knows how to
// read.
func readExifHeuristic(payload []byte, metadata map[string]string) {
	if _, ok := metadata["UserComment"]; ok {
		return
	}
	for _, run := range printableRuns(payload, 32) {
		if strings.Contains(run, "Steps:") && strings.Contains(run, "Sampler:") {
			metadata["UserComment"] = run
			return
		}
	}
}

// printableRuns extracts runs of printable text of at least min bytes.
func printableRuns(data []byte, min int) []string {
	var runs []string
	start := -1
	for i, b := range data {
		printable := b == '\n' || b == '\r' || b == '\t' || (b >= 0x20 && b < 0x7f)
		if printable {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 && i-start >= min {
			runs = append(runs, string(data[start:i]))
		}
		start = -1
	}
	if start >= 0 && len(data)-start >= min {
		runs = append(runs, string(data[start:]))
	}
	return runs
}
