// Package scanner indexes image folders into the catalog and performs
// the move/copy file operations that keep catalog paths current.
package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mirelo/sdsort/internal/provenance"
	"github.com/mirelo/sdsort/pkg/db/models"
	"github.com/mirelo/sdsort/pkg/db/store"
	"github.com/mirelo/sdsort/pkg/log"
)

// imageExtensions are the container formats the scanner picks up.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
	".bmp":  true,
}

// Result summarizes one scan pass.
type Result struct {
	Total       int            `json:"total"`
	Indexed     int            `json:"indexed"`
	Errors      int            `json:"errors"`
	ByGenerator map[string]int `json:"by_generator"`
}

// ProgressFunc reports scan progress: current file number, total file
// count and the filename being processed.
type ProgressFunc func(current, total int, filename string)

// Scanner extracts provenance from image files and upserts the
// resulting records.
type Scanner struct {
	store store.ImageStore
	log   log.LoggerService
}

// NewScanner creates a scanner writing to the given store.
func NewScanner(s store.ImageStore, logger log.LoggerService) *Scanner {
	return &Scanner{
		store: s,
		log:   logger,
	}
}

// ScanFolder walks a folder for images and indexes each one. A single
// file failing to extract is counted and skipped, never fatal to the
// batch.
func (s *Scanner) ScanFolder(ctx context.Context, folder string, recursive bool, progress ProgressFunc) (*Result, error) {
	if err := ValidateFolderPath(folder, false); err != nil {
		return nil, fmt.Errorf("invalid scan folder: %w", err)
	}

	files, err := collectImageFiles(folder, recursive)
	if err != nil {
		return nil, fmt.Errorf("failed to collect image files: %w", err)
	}

	result := &Result{
		Total:       len(files),
		ByGenerator: make(map[string]int),
	}

	for i, path := range files {
		if progress != nil {
			progress(i+1, result.Total, filepath.Base(path))
		}

		generator, err := s.IndexFile(ctx, path)
		if err != nil {
			s.log.Error("Failed to index '%s': %v", path, err)
			result.Errors++
			continue
		}

		result.Indexed++
		result.ByGenerator[generator]++
	}

	return result, nil
}

// IndexFile extracts provenance from a single image file and upserts
// its catalog record. Returns the detected generator family.
func (s *Scanner) IndexFile(ctx context.Context, path string) (string, error) {
	info, err := provenance.ReadFile(path)
	if err != nil {
		return "", err
	}

	prov := provenance.Extract(info.Metadata)

	metadataJSON, err := json.Marshal(info.Metadata)
	if err != nil {
		metadataJSON = []byte("{}")
	}

	image := models.Image{
		Path:           path,
		Filename:       filepath.Base(path),
		Generator:      prov.Generator,
		Prompt:         prov.Prompt,
		NegativePrompt: prov.NegativePrompt,
		Checkpoint:     prov.Checkpoint,
		MetadataJSON:   string(metadataJSON),
		Width:          info.Width,
		Height:         info.Height,
		FileSize:       info.FileSize,
		CreatedAt:      info.ModTime,
	}
	image.SetLoraList(prov.Loras)

	if err := s.store.UpsertImage(ctx, &image); err != nil {
		return "", fmt.Errorf("failed to store image record: %w", err)
	}

	return prov.Generator, nil
}

// MoveImage moves an image file into a destination folder, resolving
// filename conflicts with a numeric suffix, and updates the catalog
// path. Returns the new path.
func (s *Scanner) MoveImage(ctx context.Context, id uint, currentPath, destFolder string) (string, error) {
	if err := os.MkdirAll(destFolder, 0o755); err != nil {
		return "", fmt.Errorf("failed to create destination folder: %w", err)
	}

	newPath := resolveConflict(destFolder, filepath.Base(currentPath), currentPath)
	if err := moveFile(currentPath, newPath); err != nil {
		return "", fmt.Errorf("failed to move image: %w", err)
	}

	if err := s.store.UpdateImagePath(ctx, id, newPath, filepath.Base(newPath)); err != nil {
		return "", fmt.Errorf("failed to update image path: %w", err)
	}

	return newPath, nil
}

// CopyImage copies an image file into a destination folder, resolving
// filename conflicts with a numeric suffix. The catalog is unchanged.
func (s *Scanner) CopyImage(srcPath, destFolder string) (string, error) {
	if err := os.MkdirAll(destFolder, 0o755); err != nil {
		return "", fmt.Errorf("failed to create destination folder: %w", err)
	}

	newPath := resolveConflict(destFolder, filepath.Base(srcPath), "")
	if err := copyFile(srcPath, newPath); err != nil {
		return "", fmt.Errorf("failed to copy image: %w", err)
	}

	return newPath, nil
}

func collectImageFiles(folder string, recursive bool) ([]string, error) {
	var files []string

	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != folder {
				return filepath.SkipDir
			}
			return nil
		}
		if imageExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// resolveConflict picks a free filename in destFolder, appending _1,
// _2, ... when the name is taken. A file already sitting at its target
// path keeps its name.
func resolveConflict(destFolder, filename, currentPath string) string {
	newPath := filepath.Join(destFolder, filename)
	if newPath == currentPath {
		return newPath
	}

	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	counter := 1
	for {
		if _, err := os.Stat(newPath); os.IsNotExist(err) {
			return newPath
		}
		newPath = filepath.Join(destFolder, fmt.Sprintf("%s_%d%s", base, counter, ext))
		counter++
	}
}

// moveFile renames when possible and falls back to copy-and-remove for
// cross-device moves.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
