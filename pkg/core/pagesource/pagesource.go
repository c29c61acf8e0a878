// Package pagesource abstracts where page text and page images come from.
// Rasterization and OCR happen upstream; this package only ingests their
// artifacts (a pages.jsonl plus pre-rendered images) or derives pseudo-pages
// from an HTML disclosure.
package pagesource

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/higaso4186/ir-articles/pkg/core/schema"
)

// Source supplies per-page text, page images and the document hash.
type Source interface {
	ExtractTextPerPage(path string) ([]schema.Page, error)
	RenderPagesToImages(path string, dir string, dpi int) (int, error)
	SHA256File(path string) (string, error)
}

// ForPath picks the source for a document path: HTML disclosures are split
// into pseudo-pages, everything else is served from pre-extracted artifacts.
func ForPath(path string, pagesPath string, imagesDir string) Source {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return &HTMLSource{}
	}
	return &JSONLSource{PagesPath: pagesPath, ImagesDir: imagesDir}
}

// SHA256File hashes a file's content.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SaveJSONL writes pages as one JSON object per line.
func SaveJSONL(pages []schema.Page, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, p := range pages {
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("failed to encode page %d: %w", p.Page, err)
		}
	}
	return w.Flush()
}

// LoadJSONL reads pages back from a pages.jsonl artifact.
func LoadJSONL(path string) ([]schema.Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var pages []schema.Page
	scanner := bufio.NewScanner(f)
	// Disclosure pages can be long; raise the line limit well past default.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var p schema.Page
		if err := json.Unmarshal([]byte(line), &p); err != nil {
			return nil, fmt.Errorf("failed to parse page line: %w", err)
		}
		pages = append(pages, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return pages, nil
}

// JSONLSource serves pre-extracted pages and pre-rendered page images.
// PagesPath overrides the document path for text extraction when set, so a
// run can pair an original PDF with externally produced artifacts.
type JSONLSource struct {
	PagesPath string
	ImagesDir string
}

var _ Source = (*JSONLSource)(nil)

func (s *JSONLSource) ExtractTextPerPage(path string) ([]schema.Page, error) {
	src := s.PagesPath
	if src == "" {
		src = path
	}
	return LoadJSONL(src)
}

// RenderPagesToImages copies the pre-rendered p%03d.png files into dir and
// returns the page count. Missing images are not an error; the article
// simply references fewer figures.
func (s *JSONLSource) RenderPagesToImages(path string, dir string, dpi int) (int, error) {
	pages, err := s.ExtractTextPerPage(path)
	if err != nil {
		return 0, err
	}
	if s.ImagesDir == "" {
		return len(pages), nil
	}
	for _, p := range pages {
		name := fmt.Sprintf("p%03d.png", p.Page)
		data, err := os.ReadFile(filepath.Join(s.ImagesDir, name))
		if err != nil {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return 0, fmt.Errorf("failed to write image %s: %w", name, err)
		}
	}
	return len(pages), nil
}

func (s *JSONLSource) SHA256File(path string) (string, error) {
	return SHA256File(path)
}
