package pagesource

import (
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/higaso4186/ir-articles/pkg/core/schema"
)

// HTMLSource splits an HTML disclosure into pseudo-pages. Explicit page
// containers (div.page or [data-page]) win; otherwise the document is cut
// at top-level headings so each section reads as one page.
type HTMLSource struct{}

var _ Source = (*HTMLSource)(nil)

func (s *HTMLSource) ExtractTextPerPage(path string) ([]schema.Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML %s: %w", path, err)
	}

	var pages []schema.Page
	containers := doc.Find("div.page, [data-page]")
	if containers.Length() > 0 {
		containers.Each(func(i int, sel *goquery.Selection) {
			pages = append(pages, schema.Page{Page: i + 1, Text: normalizeText(sel.Text())})
		})
		return pages, nil
	}

	// No explicit pagination; cut at h1/h2 boundaries.
	var current strings.Builder
	flush := func() {
		text := normalizeText(current.String())
		if text != "" {
			pages = append(pages, schema.Page{Page: len(pages) + 1, Text: text})
		}
		current.Reset()
	}
	doc.Find("body").Children().Each(func(i int, sel *goquery.Selection) {
		if goquery.NodeName(sel) == "h1" || goquery.NodeName(sel) == "h2" {
			flush()
		}
		current.WriteString(sel.Text())
		current.WriteString("\n")
	})
	flush()

	if len(pages) == 0 {
		if text := normalizeText(doc.Text()); text != "" {
			pages = append(pages, schema.Page{Page: 1, Text: text})
		}
	}
	return pages, nil
}

// RenderPagesToImages reports the page count only; HTML sources have no
// rasterized page images.
func (s *HTMLSource) RenderPagesToImages(path string, dir string, dpi int) (int, error) {
	pages, err := s.ExtractTextPerPage(path)
	if err != nil {
		return 0, err
	}
	return len(pages), nil
}

func (s *HTMLSource) SHA256File(path string) (string, error) {
	return SHA256File(path)
}

func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	var kept []string
	for _, line := range lines {
		if t := strings.TrimSpace(line); t != "" {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, "\n")
}
