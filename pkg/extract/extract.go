package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

// FromFile extracts text from a local file, dispatching on extension.
// The result carries "--- Page N ---" markers so the chunker can keep
// page attribution; plain text and HTML count as a single page.
func FromFile(path string) (string, int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return PDF(path)
	case ".html", ".htm":
		return HTML(path)
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", 0, fmt.Errorf("failed to read file: %w", err)
		}
		text := string(data)
		// Pre-marked text passes through untouched.
		if strings.Contains(text, "--- Page ") {
			return text, 0, nil
		}
		return text, 1, nil
	default:
		return "", 0, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
}

// PDF extracts per-page plain text with page markers. Pages that yield no
// text are skipped; their numbers stay reserved so citations keep matching
// the printed document.
func PDF(path string) (string, int, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	totalPages := reader.NumPage()
	var pages []string

	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("failed to extract text from page %d: %w", pageNum, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		pages = append(pages, fmt.Sprintf("--- Page %d ---\n%s", pageNum, text))
	}

	return strings.Join(pages, "\n\n"), totalPages, nil
}

// HTML extracts the readable text of an HTML file as a one-page document.
func HTML(path string) (string, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open HTML file: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", 0, fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, nav, header, footer").Remove()

	var paragraphs []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, td, pre").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	if len(paragraphs) == 0 {
		if text := strings.TrimSpace(doc.Find("body").Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}

	return strings.Join(paragraphs, "\n\n"), 1, nil
}
