package citation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/docsage/docsage/internal/models"
)

// Wire format emitted by the answering model:
//
//	<cite doc="Doc A" page="3" section="3.2 Rent Review">quoted text</cite>
//
// The section attribute is optional and inner text may span lines.
// Malformed tags simply do not match; no partial citations are produced.
var citeRe = regexp.MustCompile(`(?s)<cite\s+doc="([^"]+)"\s+page="(\d+)"(?:\s+section="([^"]*)")?\s*>(.*?)</cite>`)

// Extract parses all well-formed <cite> tags out of an answer.
func Extract(answer string) []models.Citation {
	var citations []models.Citation

	for _, match := range citeRe.FindAllStringSubmatch(answer, -1) {
		page, err := strconv.Atoi(match[2])
		if err != nil {
			continue
		}
		citations = append(citations, models.Citation{
			DocLabel: match[1],
			Page:     page,
			Section:  match[3],
			Text:     strings.TrimSpace(match[4]),
		})
	}

	return citations
}

// Strip rewrites each tag to a readable inline reference:
// `quoted text [Doc A, 3.2 Rent Review, p.3]`.
func Strip(answer string) string {
	return citeRe.ReplaceAllStringFunc(answer, func(tag string) string {
		match := citeRe.FindStringSubmatch(tag)
		quoted := strings.TrimSpace(match[4])
		if match[3] != "" {
			return fmt.Sprintf("%s [%s, %s, p.%s]", quoted, match[1], match[3], match[2])
		}
		return fmt.Sprintf("%s [%s, p.%s]", quoted, match[1], match[2])
	})
}

// Count reports the number of well-formed citations in an answer.
func Count(answer string) int {
	return len(citeRe.FindAllString(answer, -1))
}

// KnownPages builds the grounding index: document label -> set of pages
// actually present in that document's chunks.
func KnownPages(chunks []models.ScopedChunk) map[string]map[int]bool {
	known := make(map[string]map[int]bool)
	for _, chunk := range chunks {
		pages := known[chunk.DocLabel]
		if pages == nil {
			pages = make(map[int]bool)
			known[chunk.DocLabel] = pages
		}
		pages[chunk.PageNumber] = true
	}
	return known
}

// IsGrounded reports whether the citation names a document label in scope
// AND a page present in that document's indexed chunks. Pure lookup over
// already-known metadata; no retrieval happens here.
func IsGrounded(c models.Citation, known map[string]map[int]bool) bool {
	pages, ok := known[c.DocLabel]
	if !ok {
		return false
	}
	return pages[c.Page]
}
