package chunker

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/docsage/docsage/internal/models"
	"github.com/docsage/docsage/internal/types"
)

// Page boundary marker produced by the extraction step.
var pageMarkerRe = regexp.MustCompile(`(?m)^--- Page (\d+) ---$`)

// Heading forms that start a new section: "ARTICLE IV", "SECTION 3",
// "SCHEDULE B", "Clause 7.2", and bare numbered clauses like
// "3.2 Rent Review". The label sticks until the next match so chunks deep
// inside a section keep a section header even when the heading paragraph
// landed in an earlier chunk.
var (
	keywordHeadingRe = regexp.MustCompile(`(?i)^(ARTICLE|SECTION|SCHEDULE|EXHIBIT|PART|CLAUSE)\s+([0-9]+(\.[0-9]+)*|[IVXLCDM]+|[A-Z])\b`)
	numberedClauseRe = regexp.MustCompile(`^\d+(\.\d+)*\.?\s+\S`)
)

const maxHeadingLen = 100

type ChunkerConfig struct {
	TargetTokens  int // flush threshold per chunk
	OverlapTokens int // max size of the carried-over trailing paragraph
}

type Chunker struct {
	config    ChunkerConfig
	tokenizer types.Tokenizer
}

func NewWithConfig(config ChunkerConfig, tokenizer types.Tokenizer) Chunker {
	if config.TargetTokens == 0 {
		config.TargetTokens = 500
	}
	if config.OverlapTokens == 0 {
		config.OverlapTokens = 50
	}

	return Chunker{
		config:    config,
		tokenizer: tokenizer,
	}
}

type page struct {
	number int
	text   string
}

// Chunk splits extracted text into page-aware, token-bounded chunks.
// Chunks never span page boundaries. A single paragraph larger than the
// target budget is still placed whole into one chunk.
func (c *Chunker) Chunk(extractedText string) []models.Chunk {
	if strings.TrimSpace(extractedText) == "" {
		return nil
	}

	pages := splitPages(extractedText)

	var chunks []models.Chunk
	currentSection := ""

	for _, pg := range pages {
		var parts []string
		currentTokens := 0

		flush := func() {
			chunks = append(chunks, models.Chunk{
				Content:       strings.Join(parts, "\n\n"),
				PageNumber:    pg.number,
				SectionHeader: currentSection,
				TokenCount:    currentTokens,
			})
		}

		for _, para := range strings.Split(pg.text, "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}

			paraTokens := c.tokenizer.CountTokens(para)

			// Flush before registering this paragraph's heading: a heading
			// that arrives over budget closes out the previous section's
			// chunk, which keeps the previous label.
			if currentTokens > 0 && currentTokens+paraTokens > c.config.TargetTokens {
				flush()

				// Carry the trailing paragraph into the next chunk when it
				// fits the overlap budget on its own.
				last := parts[len(parts)-1]
				if lastTokens := c.tokenizer.CountTokens(last); lastTokens <= c.config.OverlapTokens {
					parts = []string{last}
					currentTokens = lastTokens
				} else {
					parts = nil
					currentTokens = 0
				}
			}

			if heading := matchHeading(para); heading != "" {
				currentSection = heading
			}

			parts = append(parts, para)
			currentTokens += paraTokens
		}

		if len(parts) > 0 {
			flush()
		}
	}

	return chunks
}

// splitPages breaks the text on page markers. Text before the first marker
// belongs to page 1; with no markers at all the whole text is page 1.
func splitPages(text string) []page {
	matches := pageMarkerRe.FindAllStringSubmatchIndex(text, -1)

	if len(matches) == 0 {
		return []page{{number: 1, text: strings.TrimSpace(text)}}
	}

	var pages []page

	if pre := strings.TrimSpace(text[:matches[0][0]]); pre != "" {
		pages = append(pages, page{number: 1, text: pre})
	}

	for i, m := range matches {
		number, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}

		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		body := strings.TrimSpace(text[m[1]:end])
		if body == "" {
			continue
		}

		pages = append(pages, page{number: number, text: body})
	}

	return pages
}

// matchHeading reports the section label a paragraph introduces, or "".
// Only the paragraph's first line is considered, and it must be short
// enough to plausibly be a heading.
func matchHeading(para string) string {
	line := para
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)

	if line == "" || len(line) > maxHeadingLen {
		return ""
	}

	if keywordHeadingRe.MatchString(line) || numberedClauseRe.MatchString(line) {
		return line
	}

	return ""
}
