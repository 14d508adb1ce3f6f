package chunker_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsage/docsage/pkg/chunker"
)

// wordTokenizer counts whitespace-separated words, which keeps the budget
// arithmetic in tests easy to reason about.
type wordTokenizer struct{}

func (wordTokenizer) CountTokens(text string) int {
	return len(strings.Fields(text))
}

func newChunker(target, overlap int) chunker.Chunker {
	return chunker.NewWithConfig(chunker.ChunkerConfig{
		TargetTokens:  target,
		OverlapTokens: overlap,
	}, wordTokenizer{})
}

func words(n int, prefix string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(parts, " ")
}

func TestChunkEmptyInput(t *testing.T) {
	c := newChunker(500, 50)

	assert.Empty(t, c.Chunk(""))
	assert.Empty(t, c.Chunk("   \n\n\t  "))
}

func TestChunkTwoPages(t *testing.T) {
	c := newChunker(500, 50)

	text := "--- Page 1 ---\nShort para.\n\n--- Page 2 ---\nAnother para."
	chunks := c.Chunk(text)

	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Equal(t, "Short para.", chunks[0].Content)
	assert.Equal(t, 2, chunks[1].PageNumber)
	assert.Equal(t, "Another para.", chunks[1].Content)
}

func TestChunkNoMarkersIsPageOne(t *testing.T) {
	c := newChunker(500, 50)

	chunks := c.Chunk("Just some text without any markers.")

	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].PageNumber)
}

func TestChunkTextBeforeFirstMarker(t *testing.T) {
	c := newChunker(500, 50)

	text := "Cover sheet text.\n\n--- Page 3 ---\nBody of page three."
	chunks := c.Chunk(text)

	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Equal(t, "Cover sheet text.", chunks[0].Content)
	assert.Equal(t, 3, chunks[1].PageNumber)
}

func TestChunkTokenBudget(t *testing.T) {
	c := newChunker(20, 5)

	// Six 8-word paragraphs: budget 20 fits two per chunk.
	paras := make([]string, 6)
	for i := range paras {
		paras[i] = words(8, fmt.Sprintf("p%dw", i))
	}
	chunks := c.Chunk(strings.Join(paras, "\n\n"))

	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.TokenCount, 20)
	}
}

func TestChunkOversizeParagraphKeptWhole(t *testing.T) {
	c := newChunker(20, 5)

	big := words(50, "w")
	chunks := c.Chunk("small one\n\n" + big + "\n\nanother small")

	// The oversize paragraph lands whole in a chunk that exceeds the target.
	var found bool
	for _, ch := range chunks {
		if strings.Contains(ch.Content, big) {
			found = true
			assert.Greater(t, ch.TokenCount, 20)
		}
	}
	assert.True(t, found)
}

func TestChunkOverlapCarriesSmallTrailingParagraph(t *testing.T) {
	c := newChunker(20, 5)

	// 15 words, then 4 words (fits overlap), then 15 words: the 4-word
	// paragraph should appear at the end of chunk 1 and again at the start
	// of chunk 2.
	small := "tiny bridge para here"
	text := words(15, "a") + "\n\n" + small + "\n\n" + words(15, "b")
	chunks := c.Chunk(text)

	require.Len(t, chunks, 2)
	assert.True(t, strings.HasSuffix(chunks[0].Content, small))
	assert.True(t, strings.HasPrefix(chunks[1].Content, small))
}

func TestChunkNoOverlapForLargeTrailingParagraph(t *testing.T) {
	c := newChunker(20, 5)

	trailing := words(12, "t")
	text := words(10, "a") + "\n\n" + trailing + "\n\n" + words(15, "b")
	chunks := c.Chunk(text)

	// A 12-token paragraph exceeds the 5-token overlap budget so it must
	// appear exactly once across all chunks.
	require.GreaterOrEqual(t, len(chunks), 2)
	seen := 0
	for _, ch := range chunks {
		seen += strings.Count(ch.Content, trailing)
	}
	assert.Equal(t, 1, seen)
}

func TestChunkCoveragePerPage(t *testing.T) {
	c := newChunker(10, 3)

	pageParas := []string{
		words(6, "alpha"),
		words(6, "beta"),
		words(6, "gamma"),
		words(6, "delta"),
	}
	text := "--- Page 1 ---\n" + strings.Join(pageParas, "\n\n")
	chunks := c.Chunk(text)

	// Every source paragraph must appear in some chunk of its page.
	joined := ""
	for _, ch := range chunks {
		require.Equal(t, 1, ch.PageNumber)
		joined += ch.Content + "\n\n"
	}
	for _, para := range pageParas {
		assert.Contains(t, joined, para)
	}
}

func TestChunkSectionTracking(t *testing.T) {
	c := newChunker(500, 50)

	text := strings.Join([]string{
		"--- Page 1 ---",
		"SECTION 1 Definitions",
		"",
		"In this agreement the following terms apply.",
		"",
		"--- Page 2 ---",
		"More definition text continuing from the prior page.",
		"",
		"3.2 Rent Review",
		"",
		"The rent payable shall be reviewed every five years.",
	}, "\n")

	chunks := c.Chunk(text)
	require.Len(t, chunks, 2)

	// Page 2 starts mid-section: the page-1 heading still applies until the
	// numbered clause supersedes it within the same chunk.
	assert.Equal(t, "SECTION 1 Definitions", chunks[0].SectionHeader)
	assert.Equal(t, "3.2 Rent Review", chunks[1].SectionHeader)
}

func TestChunkSectionSticksAcrossChunks(t *testing.T) {
	c := newChunker(10, 3)

	text := strings.Join([]string{
		"ARTICLE IV Assignment",
		"",
		words(8, "first"),
		"",
		words(8, "second"),
	}, "\n")

	chunks := c.Chunk(text)
	require.GreaterOrEqual(t, len(chunks), 2)
	for _, ch := range chunks {
		assert.Equal(t, "ARTICLE IV Assignment", ch.SectionHeader)
	}
}

func TestChunkHeadingFlushKeepsPriorSection(t *testing.T) {
	c := newChunker(10, 3)

	body := words(9, "def")
	text := strings.Join([]string{
		"SECTION 1 Definitions",
		"",
		body,
		"",
		"SECTION 2 Rent",
		"",
		words(5, "rent"),
	}, "\n")

	chunks := c.Chunk(text)
	require.GreaterOrEqual(t, len(chunks), 2)

	// The SECTION 2 heading arrives over budget and flushes the chunk
	// holding SECTION 1's body; that chunk must keep the SECTION 1 label,
	// not pick up the heading that displaced it.
	var found bool
	for _, ch := range chunks {
		if strings.Contains(ch.Content, body) {
			found = true
			assert.Equal(t, "SECTION 1 Definitions", ch.SectionHeader)
		}
	}
	require.True(t, found)

	last := chunks[len(chunks)-1]
	assert.Equal(t, "SECTION 2 Rent", last.SectionHeader)
}

func TestChunkBlankPageProducesNothing(t *testing.T) {
	c := newChunker(500, 50)

	text := "--- Page 1 ---\nReal content.\n\n--- Page 2 ---\n   \n\n--- Page 3 ---\nMore content."
	chunks := c.Chunk(text)

	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Equal(t, 3, chunks[1].PageNumber)
}
