package citation_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsage/docsage/internal/models"
	"github.com/docsage/docsage/pkg/citation"
)

const answer = `The lease runs for fifteen years:
<cite doc="Doc A" page="3" section="Section 1 — Definitions">The Term means a period of fifteen years</cite>
and the rent is reviewed periodically.
<cite doc="Doc A" page="4" section="3.2 Rent Review">the rent payable shall be reviewed</cite>
A related deed exists too: <cite doc="Doc B" page="1">made between the parties
on the date first written above</cite>`

func TestExtract(t *testing.T) {
	citations := citation.Extract(answer)

	require.Len(t, citations, 3)

	assert.Equal(t, "Doc A", citations[0].DocLabel)
	assert.Equal(t, 3, citations[0].Page)
	assert.Equal(t, "Section 1 — Definitions", citations[0].Section)
	assert.Equal(t, "The Term means a period of fifteen years", citations[0].Text)

	// Section attribute omitted, inner text spanning lines.
	assert.Equal(t, "Doc B", citations[2].DocLabel)
	assert.Equal(t, 1, citations[2].Page)
	assert.Empty(t, citations[2].Section)
	assert.Contains(t, citations[2].Text, "made between the parties")
}

func TestExtractIgnoresMalformedTags(t *testing.T) {
	malformed := `<cite doc="Doc A">no page attribute</cite>
<cite page="2">no doc attribute</cite>
<cite doc="Doc A" page="two">non-numeric page</cite>
<cite doc="Doc A" page="2">unterminated`

	assert.Empty(t, citation.Extract(malformed))
	assert.Zero(t, citation.Count(malformed))
}

func TestCountMatchesExtract(t *testing.T) {
	assert.Equal(t, len(citation.Extract(answer)), citation.Count(answer))
	assert.Zero(t, citation.Count("no citations here"))
}

func TestStrip(t *testing.T) {
	stripped := citation.Strip(answer)

	assert.NotContains(t, stripped, "<cite")
	assert.Contains(t, stripped, "The Term means a period of fifteen years [Doc A, Section 1 — Definitions, p.3]")
	assert.Contains(t, stripped, "the rent payable shall be reviewed [Doc A, 3.2 Rent Review, p.4]")
	// No section attribute: the reference omits the middle part.
	assert.Contains(t, stripped, "[Doc B, p.1]")
}

func TestStripLeavesPlainTextAlone(t *testing.T) {
	plain := "An answer without any citations at all."
	assert.Equal(t, plain, citation.Strip(plain))
}

func TestRoundTrip(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 7; i++ {
		b.WriteString(`<cite doc="Doc A" page="2">quote</cite> and text `)
	}

	citations := citation.Extract(b.String())
	assert.Len(t, citations, 7)
	assert.Equal(t, 7, citation.Count(b.String()))
	assert.NotContains(t, citation.Strip(b.String()), "<cite")
}

func scopedChunk(label string, page int) models.ScopedChunk {
	return models.ScopedChunk{
		IndexedChunk: models.IndexedChunk{PageNumber: page},
		DocLabel:     label,
	}
}

func TestGrounding(t *testing.T) {
	known := citation.KnownPages([]models.ScopedChunk{
		scopedChunk("Doc A", 1),
		scopedChunk("Doc A", 2),
		scopedChunk("Doc B", 1),
	})

	assert.True(t, citation.IsGrounded(models.Citation{DocLabel: "Doc A", Page: 2}, known))
	assert.True(t, citation.IsGrounded(models.Citation{DocLabel: "Doc B", Page: 1}, known))

	// Unknown label is never grounded.
	assert.False(t, citation.IsGrounded(models.Citation{DocLabel: "Doc C", Page: 1}, known))
	// Known label but a page absent from its chunks is never grounded.
	assert.False(t, citation.IsGrounded(models.Citation{DocLabel: "Doc A", Page: 9}, known))
	assert.False(t, citation.IsGrounded(models.Citation{DocLabel: "Doc B", Page: 2}, known))
}
