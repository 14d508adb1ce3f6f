package store

import (
	"strings"

	"github.com/google/uuid"
)

// labelForIndex generates the document label for a 0-based per-conversation
// index: "Doc A" .. "Doc Z", "Doc AA" .. "Doc ZZ", "Doc AAA", ...
// Spreadsheet-column numbering, so it never runs out.
func labelForIndex(idx int) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	label := ""
	for idx >= 0 {
		label = string(letters[idx%26]) + label
		idx = idx/26 - 1
	}
	return "Doc " + label
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
