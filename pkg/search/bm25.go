package search

import (
	"math"
	"strings"
)

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// bm25Corpus precomputes document frequencies and lengths for a fixed set
// of tokenized documents.
type bm25Corpus struct {
	docs      [][]string
	docFreq   map[string]int
	docLens   []int
	avgDocLen float64
}

func newBM25Corpus(docs [][]string) *bm25Corpus {
	c := &bm25Corpus{
		docs:    docs,
		docFreq: make(map[string]int),
		docLens: make([]int, len(docs)),
	}

	total := 0
	for i, doc := range docs {
		c.docLens[i] = len(doc)
		total += len(doc)

		seen := make(map[string]bool, len(doc))
		for _, term := range doc {
			if !seen[term] {
				seen[term] = true
				c.docFreq[term]++
			}
		}
	}

	if len(docs) > 0 {
		c.avgDocLen = float64(total) / float64(len(docs))
	}

	return c
}

// scores computes the BM25 score of every document against the query terms.
func (c *bm25Corpus) scores(query []string) []float64 {
	scores := make([]float64, len(c.docs))
	if c.avgDocLen == 0 {
		return scores
	}

	n := float64(len(c.docs))
	for _, term := range query {
		df := c.docFreq[term]
		if df == 0 {
			continue
		}

		idf := math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))

		for i, doc := range c.docs {
			tf := 0.0
			for _, t := range doc {
				if t == term {
					tf++
				}
			}
			if tf == 0 {
				continue
			}

			norm := 1 - bm25B + bm25B*float64(c.docLens[i])/c.avgDocLen
			scores[i] += idf * tf * (bm25K1 + 1) / (tf + bm25K1*norm)
		}
	}

	return scores
}

// tokenize lowercases and splits on whitespace — the same treatment is
// applied to chunk text and query so term matching stays symmetric.
func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
