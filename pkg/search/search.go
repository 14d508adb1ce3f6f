package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/docsage/docsage/internal/models"
	"github.com/docsage/docsage/internal/types"
)

const (
	// Shortlist size for each ranking modality before fusion.
	shortlistSize = 20
	// Reciprocal Rank Fusion constant.
	rrfK = 60
)

type SearcherConfig struct {
	TopK int // default result count
}

// Searcher fuses vector-similarity and BM25 rankings over one scope's
// chunks via Reciprocal Rank Fusion. It is read-only and stateless across
// queries.
type Searcher struct {
	config   SearcherConfig
	embedder types.Embedder
	store    types.ChunkStore
}

func NewWithConfig(config SearcherConfig, embedder types.Embedder, store types.ChunkStore) *Searcher {
	if config.TopK == 0 {
		config.TopK = 10
	}

	return &Searcher{
		config:   config,
		embedder: embedder,
		store:    store,
	}
}

// Search returns the topK fused results for the query over the given
// document scope, highest score first. Embedding failure degrades to an
// empty result set; it never propagates into the caller's control flow.
func (s *Searcher) Search(ctx context.Context, query string, documentIDs []string, topK int) ([]models.SearchResult, error) {
	if topK <= 0 {
		topK = s.config.TopK
	}

	queryVectors, err := s.embedder.CreateEmbedding(ctx, []string{query})
	if err != nil || len(queryVectors) == 0 {
		return nil, nil
	}
	queryVector := queryVectors[0]

	chunks, err := s.store.ChunksInScope(ctx, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks in scope: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	vectorRanks := rankByVector(chunks, queryVector)
	lexicalRanks := rankByBM25(chunks, query)

	fused := fuse(vectorRanks, lexicalRanks)

	if topK > len(fused) {
		topK = len(fused)
	}

	byID := make(map[string]models.ScopedChunk, len(chunks))
	for _, chunk := range chunks {
		byID[chunk.ID] = chunk
	}

	results := make([]models.SearchResult, 0, topK)
	for _, f := range fused[:topK] {
		chunk := byID[f.chunkID]
		results = append(results, models.SearchResult{
			ChunkID:       chunk.ID,
			DocumentID:    chunk.DocumentID,
			DocLabel:      chunk.DocLabel,
			DocFilename:   chunk.DocFilename,
			Content:       chunk.Content,
			ContextText:   chunk.ContextText,
			PageNumber:    chunk.PageNumber,
			SectionHeader: chunk.SectionHeader,
			Score:         f.score,
		})
	}

	return results, nil
}

// rankByVector orders chunks with a non-nil embedding by ascending cosine
// distance to the query vector and returns the top-20 rank positions.
// Chunks without an embedding are excluded but remain eligible for the
// lexical leg.
func rankByVector(chunks []models.ScopedChunk, queryVector []float32) map[string]int {
	type scored struct {
		id       string
		distance float64
	}

	var candidates []scored
	for _, chunk := range chunks {
		if chunk.Embedding == nil {
			continue
		}
		candidates = append(candidates, scored{
			id:       chunk.ID,
			distance: 1 - cosineSimilarity(chunk.Embedding, queryVector),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].id < candidates[j].id
	})

	if len(candidates) > shortlistSize {
		candidates = candidates[:shortlistSize]
	}

	ranks := make(map[string]int, len(candidates))
	for rank, c := range candidates {
		ranks[c.id] = rank
	}
	return ranks
}

// rankByBM25 scores every chunk's context+content against the query and
// returns the top-20 rank positions by descending score.
func rankByBM25(chunks []models.ScopedChunk, query string) map[string]int {
	corpus := make([][]string, len(chunks))
	for i, chunk := range chunks {
		combined := chunk.Content
		if chunk.ContextText != "" {
			combined = chunk.ContextText + " " + combined
		}
		corpus[i] = tokenize(combined)
	}

	scores := newBM25Corpus(corpus).scores(tokenize(query))

	type scored struct {
		id    string
		score float64
	}
	candidates := make([]scored, len(chunks))
	for i, chunk := range chunks {
		candidates[i] = scored{id: chunk.ID, score: scores[i]}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})

	if len(candidates) > shortlistSize {
		candidates = candidates[:shortlistSize]
	}

	ranks := make(map[string]int, len(candidates))
	for rank, c := range candidates {
		ranks[c.id] = rank
	}
	return ranks
}

type fusedResult struct {
	chunkID string
	score   float64
}

// fuse merges the two rank lists with RRF: score = Σ 1/(k + rank) over the
// lists that contain the chunk. Ties break on chunk id so equal inputs
// always produce identical output.
func fuse(vectorRanks, lexicalRanks map[string]int) []fusedResult {
	ids := make(map[string]bool, len(vectorRanks)+len(lexicalRanks))
	for id := range vectorRanks {
		ids[id] = true
	}
	for id := range lexicalRanks {
		ids[id] = true
	}

	fused := make([]fusedResult, 0, len(ids))
	for id := range ids {
		score := 0.0
		if rank, ok := vectorRanks[id]; ok {
			score += 1.0 / float64(rrfK+rank)
		}
		if rank, ok := lexicalRanks[id]; ok {
			score += 1.0 / float64(rrfK+rank)
		}
		fused = append(fused, fusedResult{chunkID: id, score: score})
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return fused[i].chunkID < fused[j].chunkID
	})

	return fused
}

func cosineSimilarity(a []float32, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// FormatResults renders ranked results as the text block handed to the
// answering model.
func FormatResults(results []models.SearchResult) string {
	if len(results) == 0 {
		return "No relevant passages found."
	}

	parts := make([]string, 0, len(results))
	for i, r := range results {
		header := fmt.Sprintf("[Result %d] %s (%s), Page %d", i+1, r.DocLabel, r.DocFilename, r.PageNumber)
		if r.SectionHeader != "" {
			header += fmt.Sprintf(", Section: %s", r.SectionHeader)
		}
		parts = append(parts, header+"\n"+r.Content)
	}

	return strings.Join(parts, "\n\n---\n\n")
}
