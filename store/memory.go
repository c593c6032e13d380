package store

import (
	"context"
	"database/sql"
	"math"
	"sort"
	"sync"

	"rapidly/types"

	"github.com/google/uuid"
)

// MemoryStore is an in-process DBStorer with the same search semantics as
// PostgresStore. It backs the tests and local development without Postgres.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[uuid.UUID]types.Document
	chunks map[uuid.UUID][]types.DocumentChunk
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:   make(map[uuid.UUID]types.Document),
		chunks: make(map[uuid.UUID][]types.DocumentChunk),
	}
}

func (m *MemoryStore) SaveDocument(_ context.Context, doc types.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
	return nil
}

func (m *MemoryStore) GetDocumentByID(_ context.Context, docID uuid.UUID) (*types.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[docID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &doc, nil
}

func (m *MemoryStore) GetDocumentByName(_ context.Context, fileName, source string) (*types.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, doc := range m.docs {
		if doc.FileName == fileName && doc.Source == source {
			return &doc, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *MemoryStore) SaveChunk(_ context.Context, c types.DocumentChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[c.DocumentID] = append(m.chunks[c.DocumentID], c)
	return nil
}

func (m *MemoryStore) DeleteChunksByDocID(_ context.Context, docID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, docID)
	return nil
}

// Search mirrors the SQL two-stage top-K: filter by strict similarity
// threshold, rank documents by their best chunk, cap documents and chunks
// per document.
func (m *MemoryStore) Search(_ context.Context, queryVec []float32, maxDocuments, maxChunksPerDocument int) ([]types.RankedChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type docHit struct {
		doc    types.Document
		ranked []types.RankedChunk
		best   float64
	}

	var hits []docHit
	for docID, chunks := range m.chunks {
		doc := m.docs[docID]
		hit := docHit{doc: doc, best: -1}
		for _, ch := range chunks {
			sim := CosineSimilarity(queryVec, ch.Embedding)
			if sim <= MinSimilarity {
				continue
			}
			hit.ranked = append(hit.ranked, types.RankedChunk{
				DocumentID: docID,
				FileName:   doc.FileName,
				Text:       ch.Text,
				Similarity: sim,
			})
			if sim > hit.best {
				hit.best = sim
			}
		}
		if len(hit.ranked) > 0 {
			hits = append(hits, hit)
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].best > hits[j].best
	})
	if len(hits) > maxDocuments {
		hits = hits[:maxDocuments]
	}

	var result []types.RankedChunk
	for _, hit := range hits {
		sort.SliceStable(hit.ranked, func(i, j int) bool {
			return hit.ranked[i].Similarity > hit.ranked[j].Similarity
		})
		if len(hit.ranked) > maxChunksPerDocument {
			hit.ranked = hit.ranked[:maxChunksPerDocument]
		}
		result = append(result, hit.ranked...)
	}
	return result, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, 0 when
// either vector has zero norm or lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
