package store

import (
	"context"
	"testing"
	"time"

	"rapidly/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Cosine similarities against the query vector [1,0,0,0] are exact for these
// fixtures: [1,0,0,0] -> 1.0, [4,3,0,0] -> 0.8, [3,4,0,0] -> 0.6,
// [1,1,1,1] -> exactly 0.5.
var queryVec = []float32{1, 0, 0, 0}

func seedDocument(t *testing.T, m *MemoryStore, fileName string, embeddings ...[]float32) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	doc := types.Document{
		ID:        uuid.New(),
		FileName:  fileName,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, m.SaveDocument(ctx, doc))
	for i, emb := range embeddings {
		require.NoError(t, m.SaveChunk(ctx, types.DocumentChunk{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			Position:   i,
			Text:       fileName,
			Embedding:  emb,
		}))
	}
	return doc.ID
}

func TestCosineSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{2, 0}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}))
	assert.Equal(t, 0.5, CosineSimilarity([]float32{1, 0, 0, 0}, []float32{1, 1, 1, 1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 0}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 0}))
}

func TestSearchThresholdIsStrict(t *testing.T) {
	m := NewMemoryStore()
	// Exactly at the 0.5 floor, must be excluded.
	seedDocument(t, m, "boundary.md", []float32{1, 1, 1, 1})

	chunks, err := m.Search(context.Background(), queryVec, 5, 3)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSearchFiltersLowSimilarityDocument(t *testing.T) {
	m := NewMemoryStore()
	docHigh := seedDocument(t, m, "refunds.md", []float32{4, 3, 0, 0}) // 0.8
	docMid := seedDocument(t, m, "shipping.md", []float32{3, 4, 0, 0}) // 0.6
	seedDocument(t, m, "unrelated.md", []float32{1, 3, 0, 0})          // ~0.32, below the floor

	chunks, err := m.Search(context.Background(), queryVec, 5, 3)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	// Documents ordered by their best chunk, descending.
	assert.Equal(t, docHigh, chunks[0].DocumentID)
	assert.Equal(t, 0.8, chunks[0].Similarity)
	assert.Equal(t, docMid, chunks[1].DocumentID)
	assert.Equal(t, 0.6, chunks[1].Similarity)
}

func TestSearchCapsDocuments(t *testing.T) {
	m := NewMemoryStore()
	seedDocument(t, m, "a.md", []float32{1, 0, 0, 0})
	seedDocument(t, m, "b.md", []float32{1, 0, 0, 0}, []float32{1, 0, 0, 0})

	chunks, err := m.Search(context.Background(), queryVec, 1, 3)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	// Only one document survives the cap.
	for _, ch := range chunks {
		assert.Equal(t, chunks[0].DocumentID, ch.DocumentID)
	}
}

func TestSearchCapsChunksPerDocument(t *testing.T) {
	m := NewMemoryStore()
	docID := seedDocument(t, m, "big.md",
		[]float32{1, 0, 0, 0},
		[]float32{4, 3, 0, 0},
		[]float32{3, 4, 0, 0},
		[]float32{5, 3, 0, 0},
	)

	chunks, err := m.Search(context.Background(), queryVec, 5, 2)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	// The kept chunks are the most similar ones, best first.
	assert.Equal(t, docID, chunks[0].DocumentID)
	assert.Equal(t, 1.0, chunks[0].Similarity)
	assert.GreaterOrEqual(t, chunks[0].Similarity, chunks[1].Similarity)
}

func TestSearchEmptyStore(t *testing.T) {
	m := NewMemoryStore()
	chunks, err := m.Search(context.Background(), queryVec, 5, 3)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestGetDocumentByID(t *testing.T) {
	m := NewMemoryStore()
	docID := seedDocument(t, m, "known.md", []float32{1, 0, 0, 0})

	doc, err := m.GetDocumentByID(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, "known.md", doc.FileName)

	_, err = m.GetDocumentByID(context.Background(), uuid.New())
	assert.Error(t, err)
}

func TestGetDocumentByName(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	doc := types.Document{ID: uuid.New(), FileName: "notes.md", Source: "gdrive"}
	require.NoError(t, m.SaveDocument(ctx, doc))

	found, err := m.GetDocumentByName(ctx, "notes.md", "gdrive")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, found.ID)

	// Same name under a different source is a different document.
	_, err = m.GetDocumentByName(ctx, "notes.md", "slack")
	assert.Error(t, err)

	_, err = m.GetDocumentByName(ctx, "unknown.md", "gdrive")
	assert.Error(t, err)
}

func TestDeleteChunksByDocID(t *testing.T) {
	m := NewMemoryStore()
	docID := seedDocument(t, m, "gone.md", []float32{1, 0, 0, 0})

	require.NoError(t, m.DeleteChunksByDocID(context.Background(), docID))

	chunks, err := m.Search(context.Background(), queryVec, 5, 3)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
