package types

import (
	"time"

	"github.com/google/uuid"
)

// Document is the unit search results are grouped by. FileName is display
// metadata and is not unique across documents, grouping always uses ID.
type Document struct {
	ID        uuid.UUID `json:"id"`
	FileName  string    `json:"file_name"`
	Source    string    `json:"source"` // slack, gdrive, confluence, notion
	SourceURL string    `json:"source_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentChunk is an immutable piece of a document together with its
// precomputed embedding. A chunk belongs to exactly one document.
type DocumentChunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Position   int
	Text       string
	Embedding  []float32
}

// RankedChunk is one row of a similarity search: a chunk text with its
// owning document and the cosine similarity against the query vector.
type RankedChunk struct {
	DocumentID uuid.UUID `json:"document_id"`
	FileName   string    `json:"file_name"`
	Text       string    `json:"text"`
	Similarity float64   `json:"similarity"`
}

// DocumentResult is the per-document aggregate the search API returns:
// all contributing chunk texts plus the best similarity among them.
type DocumentResult struct {
	DocumentID    uuid.UUID `json:"document_id"`
	FileName      string    `json:"file_name"`
	Chunks        []string  `json:"chunks"`
	TopSimilarity float64   `json:"top_similarity"`
}

type SearchResponse struct {
	Items       []DocumentResult `json:"items"`
	TotalCount  int              `json:"total_count"`
	Page        int              `json:"page"`
	TotalPages  int              `json:"total_pages"`
	PageNumbers []string         `json:"page_numbers"`
}

type AnswerResponse struct {
	Answer     string    `json:"answer"`
	Sources    []Source  `json:"sources"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

type Source struct {
	DocumentID string   `json:"document_id"`
	FileName   string   `json:"file_name"`
	Chunks     []string `json:"chunks"`
}
