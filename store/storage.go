package store

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"rapidly/types"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// MinSimilarity is the relevance floor for search results. The comparison is
// strict: a chunk at exactly 0.5 is excluded.
const MinSimilarity = 0.5

type DBStorer interface {
	SaveDocument(context.Context, types.Document) error
	GetDocumentByID(context.Context, uuid.UUID) (*types.Document, error)
	GetDocumentByName(ctx context.Context, fileName, source string) (*types.Document, error)
	SaveChunk(context.Context, types.DocumentChunk) error
	DeleteChunksByDocID(context.Context, uuid.UUID) error
	Search(ctx context.Context, vector []float32, maxDocuments, maxChunksPerDocument int) ([]types.RankedChunk, error)
}

type PostgresStore struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

func NewPostgresStore(ctx context.Context, connStr string, queryTimeout time.Duration) (*PostgresStore, error) {
	if queryTimeout == 0 {
		queryTimeout = 15 * time.Second
	}
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool:         pool,
		queryTimeout: queryTimeout,
	}, nil
}

func (p *PostgresStore) GetDocumentByID(ctx context.Context, docID uuid.UUID) (*types.Document, error) {
	rows, err := p.pool.Query(ctx, "SELECT id, file_name, source, source_url, created_at, updated_at FROM documents WHERE id = $1", docID)
	if err != nil {
		return nil, types.WrapExternal(types.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, sql.ErrNoRows
	}

	doc := &types.Document{}
	if err := rows.Scan(
		&doc.ID,
		&doc.FileName,
		&doc.Source,
		&doc.SourceURL,
		&doc.CreatedAt,
		&doc.UpdatedAt); err != nil {
		return nil, types.WrapExternal(types.ErrStorageUnavailable, err)
	}
	return doc, nil
}

// GetDocumentByName resolves a document by its (file_name, source) pair,
// the identity re-ingestion matches on when no explicit id is given.
func (p *PostgresStore) GetDocumentByName(ctx context.Context, fileName, source string) (*types.Document, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT id, file_name, source, source_url, created_at, updated_at FROM documents WHERE file_name = $1 AND source = $2 LIMIT 1",
		fileName, source)
	if err != nil {
		return nil, types.WrapExternal(types.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, sql.ErrNoRows
	}

	doc := &types.Document{}
	if err := rows.Scan(
		&doc.ID,
		&doc.FileName,
		&doc.Source,
		&doc.SourceURL,
		&doc.CreatedAt,
		&doc.UpdatedAt); err != nil {
		return nil, types.WrapExternal(types.ErrStorageUnavailable, err)
	}
	return doc, nil
}

func (p *PostgresStore) SaveDocument(ctx context.Context, doc types.Document) error {
	query := `INSERT INTO documents (id, file_name, source, source_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			source = EXCLUDED.source,
			source_url = EXCLUDED.source_url,
			updated_at = EXCLUDED.updated_at
			`
	_, err := p.pool.Exec(
		ctx,
		query,
		doc.ID,
		doc.FileName,
		doc.Source,
		doc.SourceURL,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	return types.WrapExternal(types.ErrStorageUnavailable, err)
}

func (p *PostgresStore) SaveChunk(ctx context.Context, c types.DocumentChunk) error {
	query := `
    INSERT INTO document_chunks (id, document_id, position, text, embedding)
    VALUES ($1, $2, $3, $4, $5)
    `
	_, err := p.pool.Exec(ctx, query,
		c.ID, c.DocumentID, c.Position, c.Text, pgvector.NewVector(c.Embedding),
	)
	return types.WrapExternal(types.ErrStorageUnavailable, err)
}

func (p *PostgresStore) DeleteChunksByDocID(ctx context.Context, docID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, "DELETE FROM document_chunks WHERE document_id = $1", docID)
	return types.WrapExternal(types.ErrStorageUnavailable, err)
}

// Search runs the two-stage top-K similarity query: pick the maxDocuments
// documents with the highest single-chunk similarity above MinSimilarity,
// then keep the maxChunksPerDocument best chunks within each. Chunks of
// different documents may interleave in the result.
func (p *PostgresStore) Search(ctx context.Context, queryVec []float32, maxDocuments, maxChunksPerDocument int) ([]types.RankedChunk, error) {
	ctx, cancel := context.WithTimeout(ctx, p.queryTimeout)
	defer cancel()
	vector := pgvector.NewVector(queryVec)

	query := `
		WITH top_documents AS (
			SELECT
				d.id AS id,
				d.file_name AS file_name,
				MAX(1 - (dc.embedding <=> $1)) AS max_similarity
			FROM document_chunks dc
			JOIN documents d ON dc.document_id = d.id
			WHERE 1 - (dc.embedding <=> $1) > $2
			GROUP BY d.id, d.file_name
			ORDER BY max_similarity DESC
			LIMIT $3
		),
		ranked_chunks AS (
			SELECT
				t.id AS document_id,
				t.file_name AS file_name,
				dc.text AS text,
				1 - (dc.embedding <=> $1) AS similarity,
				ROW_NUMBER() OVER (PARTITION BY t.id ORDER BY 1 - (dc.embedding <=> $1) DESC) AS rn
			FROM top_documents t
			JOIN document_chunks dc ON t.id = dc.document_id
		)
		SELECT document_id, file_name, text, similarity
		FROM ranked_chunks
		WHERE rn <= $4
	`
	rows, err := p.pool.Query(ctx, query, vector, MinSimilarity, maxDocuments, maxChunksPerDocument)
	if err != nil {
		return nil, types.WrapExternal(types.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var chunks []types.RankedChunk
	for rows.Next() {
		var chunk types.RankedChunk
		if err := rows.Scan(
			&chunk.DocumentID,
			&chunk.FileName,
			&chunk.Text,
			&chunk.Similarity); err != nil {
			return nil, types.WrapExternal(types.ErrStorageUnavailable, err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapExternal(types.ErrStorageUnavailable, err)
	}
	slog.Info("[SEARCH] similarity query done", "chunks", len(chunks))
	return chunks, nil
}

func (p *PostgresStore) createTables(ctx context.Context) error {
	query := `
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		file_name TEXT NOT NULL,
		source TEXT,
		source_url TEXT,
		created_at TIMESTAMP WITH TIME ZONE,
		updated_at TIMESTAMP WITH TIME ZONE
	);

	CREATE TABLE IF NOT EXISTS document_chunks (
		id UUID PRIMARY KEY,
		document_id UUID NOT NULL REFERENCES documents(id),
		position INT NOT NULL,
		text TEXT NOT NULL,
		embedding vector(1536)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON document_chunks USING ivfflat (embedding vector_cosine_ops)
	WITH (lists = 100);

	CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON document_chunks(document_id);
	`
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Init(ctx context.Context) error {
	return p.createTables(ctx)
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		slog.Info("postgres connection pool is closed")
	}
	return nil
}
