package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"rapidly/model"
	"rapidly/store"
	"rapidly/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

type DocumentHandler struct {
	contextStore store.DBStorer
	embedder     model.Embedder
	uploadDir    string
}

func NewDocumentHandler(contextStore store.DBStorer, embedder model.Embedder, uploadDir string) *DocumentHandler {
	return &DocumentHandler{
		contextStore: contextStore,
		embedder:     embedder,
		uploadDir:    uploadDir,
	}
}

// HandleIngest persists one document with pre-extracted chunk texts, embedding
// each chunk. Re-ingesting a document replaces its chunks: the document is
// identified by the request's id when given, otherwise by its
// (file_name, source) pair; a fresh id is minted only for genuinely new
// documents.
func (h *DocumentHandler) HandleIngest(c *fiber.Ctx) error {
	var params types.IngestParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errs := types.Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}

	now := time.Now()
	doc := types.Document{
		FileName:  params.FileName,
		Source:    params.Source,
		SourceURL: params.SourceURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch {
	case params.ID != "":
		id, err := uuid.Parse(params.ID)
		if err != nil {
			return ErrInvalidID()
		}
		doc.ID = id
	default:
		existing, err := h.contextStore.GetDocumentByName(c.Context(), params.FileName, params.Source)
		switch {
		case err == nil:
			doc.ID = existing.ID
			doc.CreatedAt = existing.CreatedAt
		case errors.Is(err, sql.ErrNoRows):
			doc.ID = uuid.New()
		default:
			return err
		}
	}

	if err := h.contextStore.SaveDocument(c.Context(), doc); err != nil {
		return err
	}
	if err := h.contextStore.DeleteChunksByDocID(c.Context(), doc.ID); err != nil {
		return err
	}

	for i, chunk := range params.Chunks {
		embedding, err := h.embedder.Embed(c.Context(), chunk.Text)
		if err != nil {
			return err
		}
		if err := h.contextStore.SaveChunk(c.Context(), types.DocumentChunk{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			Position:   i,
			Text:       chunk.Text,
			Embedding:  embedding,
		}); err != nil {
			return err
		}
	}

	slog.Info("[INGEST] document saved", "id", doc.ID, "file_name", doc.FileName, "chunks", len(params.Chunks))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": doc.ID})
}

// HandleGetDocument returns one document's metadata by id.
func (h *DocumentHandler) HandleGetDocument(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}

	doc, err := h.contextStore.GetDocumentByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound(id, "document")
		}
		return err
	}
	return c.JSON(doc)
}

// HandleUpload accepts a PDF, validates it and drops it into the ingest
// directory for the loader to pick up.
func (h *DocumentHandler) HandleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	if err := api.Validate(file, api.LoadConfiguration()); err != nil {
		return NewError(fiber.StatusBadRequest, "not a valid PDF file")
	}

	path := filepath.Join(h.uploadDir, filepath.Base(fileHeader.Filename))
	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		return err
	}
	if err := c.SaveFile(fileHeader, path); err != nil {
		return err
	}
	slog.Info("[UPLOAD] file saved", "path", path)

	return c.JSON(fiber.Map{"result": "ok"})
}
