package api

import (
	"log/slog"
	"os"
	"strconv"

	"rapidly/model"
	"rapidly/retrieval"
	"rapidly/store"
	"rapidly/types"

	"github.com/gofiber/fiber/v2"
)

const (
	DefaultMaxDocuments         = 5
	DefaultMaxChunksPerDocument = 3
	DefaultPageSize             = 10
)

// SearchConfig carries the deployment-level knobs of the similarity search.
type SearchConfig struct {
	MaxDocuments         int
	MaxChunksPerDocument int
	PageSize             int
}

// SearchConfigFromEnv reads SEARCH_MAX_DOCUMENTS, SEARCH_MAX_CHUNKS and
// SEARCH_PAGE_SIZE, falling back to the defaults.
func SearchConfigFromEnv() SearchConfig {
	return SearchConfig{
		MaxDocuments:         envInt("SEARCH_MAX_DOCUMENTS", DefaultMaxDocuments),
		MaxChunksPerDocument: envInt("SEARCH_MAX_CHUNKS", DefaultMaxChunksPerDocument),
		PageSize:             envInt("SEARCH_PAGE_SIZE", DefaultPageSize),
	}
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}

type SearchHandler struct {
	contextStore store.DBStorer
	embedder     model.Embedder
	config       SearchConfig
}

func NewSearchHandler(contextStore store.DBStorer, embedder model.Embedder, config SearchConfig) *SearchHandler {
	return &SearchHandler{
		contextStore: contextStore,
		embedder:     embedder,
		config:       config,
	}
}

// HandleSearch runs the synchronous retrieval path: embed the query, fetch
// the top chunks, aggregate per document and return one page of results.
func (h *SearchHandler) HandleSearch(c *fiber.Ctx) error {
	var params types.SearchParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	maxDocuments := h.config.MaxDocuments
	if params.Limit > 0 {
		maxDocuments = params.Limit
	}
	page := 1
	if params.Page > 0 {
		page = params.Page
	}

	vector, err := h.embedder.Embed(c.Context(), params.Query)
	if err != nil {
		return err
	}

	chunks, err := h.contextStore.Search(c.Context(), vector, maxDocuments, h.config.MaxChunksPerDocument)
	if err != nil {
		return err
	}

	results := retrieval.Aggregate(chunks)
	slog.Info("[SEARCH] aggregated", "documents", len(results), "chunks", len(chunks))

	paged := retrieval.Paginate(results, page, h.config.PageSize)
	return c.JSON(types.SearchResponse{
		Items:       paged.Items,
		TotalCount:  len(results),
		Page:        page,
		TotalPages:  paged.TotalPages,
		PageNumbers: retrieval.PageNumbers(page, paged.TotalPages),
	})
}
