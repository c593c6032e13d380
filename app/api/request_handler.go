package api

import (
	"time"

	"rapidly/app/agent"
	"rapidly/model"
	"rapidly/retrieval"
	"rapidly/store"
	"rapidly/types"

	"github.com/gofiber/fiber/v2"
)

type RequestHandler struct {
	contextStore store.DBStorer
	embedder     model.Embedder
	agent        *agent.Agent
	config       SearchConfig
}

func NewRequestHandler(contextStore store.DBStorer, embedder model.Embedder, a *agent.Agent, config SearchConfig) *RequestHandler {
	return &RequestHandler{
		contextStore: contextStore,
		embedder:     embedder,
		agent:        a,
		config:       config,
	}
}

// HandleRequest is the combined path: retrieve sources and generate a full
// answer over them in one round trip.
func (h *RequestHandler) HandleRequest(c *fiber.Ctx) error {
	var params types.RequestParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	vector, err := h.embedder.Embed(c.Context(), params.Query)
	if err != nil {
		return err
	}

	chunks, err := h.contextStore.Search(c.Context(), vector, h.config.MaxDocuments, h.config.MaxChunksPerDocument)
	if err != nil {
		return err
	}

	results := retrieval.Aggregate(chunks)

	confidence := 0.0
	if len(results) > 0 {
		confidence = results[0].TopSimilarity
	}

	sources := make([]types.Source, len(results))
	for i, res := range results {
		sources[i] = types.Source{
			DocumentID: res.DocumentID.String(),
			FileName:   res.FileName,
			Chunks:     res.Chunks,
		}
	}

	answer, err := h.agent.GenerateAnswer(c.Context(), agent.BuildContext(results), params.Query, params.History)
	if err != nil {
		return err
	}

	return c.JSON(types.AnswerResponse{
		Answer:     answer,
		Sources:    sources,
		Confidence: confidence,
		Timestamp:  time.Now(),
	})
}
