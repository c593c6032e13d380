package api

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"time"

	"rapidly/app/agent"

	"github.com/gofiber/fiber/v2"
)

const DefaultAnswerIdleTimeout = 60 * time.Second

type AnswerHandler struct {
	agent       *agent.Agent
	idleTimeout time.Duration
}

// NewAnswerHandler builds the streaming answer handler. idleTimeout bounds
// the wait for the next fragment; 0 selects the default.
func NewAnswerHandler(a *agent.Agent, idleTimeout time.Duration) *AnswerHandler {
	if idleTimeout == 0 {
		idleTimeout = DefaultAnswerIdleTimeout
	}
	return &AnswerHandler{
		agent:       a,
		idleTimeout: idleTimeout,
	}
}

type recvResult struct {
	frag string
	err  error
}

// HandleAnswer relays the completion service's streamed answer for
// GET /api/v1/answer?q=... as a chunked text response, one flush per
// fragment. Retrieval runs on its own endpoint; the two are independent.
// The upstream call is tied to a request-scoped context that is canceled as
// soon as the relay stops, whether by stream end, client abort observed on
// flush, or no fragment arriving within the idle bound.
func (h *AnswerHandler) HandleAnswer(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return NewValidationError(map[string]string{"q": "failed on 'required' tag"})
	}

	// Not derived from the fiber ctx: the stream writer below outlives the
	// handler, while the request ctx gets recycled when it returns.
	ctx, cancel := context.WithCancel(context.Background())

	stream, err := h.agent.StreamAnswer(ctx, "", query, nil)
	if err != nil {
		cancel()
		return err
	}

	results := make(chan recvResult)
	go func() {
		defer close(results)
		for {
			frag, err := stream.Recv()
			select {
			case results <- recvResult{frag: frag, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer stream.Close()

		idle := time.NewTimer(h.idleTimeout)
		defer idle.Stop()
		for {
			select {
			case r, ok := <-results:
				if !ok || r.err == io.EOF {
					return
				}
				if r.err != nil {
					slog.Error("[ANSWER] stream ended with error", "error", r.err)
					return
				}
				if _, err := w.WriteString(r.frag); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					// Client went away, stop relaying.
					return
				}
				if !idle.Stop() {
					<-idle.C
				}
				idle.Reset(h.idleTimeout)
			case <-idle.C:
				slog.Warn("[ANSWER] no fragment within idle bound, closing stream", "idle", h.idleTimeout)
				return
			}
		}
	})
	return nil
}
