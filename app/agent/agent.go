package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"rapidly/types"

	"github.com/pkoukk/tiktoken-go"
)

const answerPrompt = `Answer the question based on the given context. If there is no information in the provided context or the context is empty then answer 'No information for this request'. Nothing else.
Context:
%s
Question:
%s
Answer:`

const systemPrompt = `You are a knowledge-base assistant.
Answer clearly and to the point, without adding any additional information.
If the context is empty or doesn't contain any information to answer, say 'No information for this request'.
Don't add introductions like 'Of course!' or 'Here's the answer:'`

type generateRequest struct {
	Model  string `json:"model"`
	System string `json:"system"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateFragment struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Agent talks to the completion service.
type Agent struct {
	url     string
	model   string
	timeout time.Duration
	client  *http.Client
}

func New(url, model string, timeout time.Duration) *Agent {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Agent{
		url:     url,
		model:   model,
		timeout: timeout,
		client:  http.DefaultClient,
	}
}

// Stream is a finite, non-restartable sequence of answer fragments. Recv
// returns fragments in upstream order and io.EOF when the stream is done.
// Close aborts the underlying connection; no fragment is delivered after it.
type Stream struct {
	fragments <-chan string
	errc      <-chan error
	cancel    context.CancelFunc
	final     error
}

// Recv blocks for the next fragment. After an error (including io.EOF) the
// stream is exhausted and Recv keeps returning that error.
func (s *Stream) Recv() (string, error) {
	frag, ok := <-s.fragments
	if !ok {
		if s.final == nil {
			if err := <-s.errc; err != nil {
				s.final = err
			} else {
				s.final = io.EOF
			}
		}
		return "", s.final
	}
	return frag, nil
}

func (s *Stream) Close() {
	s.cancel()
}

// StreamAnswer asks the completion service for an answer to query over
// context text ctxText, relaying each decoded fragment as soon as it
// arrives. Prior turns, if any, are prepended to the question.
func (a *Agent) StreamAnswer(ctx context.Context, ctxText, query string, history []string) (*Stream, error) {
	if ctxText == "" {
		ctxText = "empty"
	}
	question := query
	if len(history) > 0 {
		question = strings.Join(history, "\n") + "\n" + query
	}
	prompt := fmt.Sprintf(answerPrompt, ctxText, question)

	reqBody, err := json.Marshal(generateRequest{
		Model:  a.model,
		System: systemPrompt,
		Prompt: prompt,
		Stream: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if count, err := countTokens(reqBody); err == nil {
		slog.Info("[AGENT] prompt assembled", "tokens", count, "bytes", len(reqBody))
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewBuffer(reqBody))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		cancel()
		return nil, types.WrapExternal(types.ErrAnswerGenerationFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, types.WrapExternal(types.ErrAnswerGenerationFailed,
			&types.UpstreamStatusError{Status: resp.StatusCode, Body: string(body)})
	}

	fragments := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(fragments)
		defer resp.Body.Close()

		decoder := json.NewDecoder(resp.Body)
		for {
			var frag generateFragment
			if err := decoder.Decode(&frag); err != nil {
				// io.EOF is a clean close. A mid-stream drop ends the
				// sequence early: the caller keeps the partial answer and
				// sees the error after it.
				if err == io.EOF || errors.Is(err, context.Canceled) {
					errc <- nil
				} else {
					errc <- types.WrapExternal(types.ErrAnswerGenerationFailed, err)
				}
				return
			}
			if frag.Response != "" {
				select {
				case fragments <- frag.Response:
				case <-ctx.Done():
					errc <- nil
					return
				}
			}
			if frag.Done {
				errc <- nil
				return
			}
		}
	}()

	return &Stream{fragments: fragments, errc: errc, cancel: cancel}, nil
}

// GenerateAnswer runs StreamAnswer to completion and returns the whole
// answer as one string.
func (a *Agent) GenerateAnswer(ctx context.Context, ctxText, query string, history []string) (string, error) {
	start := time.Now()
	stream, err := a.StreamAnswer(ctx, ctxText, query, history)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		frag, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(frag)
	}
	slog.Info("[AGENT] answer generated", "took", time.Since(start))
	return sb.String(), nil
}

// BuildContext renders aggregated results into the prompt context block.
func BuildContext(results []types.DocumentResult) string {
	var sb strings.Builder
	for _, res := range results {
		sb.WriteString(fmt.Sprintf("Document %s:\n", res.FileName))
		for _, chunk := range res.Chunks {
			sb.WriteString(chunk)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func countTokens(data []byte) (int, error) {
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(string(data), nil, nil)), nil
}
