package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rapidly/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ndjsonHandler(t *testing.T, fragments []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		for i, frag := range fragments {
			done := i == len(fragments)-1
			require.NoError(t, json.NewEncoder(w).Encode(generateFragment{Response: frag, Done: done}))
			flusher.Flush()
		}
	}
}

func collect(t *testing.T, stream *Stream) []string {
	t.Helper()
	var got []string
	for {
		frag, err := stream.Recv()
		if err == io.EOF {
			return got
		}
		require.NoError(t, err)
		got = append(got, frag)
	}
}

func TestStreamAnswerPreservesFragmentOrder(t *testing.T) {
	fragments := []string{"Refunds ", "are accepted ", "within 30 days."}
	srv := httptest.NewServer(ndjsonHandler(t, fragments))
	defer srv.Close()

	a := New(srv.URL, "test-model", 0)
	stream, err := a.StreamAnswer(context.Background(), "ctx", "refund policy", nil)
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, fragments, collect(t, stream))
}

func TestStreamAnswerForwardsBeforeUpstreamFinishes(t *testing.T) {
	// The server holds the stream open until the client has observed the
	// first fragment, proving the relay does not buffer the whole response.
	firstSeen := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		json.NewEncoder(w).Encode(generateFragment{Response: "first "})
		flusher.Flush()
		select {
		case <-firstSeen:
		case <-time.After(5 * time.Second):
			t.Error("client never observed the first fragment")
		}
		json.NewEncoder(w).Encode(generateFragment{Response: "second", Done: true})
	}))
	defer srv.Close()

	a := New(srv.URL, "test-model", 0)
	stream, err := a.StreamAnswer(context.Background(), "ctx", "q", nil)
	require.NoError(t, err)
	defer stream.Close()

	frag, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "first ", frag)
	close(firstSeen)

	frag, err = stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "second", frag)

	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestStreamAnswerUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model missing", http.StatusNotFound)
	}))
	defer srv.Close()

	a := New(srv.URL, "test-model", 0)
	_, err := a.StreamAnswer(context.Background(), "ctx", "q", nil)
	require.ErrorIs(t, err, types.ErrAnswerGenerationFailed)
}

func TestStreamAnswerCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		json.NewEncoder(w).Encode(generateFragment{Response: "partial"})
		flusher.Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	a := New(srv.URL, "test-model", 0)
	stream, err := a.StreamAnswer(context.Background(), "ctx", "q", nil)
	require.NoError(t, err)

	frag, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "partial", frag)

	stream.Close()

	// After Close the sequence ends, no buffered fragment leaks out.
	frag, err = stream.Recv()
	assert.Empty(t, frag)
	assert.Equal(t, io.EOF, err)
}

func TestGenerateAnswerConcatenates(t *testing.T) {
	srv := httptest.NewServer(ndjsonHandler(t, []string{"Refunds ", "are accepted ", "within 30 days."}))
	defer srv.Close()

	a := New(srv.URL, "test-model", 0)
	answer, err := a.GenerateAnswer(context.Background(), "ctx", "refund policy", nil)
	require.NoError(t, err)
	assert.Equal(t, "Refunds are accepted within 30 days.", answer)
}

func TestGenerateAnswerSendsHistory(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(generateFragment{Response: "ok", Done: true})
	}))
	defer srv.Close()

	a := New(srv.URL, "test-model", 0)
	_, err := a.GenerateAnswer(context.Background(), "ctx", "and now?", []string{"what was before?"})
	require.NoError(t, err)

	assert.True(t, got.Stream)
	assert.Contains(t, got.Prompt, "what was before?\nand now?")
	assert.Contains(t, got.Prompt, "ctx")
}

func TestBuildContext(t *testing.T) {
	results := []types.DocumentResult{
		{DocumentID: uuid.New(), FileName: "refunds.md", Chunks: []string{"c1", "c2"}},
		{DocumentID: uuid.New(), FileName: "faq.md", Chunks: []string{"c3"}},
	}

	ctxText := BuildContext(results)
	assert.Equal(t, fmt.Sprintf("Document %s:\nc1\nc2\n\nDocument %s:\nc3\n\n", "refunds.md", "faq.md"), ctxText)
}
