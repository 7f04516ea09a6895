package perplexity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatCompletion_DefaultModel(t *testing.T) {
	var gotReq ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_, _ = w.Write([]byte(`{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"hi"}}],"usage":{"prompt_tokens":10,"completion_tokens":2}}`))
	}))
	defer srv.Close()

	c := NewClient("key", WithBaseURL(srv.URL), WithModel("sonar"))

	resp, err := c.ChatCompletion(context.Background(), ChatCompletionRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "sonar", gotReq.Model)
	assert.Equal(t, "hi", resp.Choices[0].Message.Content)
	assert.Equal(t, 10, resp.Usage.PromptTokens)
}

func TestChatCompletion_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("key", WithBaseURL(srv.URL))

	_, err := c.ChatCompletion(context.Background(), ChatCompletionRequest{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestSummarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "Acme Corp")
		_, _ = w.Write([]byte(`{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"Acme Corp manufactures industrial adhesives."}}]}`))
	}))
	defer srv.Close()

	c := NewClient("key", WithBaseURL(srv.URL))

	summary, err := c.Summarize(context.Background(), "Acme Corp", "snippet one\nsnippet two")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp manufactures industrial adhesives.", summary)
}

func TestSummarize_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient("key", WithBaseURL(srv.URL))

	_, err := c.Summarize(context.Background(), "Acme", "s")
	assert.Error(t, err)
}
