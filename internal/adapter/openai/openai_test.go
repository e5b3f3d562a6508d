package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/adapter/openai"
	"ragchat/internal/apperr"
	"ragchat/internal/retrieval"
)

func testConfig(url string) openai.Config {
	noRetry := 0
	return openai.Config{APIKey: "sk-test", BaseURL: url + "/v1", MaxRetries: &noRetry}
}

func TestEmbedder_EmbedBatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "text-embedding-3-small", body["model"])
		assert.Len(t, body["input"], 2)

		w.Header().Set("Content-Type", "application/json")
		// Out of order on purpose.
		w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[
			{"object":"embedding","index":1,"embedding":[0.0,1.0]},
			{"object":"embedding","index":0,"embedding":[1.0,0.0]}],
			"usage":{"prompt_tokens":4,"total_tokens":4}}`))
	}))
	defer ts.Close()

	e, err := openai.NewEmbedder(testConfig(ts.URL))
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{"sky", "grass"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 0}, vecs[0])
	assert.Equal(t, []float32{0, 1}, vecs[1])
}

func TestEmbedder_UpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer ts.Close()

	e, err := openai.NewEmbedder(testConfig(ts.URL))
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "sky")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeEmbedderUpstreamFailure, apperr.CodeOf(err))
}

func TestNewEmbedder_MissingKey(t *testing.T) {
	_, err := openai.NewEmbedder(openai.Config{})
	assert.Error(t, err)
}

func TestGenerator_Generate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)

		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "gpt-4o-mini", body["model"])
		assert.InDelta(t, 0.2, body["temperature"], 1e-6)
		assert.EqualValues(t, 512, body["max_completion_tokens"])
		msgs := body["messages"].([]interface{})
		require.Len(t, msgs, 1)
		assert.Equal(t, "user", msgs[0].(map[string]interface{})["role"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  The sky is blue.  "}}]}`))
	}))
	defer ts.Close()

	g, err := openai.NewGenerator(testConfig(ts.URL))
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), retrieval.GenerateRequest{Prompt: "p", Temperature: 0.2, MaxTokens: 512})
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.", out)
}

func TestGenerator_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	g, err := openai.NewGenerator(testConfig(ts.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = g.Generate(ctx, retrieval.GenerateRequest{Prompt: "p", Temperature: 0.2, MaxTokens: 512})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeGeneratorTimeout, apperr.CodeOf(err))
	assert.True(t, apperr.IsRetryable(err))
}
