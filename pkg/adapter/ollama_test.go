package adapter_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/vestige/pkg/adapter"
)

func TestOllamaEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.URL.Path, "/api/embeddings")
		gt.Equal(t, r.Method, http.MethodPost)

		var req map[string]any
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gt.Equal(t, req["model"], any("nomic-embed-text"))
		gt.Equal(t, req["prompt"], any("the mower hummed"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embedding": [0.1, 0.2, 0.3]}`))
	}))
	defer server.Close()

	client, err := adapter.NewOllama(server.URL)
	gt.NoError(t, err)

	vec, err := client.Embed(context.Background(), "the mower hummed")
	gt.NoError(t, err)
	gt.Equal(t, vec, []float64{0.1, 0.2, 0.3})
}

func TestOllamaEmbedFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "model \"nomic-embed-text\" not found"}`))
	}))
	defer server.Close()

	client, err := adapter.NewOllama(server.URL)
	gt.NoError(t, err)

	_, err = client.Embed(context.Background(), "anything")
	gt.Error(t, err)
}

func TestOllamaEmbedEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding": []}`))
	}))
	defer server.Close()

	client, err := adapter.NewOllama(server.URL)
	gt.NoError(t, err)

	_, err = client.Embed(context.Background(), "anything")
	gt.Error(t, err)
}

func TestOllamaGenerateJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.URL.Path, "/api/generate")

		var req map[string]any
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gt.Equal(t, req["model"], any("llama3.2:3b"))
		gt.Equal(t, req["stream"], any(false))
		gt.Equal(t, req["prompt"], any("evaluate this"))

		// structured output schema for the judgment
		format, ok := req["format"].(map[string]any)
		gt.True(t, ok)
		props, ok := format["properties"].(map[string]any)
		gt.True(t, ok)
		gt.Map(t, props).HasKey("score")
		gt.Map(t, props).HasKey("tags")
		gt.Map(t, props).HasKey("reason")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":    "llama3.2:3b",
			"response": `{"score": 0.8, "tags": ["robotics"], "reason": "first robot"}`,
			"done":     true,
		})
	}))
	defer server.Close()

	client, err := adapter.NewOllama(server.URL)
	gt.NoError(t, err)

	answer, err := client.GenerateJSON(context.Background(), "evaluate this")
	gt.NoError(t, err)
	gt.S(t, answer).Contains(`"score": 0.8`)
}

func TestOllamaGenerateCustomModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gt.Equal(t, req["model"], any("qwen2.5:7b"))
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "{}", "done": true})
	}))
	defer server.Close()

	client, err := adapter.NewOllama(server.URL, adapter.WithOllamaGenerativeModel("qwen2.5:7b"))
	gt.NoError(t, err)

	answer, err := client.GenerateJSON(context.Background(), "x")
	gt.NoError(t, err)
	gt.Equal(t, answer, "{}")
}

func TestNewOllamaInvalidURL(t *testing.T) {
	_, err := adapter.NewOllama("://missing-scheme")
	gt.Error(t, err)
}
