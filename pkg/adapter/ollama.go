package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vestige/pkg/model"
	"github.com/ollama/ollama/api"
)

const (
	DefaultOllamaURL       = "http://localhost:11434"
	DefaultLibrarianModel  = "llama3.2:3b"
	DefaultEmbeddingModel  = "nomic-embed-text"
	defaultOllamaHTTPLimit = 120 * time.Second
)

var ErrEmptyEmbedding = goerr.New("embedding provider returned an empty vector")

// Ollama talks to a local Ollama server for both judgments and embeddings
type Ollama struct {
	client          *api.Client
	generativeModel string
	embeddingModel  string
}

type OllamaOption func(*ollamaConfig)

type ollamaConfig struct {
	generativeModel string
	embeddingModel  string
	httpClient      *http.Client
}

func WithOllamaGenerativeModel(model string) OllamaOption {
	return func(c *ollamaConfig) {
		c.generativeModel = model
	}
}

func WithOllamaEmbeddingModel(model string) OllamaOption {
	return func(c *ollamaConfig) {
		c.embeddingModel = model
	}
}

func WithOllamaHTTPClient(client *http.Client) OllamaOption {
	return func(c *ollamaConfig) {
		c.httpClient = client
	}
}

// NewOllama creates a client for the Ollama server at baseURL
func NewOllama(baseURL string, opts ...OllamaOption) (*Ollama, error) {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid ollama URL", goerr.V("url", baseURL))
	}

	cfg := &ollamaConfig{
		generativeModel: DefaultLibrarianModel,
		embeddingModel:  DefaultEmbeddingModel,
		httpClient:      &http.Client{Timeout: defaultOllamaHTTPLimit},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Ollama{
		client:          api.NewClient(parsed, cfg.httpClient),
		generativeModel: cfg.generativeModel,
		embeddingModel:  cfg.embeddingModel,
	}, nil
}

// judgmentFormat is the JSON schema handed to Ollama as structured output format
func judgmentFormat() (json.RawMessage, error) {
	schema, err := jsonschema.For[model.Judgment](nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build judgment schema")
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal judgment schema")
	}
	return raw, nil
}

// GenerateJSON sends prompt to the generative model and returns its raw JSON answer
func (o *Ollama) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	format, err := judgmentFormat()
	if err != nil {
		return "", err
	}

	stream := false
	var answer string
	req := &api.GenerateRequest{
		Model:  o.generativeModel,
		Prompt: prompt,
		Format: format,
		Stream: &stream,
	}
	if err := o.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		answer += resp.Response
		return nil
	}); err != nil {
		return "", goerr.Wrap(err, "failed to generate with ollama", goerr.V("model", o.generativeModel))
	}

	return answer, nil
}

// Embed returns the embedding of text. Any non-success response is an error.
func (o *Ollama) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := o.client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:  o.embeddingModel,
		Prompt: text,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed with ollama", goerr.V("model", o.embeddingModel))
	}

	if len(resp.Embedding) == 0 {
		return nil, goerr.Wrap(ErrEmptyEmbedding, "ollama returned no embedding", goerr.V("model", o.embeddingModel))
	}

	return resp.Embedding, nil
}
