package adapter_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/vestige/pkg/adapter"
)

func setupGemini(t *testing.T) *adapter.Gemini {
	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if projectID == "" {
		t.Skip("TEST_GEMINI_PROJECT is not set")
	}

	client, err := adapter.NewGemini(context.Background(), projectID, "us-central1")
	gt.NoError(t, err)
	return client
}

func TestGeminiGenerateJSON(t *testing.T) {
	client := setupGemini(t)

	answer, err := client.GenerateJSON(context.Background(),
		`Evaluate this memory fragment and respond in JSON with "score", "tags" and "reason": "I built a robot from lawn mower parts."`)
	gt.NoError(t, err)

	var out map[string]any
	gt.NoError(t, json.Unmarshal([]byte(answer), &out))
	gt.Map(t, out).HasKey("score")
	gt.Map(t, out).HasKey("tags")
	gt.Map(t, out).HasKey("reason")
}

func TestGeminiEmbed(t *testing.T) {
	client := setupGemini(t)

	vec, err := client.Embed(context.Background(), "the wheels of a small robot")
	gt.NoError(t, err)
	gt.A(t, vec).Longer(0)
}
