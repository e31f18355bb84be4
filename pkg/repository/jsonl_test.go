package repository_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/vestige/pkg/model"
	"github.com/m-mizutani/vestige/pkg/repository"
)

func newMemory(content string, ts time.Time) *model.Memory {
	return &model.Memory{
		ID:         model.NewMemoryID(),
		Content:    content,
		Score:      0.87,
		Timestamp:  ts,
		Categories: []string{"robotics", "nostalgia"},
		Reason:     "Reminds me of the first robot I built.",
	}
}

func TestJSONLRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "memories.jsonl")
	repo := repository.NewJSONL(path)

	ts := time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.FixedZone("JST", 9*60*60))
	mem := newMemory("The lawn mower sounded like a tiny spaceship", ts)
	gt.NoError(t, repo.PutMemory(ctx, mem))

	result, err := repository.NewJSONL(path).LoadMemories(ctx)
	gt.NoError(t, err)
	gt.Equal(t, result.Skipped, 0)
	gt.A(t, result.Memories).Length(1)

	got := result.Memories[0]
	gt.Equal(t, got.ID, mem.ID)
	gt.Equal(t, got.Content, mem.Content)
	gt.Equal(t, got.Score, mem.Score)
	gt.Equal(t, got.Categories, mem.Categories)
	gt.Equal(t, got.Reason, mem.Reason)
	gt.True(t, got.Timestamp.Equal(mem.Timestamp))
}

func TestJSONLPreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewJSONL(filepath.Join(t.TempDir(), "memories.jsonl"))

	base := time.Now()
	var ids []model.MemoryID
	for i := 0; i < 5; i++ {
		mem := newMemory("fragment", base.Add(time.Duration(-i)*time.Hour))
		ids = append(ids, mem.ID)
		gt.NoError(t, repo.PutMemory(ctx, mem))
	}

	result, err := repo.LoadMemories(ctx)
	gt.NoError(t, err)
	gt.A(t, result.Memories).Length(5)
	for i, mem := range result.Memories {
		gt.Equal(t, mem.ID, ids[i])
	}
}

func TestJSONLSkipsMalformedLine(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "memories.jsonl")
	repo := repository.NewJSONL(path)

	first := newMemory("first", time.Now())
	gt.NoError(t, repo.PutMemory(ctx, first))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	gt.NoError(t, err)
	_, err = f.WriteString("{not json at all\n")
	gt.NoError(t, err)
	gt.NoError(t, f.Close())

	second := newMemory("second", time.Now())
	gt.NoError(t, repo.PutMemory(ctx, second))

	result, err := repo.LoadMemories(ctx)
	gt.NoError(t, err)
	gt.Equal(t, result.Skipped, 1)
	gt.A(t, result.Memories).Length(2)
	gt.Equal(t, result.Memories[0].ID, first.ID)
	gt.Equal(t, result.Memories[1].ID, second.ID)
}

func TestJSONLMissingFile(t *testing.T) {
	repo := repository.NewJSONL(filepath.Join(t.TempDir(), "nothing", "memories.jsonl"))
	result, err := repo.LoadMemories(context.Background())
	gt.NoError(t, err)
	gt.A(t, result.Memories).Length(0)
	gt.Equal(t, result.Skipped, 0)
}

func TestDecodeLegacyTimestamps(t *testing.T) {
	input := strings.Join([]string{
		`{"id": "a1b2c3d4", "content": "dreamt of wheels", "score": 0.91, "timestamp": "2025-06-01T21:15:02.123456", "categories": ["dream"], "reason": "vivid"}`,
		``,
		`{"id": "e5f6a7b8", "content": "no zone, no fraction", "score": 0.4, "timestamp": "2025-06-02T08:00:00", "categories": ["mundane"], "reason": "ok"}`,
		`{"id": "bad", "content": "broken time", "score": 0.4, "timestamp": "yesterday", "categories": [], "reason": ""}`,
		`{"id": "c9d0e1f2", "content": "with offset", "score": 0.5, "timestamp": "2025-06-03T10:00:00+02:00", "categories": ["x"], "reason": "y"}`,
	}, "\n")

	result, err := repository.Decode(context.Background(), strings.NewReader(input))
	gt.NoError(t, err)
	gt.Equal(t, result.Skipped, 1)
	gt.A(t, result.Memories).Length(3)

	want := time.Date(2025, 6, 1, 21, 15, 2, 123456000, time.Local)
	gt.True(t, result.Memories[0].Timestamp.Equal(want))
	gt.Equal(t, result.Memories[1].Timestamp.Hour(), 8)
	gt.Equal(t, result.Memories[2].ID, model.MemoryID("c9d0e1f2"))
}

func TestDecodeLineFillsMissingCategories(t *testing.T) {
	testCases := map[string]string{
		"null":    `{"id": "n1", "content": "a", "score": 0.5, "timestamp": "2025-06-01T10:00:00Z", "categories": null, "reason": "r"}`,
		"missing": `{"id": "n2", "content": "b", "score": 0.5, "timestamp": "2025-06-01T10:00:00Z", "reason": "r"}`,
		"empty":   `{"id": "n3", "content": "c", "score": 0.5, "timestamp": "2025-06-01T10:00:00Z", "categories": [], "reason": "r"}`,
	}

	for name, line := range testCases {
		t.Run(name, func(t *testing.T) {
			memory, err := repository.DecodeLine([]byte(line))
			gt.NoError(t, err)
			gt.Equal(t, memory.Categories, []string{model.UncategorizedTag})
		})
	}
}

func TestEncodeLineIsSingleLine(t *testing.T) {
	mem := newMemory("line one\nline two", time.Now())
	line, err := repository.EncodeLine(mem)
	gt.NoError(t, err)
	gt.Equal(t, bytes.Count(line, []byte("\n")), 1)
	gt.True(t, bytes.HasSuffix(line, []byte("\n")))

	decoded, err := repository.DecodeLine(line)
	gt.NoError(t, err)
	gt.Equal(t, decoded.Content, mem.Content)
}
