package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/vestige/pkg/model"
	"github.com/m-mizutani/vestige/pkg/repository"
	"github.com/m-mizutani/vestige/pkg/usecase/curator"
)

func seedLog(t *testing.T, memories ...*model.Memory) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memories.jsonl")
	repo := repository.NewJSONL(path)
	for _, m := range memories {
		gt.NoError(t, repo.PutMemory(context.Background(), m))
	}
	return path
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	err := app.Run(context.Background(), append([]string{"vestige"}, args...))
	return buf.String(), err
}

// fakeOllama writes an executable standing in for `ollama run <model> --format json`
func fakeOllama(t *testing.T, answer string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ollama")
	script := "#!/bin/sh\ncat >/dev/null\necho '" + answer + "'\n"
	gt.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestListCommand(t *testing.T) {
	ts := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	path := seedLog(t,
		&model.Memory{ID: "a1", Content: "built a robot", Score: 0.4, Timestamp: ts, Categories: []string{"Robots"}, Reason: "r"},
		&model.Memory{ID: "b2", Content: "dreamt of the sea", Score: 0.9, Timestamp: ts, Categories: []string{"Dreams"}, Reason: "r"},
	)

	t.Run("ordered by score", func(t *testing.T) {
		out, err := runApp(t, "list", "--log-path", path)
		gt.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(out), "\n")
		gt.A(t, lines).Length(2)
		gt.True(t, strings.HasPrefix(lines[0], "b2\t0.90"))
		gt.True(t, strings.HasPrefix(lines[1], "a1\t0.40"))
	})

	t.Run("filtered by category", func(t *testing.T) {
		out, err := runApp(t, "list", "--log-path", path, "--category", "Robots")
		gt.NoError(t, err)
		gt.S(t, out).Contains("built a robot")
		gt.False(t, strings.Contains(out, "dreamt"))
	})

	t.Run("json output", func(t *testing.T) {
		out, err := runApp(t, "list", "--log-path", path, "--json", "--limit", "1")
		gt.NoError(t, err)
		gt.S(t, out).Contains(`"id":"b2"`)
		gt.Equal(t, strings.Count(out, "\n"), 1)
	})
}

func TestCategoriesCommand(t *testing.T) {
	ts := time.Now()
	path := seedLog(t,
		&model.Memory{ID: "a1", Content: "x", Score: 0.5, Timestamp: ts, Categories: []string{"Robots", "AI"}},
		&model.Memory{ID: "b2", Content: "y", Score: 0.5, Timestamp: ts, Categories: []string{"Robots"}},
	)

	out, err := runApp(t, "categories", "--log-path", path)
	gt.NoError(t, err)
	gt.Equal(t, out, "AI\t1\nRobots\t2\n")
}

func TestAddCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memories.jsonl")
	bin := fakeOllama(t, `{"score": 0.82, "tags": ["robotics"], "reason": "a small triumph"}`)

	out, err := runApp(t, "add",
		"--log-path", path,
		"--evaluator", "command",
		"--ollama-command", bin,
		"taught", "the", "robot", "to", "wave",
	)
	gt.NoError(t, err)
	gt.S(t, out).Contains("Memory stored in: robotics")
	gt.S(t, out).Contains("Librarian's note: a small triumph")

	result, err := repository.NewJSONL(path).LoadMemories(context.Background())
	gt.NoError(t, err)
	gt.A(t, result.Memories).Length(1)
	gt.Equal(t, result.Memories[0].Content, "taught the robot to wave")
	gt.Equal(t, result.Memories[0].Score, 0.82)
}

func TestAddCommandDefaultsOnBadAnswer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memories.jsonl")
	bin := fakeOllama(t, "I am not JSON")

	out, err := runApp(t, "add",
		"--log-path", path,
		"--evaluator", "command",
		"--ollama-command", bin,
		"--category-rules", "default",
		"my robot dreams",
	)
	gt.NoError(t, err)
	gt.S(t, out).Contains("Memory stored in: Robots, Dreams")
	gt.S(t, out).Contains("Defaulted due to parsing error.")
}

func TestAddCommandRequiresFragment(t *testing.T) {
	_, err := runApp(t, "add", "--log-path", filepath.Join(t.TempDir(), "m.jsonl"))
	gt.Error(t, err)
}

func TestUnsupportedBackend(t *testing.T) {
	_, err := runApp(t, "list", "--backend", "sqlite")
	gt.Error(t, err)
}

func TestCurateSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memories.jsonl")
	cfg := &config{
		evaluator:      "command",
		ollamaCommand:  fakeOllama(t, `{"score": 0.7, "tags": ["joy"], "reason": "warm"}`),
		librarianModel: "test",
	}
	repo := repository.NewJSONL(path)
	ctx := context.Background()

	uc, err := cfg.newCurator(ctx, repo)
	gt.NoError(t, err)

	var buf bytes.Buffer
	s := &curateSession{uc: uc, archive: curator.NewArchive(nil), w: &buf}

	gt.False(t, s.handle(ctx, "coffee with an old friend"))
	gt.S(t, buf.String()).Contains("Memory stored in: joy")
	gt.Equal(t, s.archive.Len(), 1)

	buf.Reset()
	gt.False(t, s.handle(ctx, ":categories"))
	gt.Equal(t, buf.String(), "joy\t1\n")

	buf.Reset()
	gt.False(t, s.handle(ctx, ":list joy"))
	gt.S(t, buf.String()).Contains("coffee with an old friend")

	buf.Reset()
	gt.False(t, s.handle(ctx, ":ask rainy afternoon"))
	gt.S(t, buf.String()).Contains("Insight: warm")
	gt.Equal(t, s.archive.Len(), 1)

	buf.Reset()
	gt.False(t, s.handle(ctx, ":nope"))
	gt.S(t, buf.String()).Contains("unknown command")

	gt.True(t, s.handle(ctx, ":quit"))
}

func TestAddCommandWithPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memories.jsonl")
	bin := fakeOllama(t, `{"score": 0.6, "tags": ["calm"], "reason": "quiet"}`)

	dir := t.TempDir()
	rule := "package curate\n\ncategories contains \"Late Night\" if {\n\tcontains(input.fragment, \"midnight\")\n}\n"
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "curate.rego"), []byte(rule), 0o644))

	out, err := runApp(t, "add",
		"--log-path", path,
		"--evaluator", "command",
		"--ollama-command", bin,
		"--policy-dir", dir,
		"tea at midnight",
	)
	gt.NoError(t, err)
	gt.S(t, out).Contains("Memory stored in: calm, Late Night")
}

// memStorage commits an object on Close unless its context was cancelled
type memStorage struct {
	objects   map[string]*bytes.Buffer
	failAfter int
	ctx       context.Context
}

type memObject struct {
	storage *memStorage
	key     string
	buf     bytes.Buffer
	writes  int
}

func (o *memObject) Write(p []byte) (int, error) {
	o.writes++
	if o.storage.failAfter > 0 && o.writes > o.storage.failAfter {
		return 0, errors.New("connection reset")
	}
	return o.buf.Write(p)
}

func (o *memObject) Close() error {
	if err := o.storage.ctx.Err(); err != nil {
		return err
	}
	o.storage.objects[o.key] = &o.buf
	return nil
}

func (s *memStorage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	s.ctx = ctx
	return &memObject{storage: s, key: key}, nil
}

func TestExportJSONL(t *testing.T) {
	ts := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	archive := curator.NewArchive([]*model.Memory{
		{ID: "a1", Content: "first", Score: 0.1, Timestamp: ts, Categories: []string{"x"}},
		{ID: "b2", Content: "second", Score: 0.9, Timestamp: ts, Categories: []string{"y"}},
	})

	storage := &memStorage{objects: map[string]*bytes.Buffer{}}
	gt.NoError(t, exportJSONL(context.Background(), storage, "out.jsonl", archive))

	gt.Map(t, storage.objects).HasKey("out.jsonl")
	result, err := repository.Decode(context.Background(), storage.objects["out.jsonl"])
	gt.NoError(t, err)
	gt.A(t, result.Memories).Length(2)
	gt.Equal(t, result.Memories[0].ID, "a1")
	gt.Equal(t, result.Memories[1].Content, "second")
}

func TestExportJSONLWriteFailureLeavesNoObject(t *testing.T) {
	ts := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	archive := curator.NewArchive([]*model.Memory{
		{ID: "a1", Content: "first", Score: 0.1, Timestamp: ts, Categories: []string{"x"}},
		{ID: "b2", Content: "second", Score: 0.9, Timestamp: ts, Categories: []string{"y"}},
	})

	storage := &memStorage{objects: map[string]*bytes.Buffer{}, failAfter: 1}
	err := exportJSONL(context.Background(), storage, "out.jsonl", archive)
	gt.Error(t, err)

	gt.Equal(t, len(storage.objects), 0)
	gt.Error(t, storage.ctx.Err())
}

func TestExportRequiresDestination(t *testing.T) {
	_, err := runApp(t, "export", "--log-path", filepath.Join(t.TempDir(), "m.jsonl"))
	gt.Error(t, err)
}

func TestUnknownLogLevel(t *testing.T) {
	_, err := runApp(t, "list", "--log-path", filepath.Join(t.TempDir(), "m.jsonl"), "--log-level", "chatty")
	gt.Error(t, err)
}
