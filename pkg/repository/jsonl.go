package repository

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vestige/pkg/model"
	"github.com/m-mizutani/vestige/pkg/utils/logging"
)

// DefaultLogPath is where the fragment log lives unless configured otherwise
const DefaultLogPath = "data/memories.jsonl"

// timestampLayouts are tried in order when decoding a stored timestamp. The
// offset-less layouts accept logs written without a zone, read as local time.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// JSONL stores memories as newline-delimited JSON in a single file
type JSONL struct {
	path string
}

func NewJSONL(path string) *JSONL {
	if path == "" {
		path = DefaultLogPath
	}
	return &JSONL{path: path}
}

// Path returns the log file location
func (r *JSONL) Path() string {
	return r.path
}

// jsonlRecord is the on-disk shape of a memory
type jsonlRecord struct {
	ID         model.MemoryID `json:"id"`
	Content    string         `json:"content"`
	Score      float64        `json:"score"`
	Timestamp  string         `json:"timestamp"`
	Categories []string       `json:"categories"`
	Reason     string         `json:"reason"`
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if layout == time.RFC3339Nano {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, goerr.New("unsupported timestamp format", goerr.V("timestamp", s))
}

// EncodeLine serializes a memory into one log line including the trailing newline
func EncodeLine(memory *model.Memory) ([]byte, error) {
	rec := jsonlRecord{
		ID:         memory.ID,
		Content:    memory.Content,
		Score:      memory.Score,
		Timestamp:  memory.Timestamp.Format(time.RFC3339Nano),
		Categories: memory.Categories,
		Reason:     memory.Reason,
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal memory", goerr.V("id", memory.ID))
	}
	return append(data, '\n'), nil
}

// DecodeLine parses one log line into a memory
func DecodeLine(line []byte) (*model.Memory, error) {
	var rec jsonlRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal memory")
	}

	ts, err := parseTimestamp(rec.Timestamp)
	if err != nil {
		return nil, err
	}

	categories := rec.Categories
	if len(categories) == 0 {
		categories = []string{model.UncategorizedTag}
	}

	return &model.Memory{
		ID:         rec.ID,
		Content:    rec.Content,
		Score:      rec.Score,
		Timestamp:  ts,
		Categories: categories,
		Reason:     rec.Reason,
	}, nil
}

// PutMemory appends one line to the log, creating its directory if needed.
// Writers are not coordinated; each record goes out in a single write.
func (r *JSONL) PutMemory(ctx context.Context, memory *model.Memory) error {
	line, err := EncodeLine(memory)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return goerr.Wrap(err, "failed to create log directory", goerr.V("path", r.path))
	}

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return goerr.Wrap(err, "failed to open log", goerr.V("path", r.path))
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return goerr.Wrap(err, "failed to append memory", goerr.V("path", r.path), goerr.V("id", memory.ID))
	}

	return f.Close()
}

// LoadMemories reads the whole log. A missing file is an empty log.
func (r *JSONL) LoadMemories(ctx context.Context) (*LoadResult, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &LoadResult{}, nil
		}
		return nil, goerr.Wrap(err, "failed to open log", goerr.V("path", r.path))
	}
	defer f.Close()

	return Decode(ctx, f)
}

// Decode reads newline-delimited memories from rd. Lines that fail to decode
// are counted in Skipped; blank lines are ignored.
func Decode(ctx context.Context, rd io.Reader) (*LoadResult, error) {
	logger := logging.From(ctx)
	result := &LoadResult{}
	br := bufio.NewReader(rd)

	for lineNo := 1; ; lineNo++ {
		line, err := br.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			memory, decodeErr := DecodeLine(bytes.TrimSpace(line))
			if decodeErr != nil {
				logger.Debug("skip malformed log line", "line", lineNo, "error", decodeErr)
				result.Skipped++
			} else {
				result.Memories = append(result.Memories, memory)
			}
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read log", goerr.V("line", lineNo))
		}
	}

	return result, nil
}
