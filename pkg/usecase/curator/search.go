package curator

import (
	"context"
	"slices"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vestige/pkg/utils/logging"
	"github.com/m-mizutani/vestige/pkg/vector"
)

// Search embeds every memory of archive into a fresh index and returns the
// topK memories closest to query. Embedding failures abort the search.
func Search(
	ctx context.Context,
	archive *Archive,
	embedder vector.Embedder,
	query string,
	topK int,
) ([]*vector.Result, error) {
	idx, err := BuildIndex(ctx, archive, embedder)
	if err != nil {
		return nil, err
	}

	results, err := idx.Query(ctx, query, topK)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query memories", goerr.V("query", query))
	}
	return results, nil
}

// BuildIndex embeds the archive content. Metadata carries id, content,
// categories and timestamp of each memory.
func BuildIndex(ctx context.Context, archive *Archive, embedder vector.Embedder) (*vector.Index, error) {
	logger := logging.From(ctx)
	idx := vector.New(embedder)

	for _, m := range archive.memories {
		metadata := map[string]any{
			"id":         string(m.ID),
			"content":    m.Content,
			"categories": slices.Clone(m.Categories),
			"timestamp":  m.Timestamp.Format(time.RFC3339),
		}
		if err := idx.Add(ctx, m.Content, metadata); err != nil {
			return nil, goerr.Wrap(err, "failed to index memory", goerr.V("id", m.ID))
		}
	}

	logger.Debug("memory index built", "entries", idx.Len())
	return idx, nil
}
