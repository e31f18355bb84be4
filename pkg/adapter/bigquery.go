package adapter

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vestige/pkg/model"
	"google.golang.org/api/googleapi"
)

// BigQuery is an interface for exporting memories to a BigQuery table
type BigQuery interface {
	// EnsureTable creates the memory table when it does not exist yet
	EnsureTable(ctx context.Context) error

	// PutMemories streams memories into the table
	PutMemories(ctx context.Context, memories []*model.Memory) error
}

type bigqueryClient struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// memoryRow is the BigQuery row layout of a memory
type memoryRow struct {
	ID         string    `bigquery:"id"`
	Content    string    `bigquery:"content"`
	Score      float64   `bigquery:"score"`
	Timestamp  time.Time `bigquery:"timestamp"`
	Categories []string  `bigquery:"categories"`
	Reason     string    `bigquery:"reason"`
}

// Save implements bigquery.ValueSaver; the memory ID doubles as insert ID
func (r *memoryRow) Save() (map[string]bigquery.Value, string, error) {
	categories := make([]bigquery.Value, len(r.Categories))
	for i, c := range r.Categories {
		categories[i] = c
	}
	return map[string]bigquery.Value{
		"id":         r.ID,
		"content":    r.Content,
		"score":      r.Score,
		"timestamp":  r.Timestamp,
		"categories": categories,
		"reason":     r.Reason,
	}, r.ID, nil
}

// NewBigQuery creates a new BigQuery client writing to dataset.table
func NewBigQuery(ctx context.Context, projectID, dataset, table string) (BigQuery, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client")
	}

	return &bigqueryClient{
		client:  client,
		dataset: dataset,
		table:   table,
	}, nil
}

func (bq *bigqueryClient) EnsureTable(ctx context.Context) error {
	table := bq.client.Dataset(bq.dataset).Table(bq.table)

	_, err := table.Metadata(ctx)
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusNotFound {
		return goerr.Wrap(err, "failed to get table metadata",
			goerr.V("dataset", bq.dataset),
			goerr.V("table", bq.table))
	}

	schema, err := bigquery.InferSchema(memoryRow{})
	if err != nil {
		return goerr.Wrap(err, "failed to infer memory schema")
	}

	if err := table.Create(ctx, &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Field: "timestamp",
		},
	}); err != nil {
		return goerr.Wrap(err, "failed to create table",
			goerr.V("dataset", bq.dataset),
			goerr.V("table", bq.table))
	}

	return nil
}

func (bq *bigqueryClient) PutMemories(ctx context.Context, memories []*model.Memory) error {
	if len(memories) == 0 {
		return nil
	}

	rows := make([]*memoryRow, len(memories))
	for i, m := range memories {
		rows[i] = &memoryRow{
			ID:         string(m.ID),
			Content:    m.Content,
			Score:      m.Score,
			Timestamp:  m.Timestamp,
			Categories: m.Categories,
			Reason:     m.Reason,
		}
	}

	inserter := bq.client.Dataset(bq.dataset).Table(bq.table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return goerr.Wrap(err, "failed to insert memories",
			goerr.V("dataset", bq.dataset),
			goerr.V("table", bq.table),
			goerr.V("count", len(rows)))
	}

	return nil
}
