package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vestige/pkg/adapter"
	"github.com/m-mizutani/vestige/pkg/repository"
	"github.com/m-mizutani/vestige/pkg/usecase/curator"
	"github.com/m-mizutani/vestige/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func exportCommand() *cli.Command {
	var (
		cfg     config
		bucket  string
		object  string
		dataset string
		table   string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket to export into",
			Sources:     cli.EnvVars("VESTIGE_BUCKET"),
			Destination: &bucket,
		},
		&cli.StringFlag{
			Name:        "object",
			Usage:       "Object name (default: vestige/memories-<timestamp>.jsonl)",
			Sources:     cli.EnvVars("VESTIGE_OBJECT"),
			Destination: &object,
		},
		&cli.StringFlag{
			Name:        "bq-dataset",
			Usage:       "BigQuery dataset to export into (uses --project)",
			Sources:     cli.EnvVars("VESTIGE_BQ_DATASET"),
			Destination: &dataset,
		},
		&cli.StringFlag{
			Name:        "bq-table",
			Usage:       "BigQuery table to export into",
			Value:       "memories",
			Sources:     cli.EnvVars("VESTIGE_BQ_TABLE"),
			Destination: &table,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "export",
		Usage: "Export the memory archive to Cloud Storage (JSONL) and/or BigQuery",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx)
			if err != nil {
				return err
			}

			if bucket == "" && dataset == "" {
				return goerr.New("either bucket or bq-dataset is required")
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer closeRepository(ctx, repo)

			archive, err := loadArchive(ctx, curator.New(repo, nil))
			if err != nil {
				return err
			}

			w := c.Root().Writer
			if bucket != "" {
				storage, err := cfg.newStorage(ctx, bucket)
				if err != nil {
					return err
				}
				if object == "" {
					object = fmt.Sprintf("vestige/memories-%s.jsonl", time.Now().UTC().Format("20060102T150405Z"))
				}
				if err := exportJSONL(ctx, storage, object, archive); err != nil {
					return err
				}
				fmt.Fprintf(w, "Exported %d memories to gs://%s/%s\n", archive.Len(), bucket, object)
			}

			if dataset != "" {
				bq, err := cfg.newBigQuery(ctx, dataset, table)
				if err != nil {
					return err
				}
				if err := bq.EnsureTable(ctx); err != nil {
					return err
				}
				if err := bq.PutMemories(ctx, archive.All()); err != nil {
					return err
				}
				fmt.Fprintf(w, "Exported %d memories to %s.%s\n", archive.Len(), dataset, table)
			}

			logging.From(ctx).Info("archive exported", "memories", archive.Len())
			return nil
		},
	}
}

// exportJSONL writes archive to object in the log's own line format
func exportJSONL(ctx context.Context, storage adapter.Storage, object string, archive *curator.Archive) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wr, err := storage.Put(ctx, object)
	if err != nil {
		return goerr.Wrap(err, "failed to open object", goerr.V("object", object))
	}

	// Failures cancel ctx so the partial object is never committed.
	for _, m := range archive.All() {
		line, err := repository.EncodeLine(m)
		if err != nil {
			cancel()
			return goerr.Wrap(err, "failed to encode memory", goerr.V("id", m.ID))
		}
		if _, err := wr.Write(line); err != nil {
			cancel()
			return goerr.Wrap(err, "failed to write memory", goerr.V("id", m.ID))
		}
	}

	if err := wr.Close(); err != nil {
		return goerr.Wrap(err, "failed to commit object", goerr.V("object", object))
	}
	return nil
}
