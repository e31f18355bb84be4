package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vestige/pkg/model"
	"github.com/m-mizutani/vestige/pkg/usecase/curator"
	"github.com/m-mizutani/vestige/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func listCommand() *cli.Command {
	var (
		cfg      config
		label    string
		asJSON   bool
		limit    int64
		showNote bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "category",
			Aliases:     []string{"c"},
			Usage:       "Only list memories stored in this category",
			Sources:     cli.EnvVars("VESTIGE_LIST_CATEGORY"),
			Destination: &label,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print memories as JSON lines",
			Destination: &asJSON,
		},
		&cli.BoolFlag{
			Name:        "reason",
			Aliases:     []string{"r"},
			Usage:       "Show the librarian's note for each memory",
			Destination: &showNote,
		},
		&cli.IntFlag{
			Name:        "limit",
			Usage:       "Maximum number of memories to list (0 for all)",
			Value:       0,
			Sources:     cli.EnvVars("VESTIGE_LIST_LIMIT"),
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List stored memories, most significant first",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx)
			if err != nil {
				return err
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

			memories := archive.ByScore()
			if label != "" {
				memories = curator.NewArchive(memories).ByCategory(label)
			}
			if limit > 0 && int(limit) < len(memories) {
				memories = memories[:limit]
			}

			w := c.Root().Writer
			if asJSON {
				enc := json.NewEncoder(w)
				for _, m := range memories {
					if err := enc.Encode(m); err != nil {
						return goerr.Wrap(err, "failed to encode memory", goerr.V("id", m.ID))
					}
				}
				return nil
			}

			for _, m := range memories {
				printMemory(w, m, showNote)
			}
			return nil
		},
	}
}

func printMemory(w io.Writer, m *model.Memory, showNote bool) {
	fmt.Fprintf(w, "%s\t%.2f\t%s\t%s\t%s\n",
		m.ID,
		m.Score,
		m.Timestamp.Format("2006-01-02 15:04"),
		strings.Join(m.Categories, ","),
		m.Content,
	)
	if showNote {
		fmt.Fprintf(w, "\t%s\n", m.Reason)
	}
}

// loadArchive loads the log and reports dropped entries
func loadArchive(ctx context.Context, uc *curator.UseCase) (*curator.Archive, error) {
	archive, err := uc.Load(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load memories")
	}
	if archive.Skipped() > 0 {
		logging.From(ctx).Warn("skipped malformed memories", "count", archive.Skipped())
	}
	return archive, nil
}
