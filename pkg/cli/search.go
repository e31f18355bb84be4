package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vestige/pkg/usecase/curator"
	"github.com/urfave/cli/v3"
)

func searchCommand() *cli.Command {
	var (
		cfg  config
		topK int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "top-k",
			Aliases:     []string{"k"},
			Usage:       "Number of memories to return",
			Value:       5,
			Sources:     cli.EnvVars("VESTIGE_TOP_K"),
			Destination: &topK,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, embeddingFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "search",
		Usage:     "Find memories closest in meaning to a query",
		ArgsUsage: "<query...>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx)
			if err != nil {
				return err
			}

			query := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return goerr.New("query is required")
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer closeRepository(ctx, repo)

			embedder, err := cfg.newEmbedder(ctx)
			if err != nil {
				return err
			}

			archive, err := loadArchive(ctx, curator.New(repo, nil))
			if err != nil {
				return err
			}

			results, err := curator.Search(ctx, archive, embedder, query, int(topK))
			if err != nil {
				return goerr.Wrap(err, "failed to search memories")
			}

			for _, r := range results {
				fmt.Fprintf(c.Root().Writer, "%.4f\t%v\t%v\n", r.Score, r.Metadata["id"], r.Metadata["content"])
			}
			return nil
		},
	}
}
