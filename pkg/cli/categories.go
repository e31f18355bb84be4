package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/vestige/pkg/usecase/curator"
	"github.com/urfave/cli/v3"
)

func categoriesCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "categories",
		Usage: "Show every category with its number of memories",
		Flags: globalFlags(&cfg),
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

			counts := archive.CategoryCounts()
			for _, label := range archive.Categories() {
				fmt.Fprintf(c.Root().Writer, "%s\t%d\n", label, counts[label])
			}
			return nil
		},
	}
}
