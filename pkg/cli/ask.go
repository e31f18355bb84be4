package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vestige/pkg/model"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	var (
		cfg       config
		inputPath string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Read the fragment from a file (\"-\" for stdin)",
			Destination: &inputPath,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, librarianFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Ask the librarian about a fragment without storing it",
		ArgsUsage: "[fragment...]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx)
			if err != nil {
				return err
			}

			fragment, err := readFragment(c.Args().Slice(), inputPath)
			if err != nil {
				return err
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer closeRepository(ctx, repo)

			uc, err := cfg.newCurator(ctx, repo)
			if err != nil {
				return err
			}

			eval, err := uc.Reflect(ctx, fragment)
			if err != nil {
				return goerr.Wrap(err, "failed to reflect on fragment")
			}

			printEvaluation(c.Root().Writer, eval)
			return nil
		},
	}
}

func printEvaluation(w io.Writer, eval *model.Evaluation) {
	fmt.Fprintf(w, "Tags: %s\n", strings.Join(eval.Judgment.Tags, ", "))
	fmt.Fprintf(w, "Score: %.2f\n", eval.Judgment.Score)
	fmt.Fprintf(w, "Insight: %s\n", eval.Judgment.Reason)
	if eval.Defaulted {
		fmt.Fprintln(w, "(the librarian could not answer; default judgment used)")
	}
}
