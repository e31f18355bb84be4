package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func addCommand() *cli.Command {
	var (
		cfg       config
		inputPath string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Read the fragment from a file (\"-\" for stdin)",
			Sources:     cli.EnvVars("VESTIGE_INPUT"),
			Destination: &inputPath,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, librarianFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "add",
		Usage:     "Submit a memory fragment to the librarian and store it",
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

			s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
			s.Suffix = " The librarian is reading..."
			s.Start()
			result, err := uc.Submit(ctx, fragment)
			s.Stop()
			if err != nil {
				return goerr.Wrap(err, "failed to submit fragment")
			}

			w := c.Root().Writer
			fmt.Fprintf(w, "Memory stored in: %s\n", strings.Join(result.Memory.Categories, ", "))
			fmt.Fprintf(w, "Librarian's note: %s\n", result.Memory.Reason)
			fmt.Fprintf(w, "ID: %s (score %.2f)\n", result.Memory.ID, result.Memory.Score)
			return nil
		},
	}
}

// readFragment takes the fragment from args, or from inputPath when set
func readFragment(args []string, inputPath string) (string, error) {
	if inputPath == "" {
		fragment := strings.Join(args, " ")
		if strings.TrimSpace(fragment) == "" {
			return "", goerr.New("fragment is required")
		}
		return fragment, nil
	}

	var (
		data []byte
		err  error
	)
	if inputPath == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(inputPath)
	}
	if err != nil {
		return "", goerr.Wrap(err, "failed to read fragment", goerr.V("path", inputPath))
	}

	fragment := strings.TrimSpace(string(data))
	if fragment == "" {
		return "", goerr.New("fragment is empty", goerr.V("path", inputPath))
	}
	return fragment, nil
}
