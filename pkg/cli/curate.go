package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vestige/pkg/usecase/curator"
	"github.com/m-mizutani/vestige/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const curateHelp = `Type a memory fragment to store it, or a command:
  :ask <fragment>     reflect on a fragment without storing it
  :list [category]    show memories, most significant first
  :categories         show categories with counts
  :help               show this message
  :quit               leave the session
`

func curateCommand() *cli.Command {
	var cfg config

	var flags []cli.Flag
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, librarianFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "curate",
		Usage: "Start an interactive curation session",
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

			uc, err := cfg.newCurator(ctx, repo)
			if err != nil {
				return err
			}

			archive, err := loadArchive(ctx, uc)
			if err != nil {
				return err
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "vestige> ",
				HistoryFile:     historyFile(),
				InterruptPrompt: "^C",
				EOFPrompt:       ":quit",
			})
			if err != nil {
				return goerr.Wrap(err, "failed to start readline")
			}
			defer rl.Close()

			session := &curateSession{uc: uc, archive: archive, w: c.Root().Writer}
			fmt.Fprintf(session.w, "%d memories in the archive. Type :help for commands.\n", archive.Len())

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					if line == "" {
						return nil
					}
					continue
				}
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read line")
				}

				if quit := session.handle(ctx, strings.TrimSpace(line)); quit {
					return nil
				}
			}
		},
	}
}

func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "vestige")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ""
	}
	return filepath.Join(dir, "history")
}

type curateSession struct {
	uc      *curator.UseCase
	archive *curator.Archive
	w       io.Writer
}

// handle runs one line of input and reports whether the session should end
func (s *curateSession) handle(ctx context.Context, line string) bool {
	if line == "" {
		return false
	}

	if !strings.HasPrefix(line, ":") {
		s.submit(ctx, line)
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case ":quit", ":q", ":exit":
		return true

	case ":help", ":h":
		fmt.Fprint(s.w, curateHelp)

	case ":ask":
		eval, err := s.uc.Reflect(ctx, arg)
		if err != nil {
			fmt.Fprintf(s.w, "error: %v\n", err)
			return false
		}
		printEvaluation(s.w, eval)

	case ":list":
		memories := s.archive.ByScore()
		if arg != "" {
			memories = curator.NewArchive(memories).ByCategory(arg)
		}
		if len(memories) == 0 {
			fmt.Fprintln(s.w, "No memories yet.")
		}
		for _, m := range memories {
			printMemory(s.w, m, false)
		}

	case ":categories":
		counts := s.archive.CategoryCounts()
		for _, label := range s.archive.Categories() {
			fmt.Fprintf(s.w, "%s\t%d\n", label, counts[label])
		}

	default:
		fmt.Fprintf(s.w, "unknown command %q, type :help\n", cmd)
	}

	return false
}

func (s *curateSession) submit(ctx context.Context, fragment string) {
	result, err := s.uc.Submit(ctx, fragment)
	if err != nil {
		logging.From(ctx).Error("failed to submit fragment", "error", err)
		fmt.Fprintf(s.w, "error: %v\n", err)
		return
	}
	s.archive.Append(result.Memory)

	fmt.Fprintf(s.w, "Memory stored in: %s\n", strings.Join(result.Memory.Categories, ", "))
	fmt.Fprintf(s.w, "Librarian's note: %s\n", result.Memory.Reason)
}
