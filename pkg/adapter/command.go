package adapter

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Command runs an external program with the prompt on stdin and treats its
// stdout as the answer
type Command struct {
	argv []string
}

// NewCommand creates a generator that runs argv
func NewCommand(argv ...string) *Command {
	return &Command{argv: argv}
}

// NewOllamaCommand runs `<bin> run <model> --format json`
func NewOllamaCommand(bin, model string) *Command {
	if bin == "" {
		bin = "ollama"
	}
	if model == "" {
		model = DefaultLibrarianModel
	}
	return NewCommand(bin, "run", model, "--format", "json")
}

// GenerateJSON runs the command and returns what it printed. A non-zero exit is an error.
func (c *Command) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	if len(c.argv) == 0 {
		return "", goerr.New("command is empty")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	cmd.Stdin = strings.NewReader(prompt)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", goerr.Wrap(err, "failed to run command",
			goerr.V("command", strings.Join(c.argv, " ")),
			goerr.V("stderr", stderr.String()))
	}

	return stdout.String(), nil
}
