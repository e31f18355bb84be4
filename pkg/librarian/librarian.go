// Package librarian asks a language model to judge memory fragments. A failed
// or unreadable answer never surfaces as an error: it becomes the default
// judgment instead.
package librarian

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vestige/pkg/model"
	"github.com/m-mizutani/vestige/pkg/utils/logging"
)

//go:embed prompt/evaluate.md
var evaluatePromptRaw string

var evaluatePromptTmpl = template.Must(template.New("evaluate").Parse(evaluatePromptRaw))

var ErrUnparseableJudgment = goerr.New("librarian answer is not a judgment")

// Generator produces a JSON answer for a prompt
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// Evaluator judges a fragment. Implementations must not fail; they fall back
// to model.DefaultJudgment.
type Evaluator interface {
	Evaluate(ctx context.Context, fragment string) *model.Evaluation
}

// Librarian is the LLM backed Evaluator
type Librarian struct {
	gen Generator
}

func New(gen Generator) *Librarian {
	return &Librarian{gen: gen}
}

// Prompt renders the evaluation prompt for fragment
func Prompt(fragment string) (string, error) {
	var buf bytes.Buffer
	if err := evaluatePromptTmpl.Execute(&buf, struct{ Fragment string }{Fragment: fragment}); err != nil {
		return "", goerr.Wrap(err, "failed to render evaluation prompt")
	}
	return buf.String(), nil
}

// Evaluate asks the generator for a judgment of fragment
func (l *Librarian) Evaluate(ctx context.Context, fragment string) *model.Evaluation {
	eval, err := l.evaluate(ctx, fragment)
	if err != nil {
		logging.From(ctx).Warn("librarian judgment defaulted", "error", err)
		return &model.Evaluation{
			Judgment:  model.DefaultJudgment(),
			Defaulted: true,
			Cause:     err,
		}
	}
	return eval
}

func (l *Librarian) evaluate(ctx context.Context, fragment string) (*model.Evaluation, error) {
	prompt, err := Prompt(fragment)
	if err != nil {
		return nil, err
	}

	answer, err := l.gen.GenerateJSON(ctx, prompt)
	if err != nil {
		return nil, goerr.Wrap(err, "librarian call failed")
	}

	judgment, err := ParseJudgment(answer)
	if err != nil {
		return nil, err
	}

	return &model.Evaluation{Judgment: *judgment}, nil
}

// rawJudgment distinguishes missing fields from zero values
type rawJudgment struct {
	Score  *float64 `json:"score"`
	Tags   []string `json:"tags"`
	Reason *string  `json:"reason"`
}

// ParseJudgment decodes a librarian answer. Missing fields are filled the same
// way the curator fills them: score 0.5, the uncategorized tag, and a
// placeholder reason.
func ParseJudgment(answer string) (*model.Judgment, error) {
	trimmed := strings.TrimSpace(answer)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, goerr.Wrap(ErrUnparseableJudgment, "answer is not a JSON object", goerr.V("answer", answer))
	}

	var raw rawJudgment
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return nil, goerr.Wrap(ErrUnparseableJudgment, "failed to decode judgment",
			goerr.V("answer", answer),
			goerr.V("cause", err.Error()))
	}

	judgment := model.DefaultJudgment()
	judgment.Reason = model.NoReasonGiven
	if raw.Score != nil {
		judgment.Score = *raw.Score
	}
	if len(raw.Tags) > 0 {
		judgment.Tags = raw.Tags
	}
	if raw.Reason != nil {
		judgment.Reason = *raw.Reason
	}

	return &judgment, nil
}
