package curator

import (
	"context"
	"slices"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vestige/pkg/model"
	"github.com/m-mizutani/vestige/pkg/policy"
)

var ErrEmptyFragment = goerr.New("fragment is empty")

// SubmitResult is a stored memory together with the judgment it came from
type SubmitResult struct {
	Memory     *model.Memory
	Evaluation *model.Evaluation
}

// Submit judges fragment and appends it to the log
func (u *UseCase) Submit(ctx context.Context, fragment string) (*SubmitResult, error) {
	if strings.TrimSpace(fragment) == "" {
		return nil, ErrEmptyFragment
	}

	eval := u.evaluator.Evaluate(ctx, fragment)

	memory := &model.Memory{
		ID:         model.NewMemoryID(),
		Content:    fragment,
		Score:      model.RoundScore(eval.Judgment.Score),
		Timestamp:  u.now(),
		Categories: u.categorize(fragment, eval),
		Reason:     eval.Judgment.Reason,
	}
	if memory.Reason == "" {
		memory.Reason = model.NoReasonGiven
	}

	if u.policy != nil {
		categories, err := u.applyPolicy(ctx, fragment, eval, memory.Categories)
		if err != nil {
			return nil, err
		}
		memory.Categories = categories
	}

	if err := u.repo.PutMemory(ctx, memory); err != nil {
		return nil, goerr.Wrap(err, "failed to store memory", goerr.V("id", memory.ID))
	}

	return &SubmitResult{Memory: memory, Evaluation: eval}, nil
}

// categorize keeps the librarian's tags. Keyword rules are only consulted when
// the judgment was defaulted. The result is never empty.
func (u *UseCase) categorize(fragment string, eval *model.Evaluation) []string {
	if eval.Defaulted && u.rules != nil {
		if labels := u.rules.Match(fragment); len(labels) > 0 {
			return labels
		}
	}

	var tags []string
	for _, tag := range eval.Judgment.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		return []string{model.UncategorizedTag}
	}
	return tags
}

// applyPolicy appends policy categories not already present. The
// uncategorized sentinel is dropped once a real label exists.
func (u *UseCase) applyPolicy(ctx context.Context, fragment string, eval *model.Evaluation, categories []string) ([]string, error) {
	decision, err := u.policy.Eval(ctx, &policy.Input{
		Fragment:  fragment,
		Score:     eval.Judgment.Score,
		Tags:      eval.Judgment.Tags,
		Reason:    eval.Judgment.Reason,
		Defaulted: eval.Defaulted,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to apply curation policy")
	}
	if len(decision.Categories) == 0 {
		return categories, nil
	}

	var merged []string
	for _, c := range slices.Concat(categories, decision.Categories) {
		if c == model.UncategorizedTag || slices.Contains(merged, c) {
			continue
		}
		merged = append(merged, c)
	}
	if len(merged) == 0 {
		return []string{model.UncategorizedTag}, nil
	}
	return merged, nil
}

// Reflect asks the librarian about fragment without storing anything
func (u *UseCase) Reflect(ctx context.Context, fragment string) (*model.Evaluation, error) {
	if strings.TrimSpace(fragment) == "" {
		return nil, ErrEmptyFragment
	}
	return u.evaluator.Evaluate(ctx, fragment), nil
}
