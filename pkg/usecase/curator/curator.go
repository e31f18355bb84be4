package curator

import (
	"time"

	"github.com/m-mizutani/vestige/pkg/category"
	"github.com/m-mizutani/vestige/pkg/librarian"
	"github.com/m-mizutani/vestige/pkg/policy"
	"github.com/m-mizutani/vestige/pkg/repository"
)

// UseCase curates memory fragments: judging, storing, browsing and searching them
type UseCase struct {
	repo      repository.Repository
	evaluator librarian.Evaluator
	rules     *category.Rules
	policy    *policy.Policy
	now       func() time.Time
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithCategoryRules enables keyword categories for fragments whose judgment was defaulted
func WithCategoryRules(rules *category.Rules) Option {
	return func(uc *UseCase) {
		uc.rules = rules
	}
}

// WithPolicy adds the categories decided by a curation policy
func WithPolicy(p *policy.Policy) Option {
	return func(uc *UseCase) {
		uc.policy = p
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) {
		uc.now = now
	}
}

// New creates a new curator UseCase instance
func New(
	repo repository.Repository,
	evaluator librarian.Evaluator,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		repo:      repo,
		evaluator: evaluator,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}
