package policy

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vestige/pkg/utils/logging"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

// Query is the Rego document a curation policy defines
const Query = "data.curate"

var ErrNoPolicy = goerr.New("no policy files found")

// Input is what a curation policy sees for each judged fragment
type Input struct {
	Fragment  string   `json:"fragment"`
	Score     float64  `json:"score"`
	Tags      []string `json:"tags"`
	Reason    string   `json:"reason"`
	Defaulted bool     `json:"defaulted"`
}

// Decision is the evaluated data.curate document. Categories are added to
// the ones chosen for the memory.
type Decision struct {
	Categories []string `json:"categories"`
}

// Policy evaluates user supplied Rego rules against judged fragments.
//
//	package curate
//
//	categories contains "Late Night" if {
//		contains(lower(input.fragment), "midnight")
//	}
type Policy struct {
	query *rego.PreparedEvalQuery
}

// regoPrintHook routes Rego print() statements to the context logger
type regoPrintHook struct {
	ctx context.Context
}

func (h *regoPrintHook) Print(_ print.Context, message string) error {
	logging.From(h.ctx).Debug("rego print", "message", message)
	return nil
}

// Load prepares every .rego file in policyDir. ErrNoPolicy is returned when
// the directory holds none.
func Load(ctx context.Context, policyDir string) (*Policy, error) {
	modules, err := loadModules(policyDir)
	if err != nil {
		return nil, err
	}
	if len(modules) == 0 {
		return nil, goerr.Wrap(ErrNoPolicy, "failed to load policy", goerr.V("dir", policyDir))
	}

	query, err := prepareQuery(ctx, modules, Query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare curation policy", goerr.V("dir", policyDir))
	}

	return &Policy{query: query}, nil
}

// Eval runs the policy. An undefined document yields an empty Decision.
func (p *Policy) Eval(ctx context.Context, input *Input) (*Decision, error) {
	rs, err := p.query.Eval(ctx, rego.EvalInput(input), rego.EvalPrintHook(&regoPrintHook{ctx: ctx}))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate curation policy")
	}

	var decision Decision
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return &decision, nil
	}

	raw, err := json.Marshal(rs[0].Expressions[0].Value)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal policy result")
	}
	if err := json.Unmarshal(raw, &decision); err != nil {
		return nil, goerr.Wrap(err, "invalid curation policy result", goerr.V("result", string(raw)))
	}

	return &decision, nil
}
