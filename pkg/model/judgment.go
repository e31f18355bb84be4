package model

const (
	defaultScore    = 0.5
	defaultedReason = "Defaulted due to parsing error."
	NoReasonGiven   = "No reason given."
)

// Judgment is the librarian's structured verdict on a fragment
type Judgment struct {
	Score  float64  `json:"score" jsonschema:"likelihood this memory should be retained, between 0 and 1"`
	Tags   []string `json:"tags" jsonschema:"short semantic or emotional categories such as nostalgia or robotics"`
	Reason string   `json:"reason" jsonschema:"brief explanation of why this memory is meaningful"`
}

// DefaultJudgment is returned whenever the librarian fails to produce a parseable verdict
func DefaultJudgment() Judgment {
	return Judgment{
		Score:  defaultScore,
		Tags:   []string{UncategorizedTag},
		Reason: defaultedReason,
	}
}

// Evaluation wraps a Judgment with how it was obtained. Defaulted is true when
// the judgment is DefaultJudgment because the librarian call failed; Cause then
// holds the failure.
type Evaluation struct {
	Judgment  Judgment
	Defaulted bool
	Cause     error
}
