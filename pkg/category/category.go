// Package category assigns labels to fragments by keyword matching
package category

import (
	"os"
	"regexp"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

type Rule struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

// Rules is an ordered list of keyword rules
type Rules struct {
	Rules []Rule `yaml:"rules"`
}

// Default returns the built-in rule set
func Default() *Rules {
	return &Rules{
		Rules: []Rule{
			{Label: "Robots", Keywords: []string{"robot", "automation", "actuator", "wheels"}},
			{Label: "Dreams", Keywords: []string{"dream", "imagine", "whisper", "subconscious"}},
			{Label: "AI", Keywords: []string{"AI", "LLM", "intelligence", "Copilot", "model"}},
			{Label: "Philosophy", Keywords: []string{"self", "identity", "consciousness", "meaning"}},
			{Label: "Mundane Joys", Keywords: []string{"branch", "lawn", "weather", "riding", "mower"}},
		},
	}
}

// Load reads rules from a YAML file
//
//	rules:
//	  - label: Robots
//	    keywords: [robot, wheels]
func Load(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read category rules", goerr.V("path", path))
	}

	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, goerr.Wrap(err, "failed to parse category rules", goerr.V("path", path))
	}

	if err := rules.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid category rules", goerr.V("path", path))
	}

	return &rules, nil
}

func (r *Rules) Validate() error {
	for i, rule := range r.Rules {
		if rule.Label == "" {
			return goerr.New("rule label is empty", goerr.V("index", i))
		}
		if len(rule.Keywords) == 0 {
			return goerr.New("rule has no keywords", goerr.V("label", rule.Label))
		}
	}
	return nil
}

// Match returns the labels of every rule with a keyword in fragment, in rule
// order. Keywords ignore case and must start a word, so "dream" matches
// "dreamt". All-caps keywords such as "AI" must be a whole word.
func (r *Rules) Match(fragment string) []string {
	var labels []string
	for _, rule := range r.Rules {
		for _, kw := range rule.Keywords {
			if kw != "" && keywordPattern(kw).MatchString(fragment) {
				labels = append(labels, rule.Label)
				break
			}
		}
	}
	return labels
}

func keywordPattern(kw string) *regexp.Regexp {
	expr := `(?i)\b` + regexp.QuoteMeta(kw)
	if isAcronym(kw) {
		expr += `\b`
	}
	return regexp.MustCompile(expr)
}

func isAcronym(kw string) bool {
	return kw == strings.ToUpper(kw) && kw != strings.ToLower(kw)
}
