package category_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/vestige/pkg/category"
)

func TestDefaultMatch(t *testing.T) {
	rules := category.Default()

	testCases := []struct {
		fragment string
		expected []string
	}{
		{"The robot dreamt of wheels", []string{"Robots", "Dreams"}},
		{"Asked Copilot about my LLM", []string{"AI"}},
		{"Riding the MOWER across the lawn", []string{"Mundane Joys"}},
		{"Nothing to see here", nil},
		{"Walking in the rain", nil},
		{"She said hello again", nil},
		{"I waited at the train", nil},
		{"Aim for the stars", nil},
		{"Daydreaming at noon", nil},
		{"An AI wrote this", []string{"AI"}},
		{"ai-generated robots", []string{"Robots", "AI"}},
	}

	for _, tc := range testCases {
		t.Run(tc.fragment, func(t *testing.T) {
			gt.Equal(t, rules.Match(tc.fragment), tc.expected)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	gt.NoError(t, os.WriteFile(path, []byte(`rules:
  - label: Garden
    keywords: [tomato, basil]
  - label: Music
    keywords: [piano]
`), 0644))

	rules, err := category.Load(path)
	gt.NoError(t, err)
	gt.A(t, rules.Rules).Length(2)
	gt.Equal(t, rules.Match("basil and piano"), []string{"Garden", "Music"})
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()

	noKeywords := filepath.Join(dir, "no-keywords.yaml")
	gt.NoError(t, os.WriteFile(noKeywords, []byte("rules:\n  - label: Empty\n"), 0644))
	_, err := category.Load(noKeywords)
	gt.Error(t, err)

	broken := filepath.Join(dir, "broken.yaml")
	gt.NoError(t, os.WriteFile(broken, []byte("rules: [\n"), 0644))
	_, err = category.Load(broken)
	gt.Error(t, err)

	_, err = category.Load(filepath.Join(dir, "missing.yaml"))
	gt.Error(t, err)
}
