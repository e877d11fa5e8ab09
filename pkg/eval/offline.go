// Package eval checks prompts and conversion results offline, without a
// backend: prompt fixtures render stored templates and assert on the text,
// and Compare reports how two analysis results differ.
package eval

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/wilhg/toolspec/pkg/prompt"
)

// Fixture represents one prompt evaluation case. Prompt names a template in
// the store; Template, when set, is rendered instead.
type Fixture struct {
	Name     string         `json:"name"`
	Prompt   string         `json:"prompt,omitempty"`
	Template string         `json:"template,omitempty"`
	Vars     map[string]any `json:"vars"`
	Expect   Expectation    `json:"expect"`
}

type Expectation struct {
	Contains    []string `json:"contains,omitempty"`
	NotContains []string `json:"not_contains,omitempty"`
	// MaxTokens bounds the rendered size as counted by the estimator.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// Summary is the outcome of a fixture run.
type Summary struct {
	Score   float64  `json:"score"`
	Total   int      `json:"total"`
	Passed  int      `json:"passed"`
	Details []string `json:"details,omitempty"`
}

// EvaluatePromptFixtures loads fixtures from an fs.FS directory (json files),
// renders each against prompts and evaluates its expectations. Score is in [0,1].
func EvaluatePromptFixtures(fsys fs.FS, dir string, prompts *prompt.Store, est prompt.TokenEstimator) (Summary, error) {
	fixtures, err := loadFixtures(fsys, dir)
	if err != nil {
		return Summary{}, err
	}
	if est == nil {
		est = prompt.RuneEstimator
	}
	sum := Summary{Total: len(fixtures)}
	if sum.Total == 0 {
		sum.Score = 1
		return sum, nil
	}
	for _, fx := range fixtures {
		out, rerr := render(prompts, fx)
		if rerr != nil {
			sum.Details = append(sum.Details, fx.Name+": render error: "+rerr.Error())
			continue
		}
		ok := true
		for _, s := range fx.Expect.Contains {
			if !strings.Contains(out, s) {
				ok = false
				sum.Details = append(sum.Details, fx.Name+": missing contains: "+s)
			}
		}
		for _, s := range fx.Expect.NotContains {
			if strings.Contains(out, s) {
				ok = false
				sum.Details = append(sum.Details, fx.Name+": unexpected contains: "+s)
			}
		}
		if fx.Expect.MaxTokens > 0 {
			if n := est(out); n > fx.Expect.MaxTokens {
				ok = false
				sum.Details = append(sum.Details, fmt.Sprintf("%s: %d tokens exceeds %d", fx.Name, n, fx.Expect.MaxTokens))
			}
		}
		if ok {
			sum.Passed++
		}
	}
	sum.Score = float64(sum.Passed) / float64(sum.Total)
	return sum, nil
}

func render(prompts *prompt.Store, fx Fixture) (string, error) {
	if fx.Template != "" {
		return prompt.Render(prompt.Prompt{Name: fx.Name, Body: fx.Template}, fx.Vars)
	}
	if prompts == nil {
		return "", fmt.Errorf("no prompt store for %q", fx.Prompt)
	}
	return prompts.Render(fx.Prompt, fx.Vars)
}

func loadFixtures(fsys fs.FS, dir string) ([]Fixture, error) {
	var out []Fixture
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		b, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		var fx Fixture
		if err := json.Unmarshal(b, &fx); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		if fx.Name == "" {
			fx.Name = strings.TrimSuffix(e.Name(), ".json")
		}
		out = append(out, fx)
	}
	return out, nil
}
