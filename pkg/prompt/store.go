// Package prompt holds the versioned request templates sent to the analysis
// backend and renders them with text/template.
package prompt

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Built-in prompt names.
const (
	NameSystem        = "system"
	NameGroupAnalysis = "group_analysis"
	NameParameters    = "parameter_descriptions"
	NameCategorize    = "categorize"
	NameToolDesc      = "tool_description"
	NameToolGrouping  = "tool_grouping"
)

//go:embed templates/*.tmpl
var builtin embed.FS

// Prompt represents a versioned prompt artifact.
type Prompt struct {
	Name    string
	Version int
	Body    string
	Meta    map[string]string
}

// Issue describes a lint finding.
type Issue struct {
	Rule    string
	Message string
	Offset  int
}

// funcs is the sprig text function set plus the helpers the built-in
// templates rely on. join takes the list first, unlike sprig's.
var funcs = func() template.FuncMap {
	fm := sprig.TxtFuncMap()
	fm["join"] = join
	fm["truncate"] = func(s string, n int) string {
		r := []rune(s)
		if len(r) <= n {
			return s
		}
		return string(r[:n])
	}
	return fm
}()

// join accepts []string or a decoded JSON array.
func join(v any, sep string) string {
	switch xs := v.(type) {
	case []string:
		return strings.Join(xs, sep)
	case []any:
		parts := make([]string, len(xs))
		for i, x := range xs {
			parts[i] = fmt.Sprint(x)
		}
		return strings.Join(parts, sep)
	}
	return fmt.Sprint(v)
}

// Lint runs basic checks on prompts.
func Lint(p Prompt) []Issue {
	var issues []Issue
	if p.Name == "" {
		issues = append(issues, Issue{Rule: "name.required", Message: "name is required"})
	}
	if len(p.Body) == 0 {
		issues = append(issues, Issue{Rule: "body.required", Message: "body is empty"})
	}
	// simple safety check: discourage hardcoded secrets-like patterns
	if i := secretOffset(p.Body); i >= 0 {
		issues = append(issues, Issue{Rule: "security.secrets", Message: "body appears to contain secrets-like content", Offset: i})
	}
	if _, err := parse(p); err != nil {
		issues = append(issues, Issue{Rule: "template.syntax", Message: err.Error()})
	}
	return issues
}

var secretPatterns = []string{"aws_secret_access_key", "begin private key", "sk-"}

func secretOffset(s string) int {
	ls := strings.ToLower(s)
	for _, n := range secretPatterns {
		if i := strings.Index(ls, n); i >= 0 {
			return i
		}
	}
	return -1
}

func parse(p Prompt) (*template.Template, error) {
	return template.New(p.Name).Funcs(funcs).Option("missingkey=error").Parse(p.Body)
}

// Render executes p's body with vars.
func Render(p Prompt, vars any) (string, error) {
	t, err := parse(p)
	if err != nil {
		return "", fmt.Errorf("prompt %s v%d: %w", p.Name, p.Version, err)
	}
	var b strings.Builder
	if err := t.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("prompt %s v%d: %w", p.Name, p.Version, err)
	}
	return b.String(), nil
}

// Store is an in-memory versioned prompt store.
type Store struct {
	mu   sync.RWMutex
	data map[string][]Prompt // name -> versions (ascending)
}

func NewStore() *Store { return &Store{data: make(map[string][]Prompt)} }

// Defaults returns a store seeded with version 1 of every built-in prompt.
func Defaults() *Store {
	s := NewStore()
	entries, err := fs.ReadDir(builtin, "templates")
	if err != nil {
		panic(err)
	}
	for _, e := range entries {
		b, err := fs.ReadFile(builtin, "templates/"+e.Name())
		if err != nil {
			panic(err)
		}
		name := strings.TrimSuffix(e.Name(), ".tmpl")
		body := strings.TrimRight(string(b), "\n")
		if _, issues, err := s.Save(Prompt{Name: name, Body: body, Meta: map[string]string{"source": "builtin"}}); err != nil {
			panic(fmt.Sprintf("builtin prompt %s: %v %v", name, err, issues))
		}
	}
	return s
}

var ErrLintFailed = errors.New("prompt failed lint checks")

// ErrNotFound is returned by Render when the prompt or version does not exist.
var ErrNotFound = errors.New("prompt not found")

// Save adds a new version. If name exists, version increments by 1; otherwise starts at 1.
// Lint failures return ErrLintFailed with issues via out param.
func (s *Store) Save(p Prompt) (Prompt, []Issue, error) {
	issues := Lint(p)
	if len(issues) > 0 {
		return Prompt{}, issues, ErrLintFailed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	versions := s.data[p.Name]
	next := 1
	if len(versions) > 0 {
		next = versions[len(versions)-1].Version + 1
	}
	np := Prompt{Name: p.Name, Version: next, Body: p.Body, Meta: p.Meta}
	s.data[p.Name] = append(versions, np)
	return np, nil, nil
}

// Get retrieves specific version; if version==0 returns latest.
func (s *Store) Get(name string, version int) (Prompt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.data[name]
	if len(versions) == 0 {
		return Prompt{}, false
	}
	if version <= 0 {
		return versions[len(versions)-1], true
	}
	// versions are ascending; binary search by Version
	i := sort.Search(len(versions), func(i int) bool { return versions[i].Version >= version })
	if i < len(versions) && versions[i].Version == version {
		return versions[i], true
	}
	return Prompt{}, false
}

// List returns all versions for a name in ascending order.
func (s *Store) List(name string) []Prompt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]Prompt(nil), s.data[name]...)
	return out
}

// Names returns the stored prompt names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for n := range s.data {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Render renders the latest version of name.
func (s *Store) Render(name string, vars any) (string, error) {
	p, ok := s.Get(name, 0)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return Render(p, vars)
}
