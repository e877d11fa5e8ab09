package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// UnifiedDiff returns a line diff of a and b based on their longest common
// subsequence, or "" when they are equal.
func UnifiedDiff(a, b string) string {
	if a == b {
		return ""
	}
	al := strings.Split(a, "\n")
	bl := strings.Split(b, "\n")

	// lcs[i][j] is the LCS length of al[i:] and bl[j:].
	lcs := make([][]int, len(al)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(bl)+1)
	}
	for i := len(al) - 1; i >= 0; i-- {
		for j := len(bl) - 1; j >= 0; j-- {
			if al[i] == bl[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	var buf strings.Builder
	buf.WriteString("--- a\n+++ b\n")
	i, j := 0, 0
	for i < len(al) || j < len(bl) {
		switch {
		case i < len(al) && j < len(bl) && al[i] == bl[j]:
			fmt.Fprintf(&buf, " %s\n", al[i])
			i++
			j++
		case i < len(al) && (j == len(bl) || lcs[i+1][j] >= lcs[i][j+1]):
			fmt.Fprintf(&buf, "-%s\n", al[i])
			i++
		default:
			fmt.Fprintf(&buf, "+%s\n", bl[j])
			j++
		}
	}
	return buf.String()
}

// Diff returns unified diff between two versions of a prompt name, or empty string if not found.
// Version 0 selects the latest.
func (s *Store) Diff(name string, v1, v2 int) string {
	p1, ok1 := s.Get(name, v1)
	p2, ok2 := s.Get(name, v2)
	if !ok1 || !ok2 {
		return ""
	}
	return UnifiedDiff(p1.Body, p2.Body)
}

// LoadDir saves every <name>.tmpl file in dir as a new version of name, in
// file name order. It stops at the first file that fails lint.
func (s *Store) LoadDir(dir string) ([]Prompt, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.tmpl"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	var out []Prompt
	for _, path := range paths {
		b, err := os.ReadFile(path)
		if err != nil {
			return out, err
		}
		name := strings.TrimSuffix(filepath.Base(path), ".tmpl")
		p, issues, err := s.Save(Prompt{
			Name: name,
			Body: strings.TrimRight(string(b), "\n"),
			Meta: map[string]string{"source": path},
		})
		if err != nil {
			return out, fmt.Errorf("%s: %w %v", path, err, issues)
		}
		out = append(out, p)
	}
	return out, nil
}
