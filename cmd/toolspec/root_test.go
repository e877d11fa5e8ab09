package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilhg/toolspec/pkg/convert"
	"github.com/wilhg/toolspec/pkg/errmodel"
)

// execute runs one CLI invocation with env as the only environment.
func execute(t *testing.T, env map[string]string, args ...string) (string, error) {
	t.Helper()
	a := &app{lookupEnv: func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}}
	root := newRootCmd(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func manifestArgs(args ...string) []string {
	return append([]string{"--source", "manifest", "--manifest", "testdata/sdk.yaml", "--provider", "none"}, args...)
}

func TestConvert_FallbackReport(t *testing.T) {
	out, err := execute(t, nil, manifestArgs("convert", "sdk")...)
	require.NoError(t, err)

	rep, err := convert.DecodeReport([]byte(out))
	require.NoError(t, err)
	var names []string
	for _, tl := range rep.Result.Tools {
		names = append(names, tl.Name)
	}
	assert.Equal(t, []string{"get", "put", "reset"}, names)
	assert.Equal(t, "Execute get operation", rep.Result.Tools[0].Description)
	assert.Equal(t, convert.Counts{Classes: 2, Methods: 3, Functions: 1, Tools: 3, FallbackGroups: 2}, rep.Counts)
	assert.Equal(t, "2.1", rep.Module.Version)
	require.Len(t, rep.ToolSchemas, 3)
	assert.Equal(t, "get", rep.ToolSchemas[0].Name)
}

func TestAnalyze_Fallback(t *testing.T) {
	out, err := execute(t, nil, manifestArgs("--filter", "^get$", "analyze", "sdk")...)
	require.NoError(t, err)

	var res convert.Analysis
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Groups, 1)
	g := res.Groups[0]
	assert.Equal(t, "Client", g.Group)
	assert.EqualValues(t, "fallback", g.CategoriesTier)
	assert.EqualValues(t, "fallback", g.GroupingTier)
	require.Len(t, g.Methods, 1)
	get := g.Methods[0]
	assert.Equal(t, "Execute get operation", get.Description)
	require.Len(t, get.Parameters, 2)
	assert.True(t, get.Parameters[0].Required)
	assert.False(t, get.Parameters[1].Required)
}

func TestConvert_OutputFileAndFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	out, err := execute(t, nil, manifestArgs("--filter", "^p", "--include-private", "convert", "sdk", "-o", path)...)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rep, err := convert.DecodeReport(data)
	require.NoError(t, err)
	require.Len(t, rep.Result.Tools, 1)
	assert.Equal(t, "put", rep.Result.Tools[0].Name)
}

func TestDiscover_Formats(t *testing.T) {
	out, err := execute(t, nil, manifestArgs("discover", "sdk", "--format", "text")...)
	require.NoError(t, err)
	assert.Contains(t, out, "module sdk 2.1\n")
	assert.Contains(t, out, "class Client(Base)\n")
	assert.Contains(t, out, "  get(key: str, timeout: float = 30) -> Item\n")
	assert.Contains(t, out, "func connect(url: str) -> Client\n")
	assert.NotContains(t, out, "_sign")

	out, err = execute(t, nil, manifestArgs("--include-private", "discover", "sdk")...)
	require.NoError(t, err)
	var disc struct {
		Classes []struct {
			Methods []json.RawMessage `json:"methods"`
		} `json:"classes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &disc))
	require.Len(t, disc.Classes, 2)
	assert.Len(t, disc.Classes[0].Methods, 3)
}

func TestUnknownModuleIsResolutionError(t *testing.T) {
	_, err := execute(t, nil, manifestArgs("convert", "missing")...)
	require.Error(t, err)
	assert.True(t, errmodel.IsResolution(err))
	assert.Equal(t, ExitCodeResolution, getExitCode(err))
}

func TestConfigLayering(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "toolspec.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("source: manifest\nmanifest: testdata/sdk.yaml\nprovider: openai\ninclude_private: true\n"), 0o600))
	env := map[string]string{"TOOLSPEC_CONFIG": cfgPath, "TOOLSPEC_PROVIDER": "none"}

	// file: include_private; env: provider none; flag wins over both.
	out, err := execute(t, env, "convert", "sdk")
	require.NoError(t, err)
	rep, err := convert.DecodeReport([]byte(out))
	require.NoError(t, err)
	assert.Len(t, rep.Result.Tools, 4)

	out, err = execute(t, env, "--include-private=false", "convert", "sdk")
	require.NoError(t, err)
	rep, err = convert.DecodeReport([]byte(out))
	require.NoError(t, err)
	assert.Len(t, rep.Result.Tools, 3)
}

func TestInvalidConfigurationExitCode(t *testing.T) {
	_, err := execute(t, nil, "--source", "manifest", "discover", "sdk")
	require.Error(t, err)
	assert.Equal(t, ExitCodeConfig, getExitCode(err))

	_, err = execute(t, map[string]string{"TOOLSPEC_MAX_RETRIES": "many"}, manifestArgs("discover", "sdk")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOOLSPEC_MAX_RETRIES")
	assert.Equal(t, ExitCodeConfig, getExitCode(err))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCodeError, getExitCode(errors.New("boom")))
	assert.Equal(t, ExitCodeError, getExitCode(errmodel.Transport("x", "y", nil, nil)))
	assert.Equal(t, ExitCodeResolution, getExitCode(errmodel.Resolution("not_found", "y", nil, nil)))
	assert.Equal(t, ExitCodeConfig, getExitCode(errmodel.Validation("filter", "y", nil)))
}

func TestRuns_ListShowDiff(t *testing.T) {
	dsn := "sqlite:file:" + filepath.Join(t.TempDir(), "runs.sqlite") + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	env := map[string]string{"TOOLSPEC_STORE": dsn}

	out, err := execute(t, env, manifestArgs("convert", "sdk")...)
	require.NoError(t, err)
	first, err := convert.DecodeReport([]byte(out))
	require.NoError(t, err)
	out, err = execute(t, env, manifestArgs("--include-private", "convert", "sdk")...)
	require.NoError(t, err)
	second, err := convert.DecodeReport([]byte(out))
	require.NoError(t, err)

	out, err = execute(t, env, "runs", "list", "--module", "sdk")
	require.NoError(t, err)
	newer := strings.Index(out, second.RunID.String())
	older := strings.Index(out, first.RunID.String())
	require.True(t, newer > 0 && older > 0, out)
	assert.Less(t, newer, older)
	assert.Contains(t, out, "MODULE")
	assert.Contains(t, out, "manifest")

	out, err = execute(t, env, "runs", "show", first.RunID.String())
	require.NoError(t, err)
	shown, err := convert.DecodeReport([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, first.RunID, shown.RunID)

	out, err = execute(t, env, "runs", "diff", first.RunID.String(), second.RunID.String())
	require.NoError(t, err)
	var delta struct {
		AddedTools []string `json:"added_tools"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &delta))
	assert.Equal(t, []string{"_sign"}, delta.AddedTools)
}

func TestRuns_EmptyStore(t *testing.T) {
	dsn := "sqlite:file:" + filepath.Join(t.TempDir(), "runs.sqlite")
	out, err := execute(t, map[string]string{"TOOLSPEC_STORE": dsn}, "runs", "list")
	require.NoError(t, err)
	assert.Equal(t, "No runs recorded\n", out)

	_, err = execute(t, map[string]string{"TOOLSPEC_STORE": dsn}, "runs", "show", "nope")
	require.Error(t, err)
}

func TestRuns_RequireStore(t *testing.T) {
	_, err := execute(t, nil, "runs", "list")
	require.Error(t, err)
	assert.Equal(t, ExitCodeConfig, getExitCode(err))
}

func TestPrompts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "system.tmpl"), []byte("You are terse.\n"), 0o600))
	env := map[string]string{"TOOLSPEC_PROMPTS_DIR": dir}

	out, err := execute(t, env, "prompts", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "system")
	assert.Contains(t, out, "v1")
	assert.Contains(t, out, "v2")
	assert.Contains(t, out, filepath.Join(dir, "system.tmpl"))

	out, err = execute(t, env, "prompts", "show", "system")
	require.NoError(t, err)
	assert.Equal(t, "You are terse.\n", out)

	out, err = execute(t, env, "prompts", "diff", "system", "1", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "+You are terse.")

	_, err = execute(t, env, "prompts", "show", "system", "--version", "9")
	assert.Equal(t, ExitCodeConfig, getExitCode(err))
}

func TestPromptsEval(t *testing.T) {
	out, err := execute(t, nil, "prompts", "eval", "testdata/fixtures")
	require.Error(t, err)
	assert.Equal(t, ExitCodeConfig, getExitCode(err))
	var sum struct {
		Total   int      `json:"total"`
		Passed  int      `json:"passed"`
		Details []string `json:"details"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Passed)
	require.Len(t, sum.Details, 1)
	assert.Contains(t, sum.Details[0], "broken: missing contains: Admin")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, nil, "version")
	require.NoError(t, err)
	assert.Equal(t, "toolspec dev (commit=none, date=unknown)\n", out)

	out, err = execute(t, nil, "--version")
	require.NoError(t, err)
	assert.Equal(t, "toolspec version dev\n", out)
}
