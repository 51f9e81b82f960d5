package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-declare/completion"
	"github.com/goliatone/go-declare/completion/completiontest"
	"github.com/goliatone/go-declare/internal/config"
)

const pipelineYAML = `
name: story
context:
  genre: heroic fantasy
steps:
  - name: hero
    inputs: [genre]
    schema:
      description: The hero of the story
      type: object
      fields:
        name: The hero's name
  - name: quest
    inputs: [hero]
    schema: The hero's quest in one sentence
`

type harness struct {
	dir      string
	pipeline string
	script   *completiontest.Script
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "story.yaml")
	require.NoError(t, os.WriteFile(path, []byte(pipelineYAML), 0o600))
	script := &completiontest.Script{Respond: func(messages []completion.Message) (string, error) {
		if strings.Contains(messages[1].Content, "The hero of the story") {
			return `{"name":"Arin"}`, nil
		}
		return `"Arin seeks the lost well."`, nil
	}}
	return &harness{dir: dir, pipeline: path, script: script}
}

func (h *harness) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := newApp(&out)
	a.environment = map[string]string{}
	a.newService = func(context.Context, config.CompletionConfig) (completion.Service, error) {
		return h.script, nil
	}
	cmd := newRootCmd(a)
	cmd.SetArgs(append(args,
		"--config", filepath.Join(h.dir, "missing-ok.yaml"),
		"--state-dir", filepath.Join(h.dir, "state"),
		"--log-dir", filepath.Join(h.dir, "logs"),
	))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunSavesAndReuses(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "missing-ok.yaml"), nil, 0o600))

	out, err := h.execute(t, "run", h.pipeline)
	require.NoError(t, err)
	require.Contains(t, out, "== hero ==\n{\n  \"name\": \"Arin\"\n}")
	require.Contains(t, out, "== quest ==\n\"Arin seeks the lost well.\"")
	require.Equal(t, 2, h.script.Calls())

	logs, err := os.ReadDir(filepath.Join(h.dir, "logs"))
	require.NoError(t, err)
	require.Len(t, logs, 1)

	_, err = h.execute(t, "run", h.pipeline)
	require.NoError(t, err)
	require.Equal(t, 2, h.script.Calls(), "the second run is served from the store")

	shown, err := h.execute(t, "state", "show", "story")
	require.NoError(t, err)
	require.Contains(t, shown, `"resourceData"`)
	require.Less(t, strings.Index(shown, "json-request:hero"), strings.Index(shown, "json-request:quest"))

	_, err = h.execute(t, "state", "rm", "story", "json-request:quest")
	require.NoError(t, err)
	_, err = h.execute(t, "run", h.pipeline)
	require.NoError(t, err)
	require.Equal(t, 3, h.script.Calls(), "only the removed step is rebuilt")
}

func TestStateCommandsReportMissing(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "missing-ok.yaml"), nil, 0o600))

	_, err := h.execute(t, "state", "show", "nothing")
	require.ErrorContains(t, err, `no stored state named "nothing"`)

	_, err = h.execute(t, "state", "rm", "nothing", "json-request:hero")
	require.ErrorContains(t, err, "has no entry")
}

func TestExplicitConfigMustExist(t *testing.T) {
	h := newHarness(t)
	_, err := h.execute(t, "config")
	require.Error(t, err)
}

func TestSchemaCommand(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "missing-ok.yaml"), nil, 0o600))

	out, err := h.execute(t, "schema", h.pipeline, "hero")
	require.NoError(t, err)
	require.Equal(t, "The hero of the story\n\nIt consists of the following:\nname:\n  The hero's name\n\n{\n  \"name\": \"...\"\n}\n", out)

	out, err = h.execute(t, "schema", h.pipeline, "hero", "--json-schema")
	require.NoError(t, err)
	require.Contains(t, out, `"title": "hero"`)

	_, err = h.execute(t, "schema", h.pipeline, "villain")
	require.ErrorContains(t, err, `no step "villain"`)
	require.Equal(t, 0, h.script.Calls())
}

func TestConfigCommandShowsProvenance(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "missing-ok.yaml"), []byte("completion:\n  api_key: sk-test-abcd\n"), 0o600))

	out, err := h.execute(t, "config", "--model", "gpt-4o")
	require.NoError(t, err)
	require.Contains(t, out, "completion.model = gpt-4o  (flags)")
	require.Contains(t, out, "completion.api_key = [REDACTED]abcd  (file)")
	require.Contains(t, out, "state.backend = file  (defaults)")
	require.Contains(t, out, "state.dsn =   (unset)")
	require.NotContains(t, out, "sk-test")
}
