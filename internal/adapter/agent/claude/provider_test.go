package claude_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkyoung/review-agent/internal/adapter/agent/claude"
	"github.com/bkyoung/review-agent/internal/domain"
	"github.com/bkyoung/review-agent/internal/usecase/task"
)

func writeStub(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claude-stub")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func waitHandle(t *testing.T, h task.ProcessHandle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit within 5s")
	}
}

func TestCommandShape(t *testing.T) {
	p := claude.New(claude.Options{})
	assert.Equal(t, []string{"claude", "-p", "--output-format", "stream-json", "--verbose"}, p.Command())

	withModel := claude.New(claude.Options{Model: "claude-sonnet-4-5"})
	assert.Equal(t,
		[]string{"claude", "-p", "--output-format", "stream-json", "--verbose", "--model", "claude-sonnet-4-5"},
		withModel.Command())
}

func TestExecuteDeliversPromptOnStdin(t *testing.T) {
	stub := writeStub(t, `#!/bin/sh
cat
`)
	p := claude.New(claude.Options{Binary: stub})

	var stdout bytes.Buffer
	handle, err := p.Execute(context.Background(), task.ExecutionRequest{
		Prompt: "review pull request 42",
		Stdout: &stdout,
		Stderr: io.Discard,
	})
	require.NoError(t, err)

	waitHandle(t, handle)
	require.NoError(t, handle.ExitErr())
	assert.Equal(t, "review pull request 42", stdout.String())
}

func TestExecuteRunsInWorkDir(t *testing.T) {
	stub := writeStub(t, `#!/bin/sh
pwd
`)
	workDir := t.TempDir()
	p := claude.New(claude.Options{Binary: stub})

	var stdout bytes.Buffer
	handle, err := p.Execute(context.Background(), task.ExecutionRequest{
		Prompt:  "review",
		WorkDir: workDir,
		Stdout:  &stdout,
		Stderr:  io.Discard,
	})
	require.NoError(t, err)

	waitHandle(t, handle)
	assert.Contains(t, stdout.String(), workDir)
}

func TestExecuteReportsSpawnError(t *testing.T) {
	p := claude.New(claude.Options{Binary: "/nonexistent/claude-binary"})

	_, err := p.Execute(context.Background(), task.ExecutionRequest{
		Prompt: "review",
		Stdout: io.Discard,
		Stderr: io.Discard,
	})
	require.Error(t, err)

	var spawnErr *domain.SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, "/nonexistent/claude-binary", spawnErr.Tool)
}

func TestAvailableProbesVersion(t *testing.T) {
	stub := writeStub(t, `#!/bin/sh
if [ "$1" = "--version" ]; then
  echo "2.1.0 (Claude Code)"
  exit 0
fi
exit 1
`)
	p := claude.New(claude.Options{Binary: stub})
	assert.True(t, p.Available(context.Background()))

	missing := claude.New(claude.Options{Binary: "/nonexistent/claude-binary"})
	assert.False(t, missing.Available(context.Background()))
}

func TestNameIdentity(t *testing.T) {
	assert.Equal(t, domain.ProviderClaude, claude.New(claude.Options{}).Name())
}
