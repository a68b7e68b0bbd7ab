package proc_test

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkyoung/review-agent/internal/adapter/agent/proc"
)

func waitDone(t *testing.T, h *proc.Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit within 5s")
	}
}

func TestStartCapturesOutput(t *testing.T) {
	var stdout bytes.Buffer
	handle, err := proc.Start(proc.Command{
		Binary: "sh",
		Args:   []string{"-c", "echo one; echo two"},
		Stdout: &stdout,
		Stderr: io.Discard,
	})
	require.NoError(t, err)

	waitDone(t, handle)

	require.NoError(t, handle.ExitErr())
	assert.False(t, handle.Alive())
	assert.Equal(t, []string{"one", "two"}, strings.Split(strings.TrimSpace(stdout.String()), "\n"))
}

func TestStartMissingBinary(t *testing.T) {
	_, err := proc.Start(proc.Command{Binary: "review-agent-no-such-binary"})
	require.Error(t, err)
}

func TestStartEmptyBinary(t *testing.T) {
	_, err := proc.Start(proc.Command{})
	require.Error(t, err)
}

func TestStartRunsInDir(t *testing.T) {
	dir := t.TempDir()

	var stdout bytes.Buffer
	handle, err := proc.Start(proc.Command{
		Binary: "sh",
		Args:   []string{"-c", "pwd"},
		Dir:    dir,
		Stdout: &stdout,
		Stderr: io.Discard,
	})
	require.NoError(t, err)

	waitDone(t, handle)
	assert.Contains(t, stdout.String(), dir)
}

func TestStartDeliversStdin(t *testing.T) {
	var stdout bytes.Buffer
	handle, err := proc.Start(proc.Command{
		Binary: "sh",
		Args:   []string{"-c", "cat"},
		Stdin:  "prompt text\n",
		Stdout: &stdout,
		Stderr: io.Discard,
	})
	require.NoError(t, err)

	waitDone(t, handle)
	assert.Equal(t, "prompt text\n", stdout.String())
}

func TestSignalTerminatesProcess(t *testing.T) {
	handle, err := proc.Start(proc.Command{
		Binary: "sleep",
		Args:   []string{"100"},
		Stdout: io.Discard,
		Stderr: io.Discard,
	})
	require.NoError(t, err)
	assert.Greater(t, handle.PID(), 0)
	assert.True(t, handle.Alive())

	require.NoError(t, handle.Signal(syscall.SIGTERM))

	waitDone(t, handle)
	assert.False(t, handle.Alive())
	require.Error(t, handle.ExitErr())
}

func TestExitErrReportsNonZeroExit(t *testing.T) {
	handle, err := proc.Start(proc.Command{
		Binary: "sh",
		Args:   []string{"-c", "exit 3"},
		Stdout: io.Discard,
		Stderr: io.Discard,
	})
	require.NoError(t, err)

	waitDone(t, handle)

	var exitErr *exec.ExitError
	require.ErrorAs(t, handle.ExitErr(), &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode())
}

func TestProbeReportsOutput(t *testing.T) {
	out, err := proc.Probe(context.Background(), "sh", []string{"-c", "echo tool v1.2.3"}, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "tool v1.2.3", out)
}

func TestProbeMissingBinary(t *testing.T) {
	_, err := proc.Probe(context.Background(), "review-agent-no-such-binary", nil, time.Second)
	require.Error(t, err)
}

func TestProbeNonZeroExit(t *testing.T) {
	_, err := proc.Probe(context.Background(), "sh", []string{"-c", "exit 1"}, 5*time.Second)
	require.Error(t, err)
}

func TestProbeTimeout(t *testing.T) {
	start := time.Now()
	_, err := proc.Probe(context.Background(), "sleep", []string{"30"}, 200*time.Millisecond)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "probe should give up promptly")
}

func TestProbeCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := proc.Probe(ctx, "sleep", []string{"30"}, 5*time.Second)
	require.Error(t, err)
}

func TestProbeUsesStdinAndDir(t *testing.T) {
	dir := t.TempDir()
	out, err := proc.ProbeWithOptions(context.Background(), "sh", []string{"-c", "cat; pwd"}, 5*time.Second, proc.ProbeOptions{
		Stdin: "hello ",
		Dir:   dir,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, dir)
}
