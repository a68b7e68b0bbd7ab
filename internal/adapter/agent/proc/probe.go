package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// ProbeOptions control the environment of an availability probe.
type ProbeOptions struct {
	Stdin string
	Env   []string // replaces the inherited environment when set
	Dir   string
}

// Probe runs a short version-check invocation of an external tool and returns
// its combined output. A non-nil error means the tool should be treated as
// unavailable: lookup failure, spawn failure, non-zero exit, and timeout all
// count the same.
func Probe(ctx context.Context, binary string, args []string, timeout time.Duration) (string, error) {
	return ProbeWithOptions(ctx, binary, args, timeout, ProbeOptions{})
}

// ProbeWithOptions is Probe with an explicit stdin, environment, and directory.
func ProbeWithOptions(ctx context.Context, binary string, args []string, timeout time.Duration, opts ProbeOptions) (string, error) {
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("probe lookup %s: %w", binary, err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, resolved, args...)
	cmd.Stdin = strings.NewReader(opts.Stdin)
	if len(opts.Env) > 0 {
		cmd.Env = opts.Env
	} else {
		cmd.Env = os.Environ()
	}
	if strings.TrimSpace(opts.Dir) != "" {
		cmd.Dir = opts.Dir
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("probe start %s: %w", binary, err)
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	// Probes that outlive their deadline get one SIGTERM, a short pause, then
	// SIGKILL. The escalation applies to probes only; supervised task
	// processes receive a single termination signal.
	stop := func() {
		_ = signalGroup(cmd, syscall.SIGTERM)
		select {
		case <-waitCh:
			return
		case <-time.After(250 * time.Millisecond):
		}
		_ = signalGroup(cmd, syscall.SIGKILL)
		select {
		case <-waitCh:
		case <-time.After(2 * time.Second):
		}
	}

	select {
	case err := <-waitCh:
		output := strings.TrimSpace(out.String())
		if err != nil {
			return output, fmt.Errorf("probe %s: %w", binary, err)
		}
		return output, nil
	case <-probeCtx.Done():
		stop()
		output := strings.TrimSpace(out.String())
		if errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
			return output, fmt.Errorf("probe %s timed out after %s", binary, timeout)
		}
		return output, fmt.Errorf("probe %s canceled: %w", binary, probeCtx.Err())
	}
}
