// Package proc provides the subprocess plumbing shared by the provider
// adapters: argv command specs, a process handle with exit notification and
// kill support, and bounded availability probes.
package proc

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
)

// Command describes one external tool invocation. Args carry only fixed or
// validated values; free-form text such as the prompt travels on Stdin, never
// in the argument vector.
type Command struct {
	Binary string
	Args   []string
	Dir    string
	Env    []string // appended to os.Environ()
	Stdin  string
	Stdout io.Writer
	Stderr io.Writer
}

// Start launches the command and returns a handle for supervision. Spawn
// failures (missing binary, permission denied) surface synchronously; the
// exit status of a started process is observed through the handle.
func Start(spec Command) (*Handle, error) {
	if strings.TrimSpace(spec.Binary) == "" {
		return nil, errors.New("binary is required")
	}

	cmd := exec.Command(spec.Binary, spec.Args...)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	if spec.Stdin != "" {
		cmd.Stdin = strings.NewReader(spec.Stdin)
	}
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	// Own process group so signals reach the tool's own children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	h := &Handle{cmd: cmd, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		h.mu.Lock()
		h.exitErr = err
		h.mu.Unlock()
		close(h.done)
	}()
	return h, nil
}

// Handle represents one externally running OS process. It is owned by exactly
// one supervisor; the zero value is not usable.
type Handle struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu      sync.Mutex
	exitErr error
}

// PID returns the operating system process ID.
func (h *Handle) PID() int {
	return h.cmd.Process.Pid
}

// Done returns a channel closed once the process has exited and its output
// has been fully written to the configured sinks.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// ExitErr reports how the process exited: nil for exit code 0, an
// *exec.ExitError otherwise. Only valid after Done is closed.
func (h *Handle) ExitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitErr
}

// Alive reports whether the process has not yet exited.
func (h *Handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Signal delivers sig to the process group, falling back to the process
// itself when the group cannot be resolved. Errors from an already-exited
// process are returned as-is; callers that are cleaning up ignore them.
func (h *Handle) Signal(sig os.Signal) error {
	return signalGroup(h.cmd, sig)
}

func signalGroup(cmd *exec.Cmd, sig os.Signal) error {
	if cmd.Process == nil {
		return errors.New("process not started")
	}
	if s, ok := sig.(syscall.Signal); ok {
		if pgid, err := syscall.Getpgid(cmd.Process.Pid); err == nil {
			return syscall.Kill(-pgid, s)
		}
	}
	return cmd.Process.Signal(sig)
}
