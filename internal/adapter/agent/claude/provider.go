// Package claude adapts the Claude Code CLI as a task provider. The CLI
// runs in non-interactive print mode with the prompt on stdin.
package claude

import (
	"context"
	"time"

	"github.com/bkyoung/review-agent/internal/adapter/agent/proc"
	"github.com/bkyoung/review-agent/internal/domain"
	"github.com/bkyoung/review-agent/internal/usecase/task"
)

const (
	defaultBinary       = "claude"
	defaultProbeTimeout = 5 * time.Second
)

// Options configures the adapter.
type Options struct {
	// Binary is the executable name or path. Empty means "claude".
	Binary string

	// Model overrides the CLI's default model when set.
	Model string

	// ProbeTimeout bounds the availability probe.
	ProbeTimeout time.Duration
}

// Provider invokes the Claude CLI.
type Provider struct {
	binary       string
	model        string
	probeTimeout time.Duration
}

// New creates a Claude provider with the given options.
func New(opts Options) *Provider {
	p := &Provider{
		binary:       opts.Binary,
		model:        opts.Model,
		probeTimeout: opts.ProbeTimeout,
	}
	if p.binary == "" {
		p.binary = defaultBinary
	}
	if p.probeTimeout <= 0 {
		p.probeTimeout = defaultProbeTimeout
	}
	return p
}

// Name identifies the provider.
func (p *Provider) Name() domain.ProviderIdentity {
	return domain.ProviderClaude
}

// Command reports the execution argv. Print mode with streamed JSON
// output keeps the run non-interactive and line-parseable; the prompt
// itself never appears here.
func (p *Provider) Command() []string {
	args := []string{p.binary, "-p", "--output-format", "stream-json", "--verbose"}
	if p.model != "" {
		args = append(args, "--model", p.model)
	}
	return args
}

// Available reports whether the CLI answers a bounded version probe.
// Any probe failure counts as unavailable.
func (p *Provider) Available(ctx context.Context) bool {
	_, err := proc.Probe(ctx, p.binary, []string{"--version"}, p.probeTimeout)
	return err == nil
}

// Execute spawns the CLI with the prompt on stdin and returns the
// running process. Supervision, including termination, is the caller's
// job; the request context only covers the spawn itself.
func (p *Provider) Execute(_ context.Context, req task.ExecutionRequest) (task.ProcessHandle, error) {
	argv := p.Command()
	handle, err := proc.Start(proc.Command{
		Binary: argv[0],
		Args:   argv[1:],
		Dir:    req.WorkDir,
		Stdin:  req.Prompt,
		Stdout: req.Stdout,
		Stderr: req.Stderr,
	})
	if err != nil {
		return nil, &domain.SpawnError{Tool: p.binary, Err: err}
	}
	return handle, nil
}

var _ task.Provider = (*Provider)(nil)
