// Package gemini adapts the Gemini CLI as a task provider. The adapter
// runs a primary model and, when the CLI reports quota exhaustion on
// stderr shortly after launch, transparently retries the same prompt on
// a fallback model. Callers see a single Execute call either way.
package gemini

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/bkyoung/review-agent/internal/adapter/agent/proc"
	"github.com/bkyoung/review-agent/internal/domain"
	"github.com/bkyoung/review-agent/internal/usecase/task"
)

// quotaSignatures are the stderr substrings treated as quota
// exhaustion, matched case-insensitively over the accumulated stream.
// Substring matching is a heuristic; replace it with a structured error
// channel if the CLI ever grows one.
var quotaSignatures = []string{
	"quota exceeded",
	"rate limit",
	"429",
	"resource exhausted",
	"too many requests",
}

const (
	defaultBinary        = "gemini"
	defaultModel         = "gemini-2.5-pro"
	defaultFallbackModel = "gemini-2.5-flash"
	defaultGraceWindow   = 10 * time.Second
	defaultProbeTimeout  = 5 * time.Second
)

// Options configures the adapter.
type Options struct {
	// Binary is the executable name or path. Empty means "gemini".
	Binary string

	// Model is the primary model. Empty picks the adapter default.
	Model string

	// FallbackModel is tried when the primary reports quota exhaustion
	// within the grace window.
	FallbackModel string

	// GraceWindow is how long after spawn stderr is scanned for quota
	// signatures. A signature after the window does not trigger a retry.
	GraceWindow time.Duration

	// ProbeTimeout bounds the availability probe.
	ProbeTimeout time.Duration

	// Logger, when set, records model fallbacks. Optional.
	Logger task.Logger
}

// Provider invokes the Gemini CLI with multi-model fallback.
type Provider struct {
	binary        string
	model         string
	fallbackModel string
	graceWindow   time.Duration
	probeTimeout  time.Duration
	logger        task.Logger
}

// New creates a Gemini provider with the given options.
func New(opts Options) *Provider {
	p := &Provider{
		binary:        opts.Binary,
		model:         opts.Model,
		fallbackModel: opts.FallbackModel,
		graceWindow:   opts.GraceWindow,
		probeTimeout:  opts.ProbeTimeout,
		logger:        opts.Logger,
	}
	if p.binary == "" {
		p.binary = defaultBinary
	}
	if p.model == "" {
		p.model = defaultModel
	}
	if p.fallbackModel == "" {
		p.fallbackModel = defaultFallbackModel
	}
	if p.graceWindow <= 0 {
		p.graceWindow = defaultGraceWindow
	}
	if p.probeTimeout <= 0 {
		p.probeTimeout = defaultProbeTimeout
	}
	return p
}

// Name identifies the provider.
func (p *Provider) Name() domain.ProviderIdentity {
	return domain.ProviderGemini
}

// Command reports the execution argv for the primary model.
func (p *Provider) Command() []string {
	return p.commandFor(p.model)
}

func (p *Provider) commandFor(model string) []string {
	return []string{p.binary, "--yolo", "--model", model}
}

// Available reports whether the CLI answers a bounded version probe.
func (p *Provider) Available(ctx context.Context) bool {
	_, err := proc.Probe(ctx, p.binary, []string{"--version"}, p.probeTimeout)
	return err == nil
}

// Execute spawns the primary model and watches its stderr for quota
// signatures until the grace window closes. On a signature it
// terminates the primary and returns a fresh spawn of the fallback
// model; otherwise it returns the primary. Only when neither model can
// be started does it fail, with domain.ErrAllModelsFailed.
func (p *Provider) Execute(ctx context.Context, req task.ExecutionRequest) (task.ProcessHandle, error) {
	scanner := newQuotaScanner()
	defer scanner.disarm()

	primary, primaryErr := p.spawn(p.model, req, io.MultiWriter(req.Stderr, scanner))
	if primaryErr != nil {
		p.warn(ctx, "primary model failed to spawn", map[string]interface{}{
			"model": p.model,
			"error": primaryErr.Error(),
		})
		secondary, secondaryErr := p.spawn(p.fallbackModel, req, req.Stderr)
		if secondaryErr != nil {
			return nil, fmt.Errorf("gemini models %s (%v) and %s (%v): %w",
				p.model, primaryErr, p.fallbackModel, secondaryErr, domain.ErrAllModelsFailed)
		}
		return secondary, nil
	}

	grace := time.NewTimer(p.graceWindow)
	defer grace.Stop()

	select {
	case <-scanner.quota():
		return p.failover(ctx, req, primary, scanner.match())
	case <-primary.Done():
		// A quota signature printed just before a fast exit still
		// counts as within the window.
		if sig := scanner.match(); sig != "" {
			return p.failover(ctx, req, primary, sig)
		}
		return primary, nil
	case <-grace.C:
		return primary, nil
	case <-ctx.Done():
		_ = primary.Signal(syscall.SIGTERM)
		return nil, fmt.Errorf("gemini grace window interrupted: %w", ctx.Err())
	}
}

// failover terminates the primary process and retries the prompt on the
// fallback model.
func (p *Provider) failover(ctx context.Context, req task.ExecutionRequest, primary *proc.Handle, signature string) (task.ProcessHandle, error) {
	p.warn(ctx, "quota signature detected, switching model", map[string]interface{}{
		"signature": signature,
		"from":      p.model,
		"to":        p.fallbackModel,
	})
	if primary.Alive() {
		_ = primary.Signal(syscall.SIGTERM)
	}

	secondary, err := p.spawn(p.fallbackModel, req, req.Stderr)
	if err != nil {
		return nil, fmt.Errorf("gemini model %s hit quota and %s failed to spawn (%v): %w",
			p.model, p.fallbackModel, err, domain.ErrAllModelsFailed)
	}
	return secondary, nil
}

func (p *Provider) spawn(model string, req task.ExecutionRequest, stderr io.Writer) (*proc.Handle, error) {
	argv := p.commandFor(model)
	return proc.Start(proc.Command{
		Binary: argv[0],
		Args:   argv[1:],
		Dir:    req.WorkDir,
		Stdin:  req.Prompt,
		Stdout: req.Stdout,
		Stderr: stderr,
	})
}

func (p *Provider) warn(ctx context.Context, message string, fields map[string]interface{}) {
	if p.logger != nil {
		p.logger.LogWarning(ctx, message, fields)
	}
}

// quotaScanner accumulates stderr text and reports the first quota
// signature it contains. Accumulation runs over the whole stream so a
// signature split across writes still matches; disarm stops it once
// the grace window has resolved so a long-lived process does not feed
// an unread buffer forever.
type quotaScanner struct {
	mu      sync.Mutex
	buf     []byte
	armed   bool
	matched string
	notify  chan struct{}
}

const (
	maxScanBuffer = 32 << 10
	scanTailKeep  = 1 << 10
)

func newQuotaScanner() *quotaScanner {
	return &quotaScanner{armed: true, notify: make(chan struct{}, 1)}
}

func (s *quotaScanner) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed || s.matched != "" {
		return len(p), nil
	}

	s.buf = append(s.buf, p...)
	if len(s.buf) > maxScanBuffer {
		s.buf = append(s.buf[:0:0], s.buf[len(s.buf)-scanTailKeep:]...)
	}

	haystack := strings.ToLower(string(s.buf))
	for _, sig := range quotaSignatures {
		if strings.Contains(haystack, sig) {
			s.matched = sig
			select {
			case s.notify <- struct{}{}:
			default:
			}
			break
		}
	}
	return len(p), nil
}

// quota is signalled once when a signature first matches.
func (s *quotaScanner) quota() <-chan struct{} {
	return s.notify
}

func (s *quotaScanner) match() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matched
}

func (s *quotaScanner) disarm() {
	s.mu.Lock()
	s.armed = false
	s.buf = nil
	s.mu.Unlock()
}

var _ task.Provider = (*Provider)(nil)
