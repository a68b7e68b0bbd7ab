package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkyoung/review-agent/internal/domain"
)

func TestResolveAutoPrefersClaude(t *testing.T) {
	claude := &fakeProvider{name: domain.ProviderClaude, available: true}
	gemini := &fakeProvider{name: domain.ProviderGemini, available: true}
	s := NewSelector(&recordingLogger{}, claude, gemini)

	p, err := s.Resolve(context.Background(), domain.ProviderAuto, false)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderClaude, p.Name())
	assert.Equal(t, 0, gemini.probeCount(), "second priority must not be probed when the first responds")
}

func TestResolveAutoFallsThroughPriorityOrder(t *testing.T) {
	claude := &fakeProvider{name: domain.ProviderClaude, available: false}
	gemini := &fakeProvider{name: domain.ProviderGemini, available: true}
	s := NewSelector(&recordingLogger{}, claude, gemini)

	p, err := s.Resolve(context.Background(), domain.ProviderAuto, false)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderGemini, p.Name())
	assert.Equal(t, 1, claude.probeCount())
}

func TestResolveAutoNoneAvailable(t *testing.T) {
	claude := &fakeProvider{name: domain.ProviderClaude, available: false}
	gemini := &fakeProvider{name: domain.ProviderGemini, available: false}
	s := NewSelector(&recordingLogger{}, claude, gemini)

	_, err := s.Resolve(context.Background(), domain.ProviderAuto, true)
	require.ErrorIs(t, err, domain.ErrNoProviderAvailable)
}

func TestResolveExplicitWithoutFallbackSkipsProbe(t *testing.T) {
	// With fallback disabled the requested tool is returned as-is; a
	// dead binary surfaces as a spawn error at execution time instead.
	claude := &fakeProvider{name: domain.ProviderClaude, available: false}
	s := NewSelector(&recordingLogger{}, claude)

	p, err := s.Resolve(context.Background(), domain.ProviderClaude, false)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderClaude, p.Name())
	assert.Equal(t, 0, claude.probeCount())
}

func TestResolveExplicitFallbackKeepsHealthyRequest(t *testing.T) {
	claude := &fakeProvider{name: domain.ProviderClaude, available: true}
	gemini := &fakeProvider{name: domain.ProviderGemini, available: true}
	s := NewSelector(&recordingLogger{}, claude, gemini)

	p, err := s.Resolve(context.Background(), domain.ProviderClaude, true)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderClaude, p.Name())
	assert.Equal(t, 0, gemini.probeCount())
}

func TestResolveExplicitFallbackSubstitutesOther(t *testing.T) {
	logger := &recordingLogger{}
	claude := &fakeProvider{name: domain.ProviderClaude, available: false}
	gemini := &fakeProvider{name: domain.ProviderGemini, available: true}
	s := NewSelector(logger, claude, gemini)

	p, err := s.Resolve(context.Background(), domain.ProviderClaude, true)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderGemini, p.Name())
	require.Len(t, logger.find("info", "provider substituted"), 1)
}

func TestResolveExplicitFallbackExhausted(t *testing.T) {
	claude := &fakeProvider{name: domain.ProviderClaude, available: false}
	gemini := &fakeProvider{name: domain.ProviderGemini, available: false}
	s := NewSelector(&recordingLogger{}, claude, gemini)

	_, err := s.Resolve(context.Background(), domain.ProviderGemini, true)
	require.ErrorIs(t, err, domain.ErrNoProviderAvailable)
}

func TestResolveUnknownIdentity(t *testing.T) {
	s := NewSelector(&recordingLogger{})

	_, err := s.Resolve(context.Background(), domain.ProviderClaude, true)
	require.ErrorIs(t, err, domain.ErrNoProviderAvailable)
}
