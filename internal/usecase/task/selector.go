package task

import (
	"context"
	"fmt"

	"github.com/bkyoung/review-agent/internal/domain"
)

// autoProbeOrder is the fixed priority order for automatic selection.
var autoProbeOrder = []domain.ProviderIdentity{domain.ProviderClaude, domain.ProviderGemini}

// Selector implements the provider selection policy.
type Selector struct {
	providers map[domain.ProviderIdentity]Provider
	logger    Logger
}

// NewSelector indexes the given providers by identity.
func NewSelector(logger Logger, providers ...Provider) *Selector {
	byName := make(map[domain.ProviderIdentity]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Selector{providers: byName, logger: logger}
}

// Resolve picks one concrete provider for identity.
//
// An explicit identity resolves without probing when fallback is
// disabled; a dead tool then surfaces as a spawn error at execution
// time. With fallback enabled, an explicit identity that fails its
// availability probe is substituted with the other provider if that one
// probes healthy. Automatic selection probes in fixed priority order
// and takes the first healthy tool. Probe failures of any flavor count
// as unavailable, never as fatal errors.
func (s *Selector) Resolve(ctx context.Context, identity domain.ProviderIdentity, fallbackEnabled bool) (Provider, error) {
	if identity == domain.ProviderAuto {
		return s.resolveAuto(ctx)
	}

	requested, ok := s.providers[identity]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q: %w", identity, domain.ErrNoProviderAvailable)
	}

	if !fallbackEnabled {
		return requested, nil
	}

	if requested.Available(ctx) {
		return requested, nil
	}

	for _, candidate := range autoProbeOrder {
		if candidate == identity {
			continue
		}
		alternate, ok := s.providers[candidate]
		if !ok {
			continue
		}
		if alternate.Available(ctx) {
			s.logger.LogInfo(ctx, "provider substituted", map[string]interface{}{
				"requested": string(identity),
				"selected":  string(candidate),
			})
			return alternate, nil
		}
	}

	return nil, fmt.Errorf("provider %s unavailable and no fallback responded: %w", identity, domain.ErrNoProviderAvailable)
}

func (s *Selector) resolveAuto(ctx context.Context) (Provider, error) {
	for _, identity := range autoProbeOrder {
		p, ok := s.providers[identity]
		if !ok {
			continue
		}
		if p.Available(ctx) {
			s.logger.LogDebug(ctx, "provider selected", map[string]interface{}{
				"provider": string(identity),
			})
			return p, nil
		}
	}
	return nil, fmt.Errorf("no provider responded to its availability probe: %w", domain.ErrNoProviderAvailable)
}
