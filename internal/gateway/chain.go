package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
)

// ErrNoProviders is returned by a chain with no providers configured
var ErrNoProviders = domain.NewPermanentError("analysis", errors.New("no analysis providers configured"))

// AnalyzerChain tries analysis providers in order and returns the first success
type AnalyzerChain struct {
	providers []domain.AnalysisProvider
	log       zerolog.Logger
}

// NewAnalyzerChain creates a fallback chain over providers, in priority order
func NewAnalyzerChain(log zerolog.Logger, providers ...domain.AnalysisProvider) *AnalyzerChain {
	return &AnalyzerChain{
		providers: providers,
		log:       log.With().Str("component", "analyzer_chain").Logger(),
	}
}

// Name lists the providers in order
func (c *AnalyzerChain) Name() string {
	name := "chain("
	for i, p := range c.providers {
		if i > 0 {
			name += ","
		}
		name += p.Name()
	}
	return name + ")"
}

// Len returns the number of providers
func (c *AnalyzerChain) Len() int {
	return len(c.providers)
}

// GenerateAnalysis calls each provider until one succeeds. The returned error joins
// every provider error, so errors.Is/As see all of them.
func (c *AnalyzerChain) GenerateAnalysis(ctx context.Context, prompt string) (*domain.Analysis, error) {
	if len(c.providers) == 0 {
		return nil, ErrNoProviders
	}

	errs := make([]error, 0, len(c.providers))
	for i, p := range c.providers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		analysis, err := p.GenerateAnalysis(ctx, prompt)
		if err == nil {
			if i > 0 {
				c.log.Info().Str("provider", p.Name()).Int("position", i).Msg("Analysis served by fallback provider")
			}
			return analysis, nil
		}

		c.log.Warn().Err(err).
			Str("provider", p.Name()).
			Bool("rate_limited", domain.IsRateLimited(err)).
			Msg("Analysis provider failed, trying next")
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}

	return nil, fmt.Errorf("all analysis providers failed: %w", errors.Join(errs...))
}
