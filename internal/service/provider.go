package service

import (
	"fmt"

	"github.com/Strob0t/AgentCorp/internal/adapter/anthropic"
	"github.com/Strob0t/AgentCorp/internal/adapter/openai"
	"github.com/Strob0t/AgentCorp/internal/config"
	"github.com/Strob0t/AgentCorp/internal/port/llm"
	"github.com/Strob0t/AgentCorp/internal/resilience"
)

// ProviderFactory resolves provider names to completion clients. All clients
// share one rate limiter; each upstream gets its own circuit breaker.
type ProviderFactory struct {
	cfg     config.LLM
	limiter *resilience.Limiter

	openaiBreaker    *resilience.Breaker
	anthropicBreaker *resilience.Breaker
}

// NewProviderFactory creates a factory from the LLM, breaker, and rate
// configuration sections.
func NewProviderFactory(cfg config.LLM, breaker config.Breaker, rate config.Rate) *ProviderFactory {
	return &ProviderFactory{
		cfg:              cfg,
		limiter:          resilience.NewLimiter(rate.RequestsPerSecond, rate.Burst),
		openaiBreaker:    resilience.NewBreaker(breaker.MaxFailures, breaker.Timeout),
		anthropicBreaker: resilience.NewBreaker(breaker.MaxFailures, breaker.Timeout),
	}
}

// Provider returns a completion client for the named provider, or the default
// provider when name is empty. A provider whose API key is unset yields a nil
// client; tasks assigned to such an agent fail with a descriptive reason
// instead of a transport error.
func (f *ProviderFactory) Provider(name string) (llm.Provider, error) {
	if name == "" {
		name = f.cfg.DefaultProvider
	}

	switch name {
	case "openai":
		if f.cfg.OpenAI.APIKey == "" {
			return nil, nil
		}
		c := openai.NewClient(f.cfg.OpenAI.BaseURL, f.cfg.OpenAI.APIKey, f.cfg.OpenAI.Model)
		c.SetBreaker(f.openaiBreaker)
		c.SetLimiter(f.limiter)
		return c, nil

	case "anthropic":
		if f.cfg.Anthropic.APIKey == "" {
			return nil, nil
		}
		c := anthropic.NewClient(f.cfg.Anthropic.BaseURL, f.cfg.Anthropic.APIKey, f.cfg.Anthropic.Model)
		c.SetBreaker(f.anthropicBreaker)
		c.SetLimiter(f.limiter)
		return c, nil
	}

	return nil, fmt.Errorf("unknown llm provider %q", name)
}
