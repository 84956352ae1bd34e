package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"commerce-agent/internal/core/domain"
	"commerce-agent/internal/core/ports"
	"commerce-agent/internal/metrics"
)

// ManagedCredentialSource resolves the current managed credential.
// A nil credential means managed AI is unavailable.
type ManagedCredentialSource interface {
	Managed(ctx context.Context) (*domain.AICredential, error)
}

// AIGateway dispatches a message list to one provider adapter and falls back
// to the managed provider exactly once when the requested provider fails.
type AIGateway struct {
	adapters map[domain.AIProvider]ports.AIAdapter
	managed  ManagedCredentialSource
	timeout  time.Duration
}

// NewAIGateway creates a gateway. The fallback credential is looked up from managed
// only after a failure; a nil managed disables fallback.
func NewAIGateway(adapters map[domain.AIProvider]ports.AIAdapter, managed ManagedCredentialSource, timeout time.Duration) *AIGateway {
	return &AIGateway{
		adapters: adapters,
		managed:  managed,
		timeout:  timeout,
	}
}

// Call sends req to its credential's provider. The returned response names the
// provider that actually produced the content.
func (g *AIGateway) Call(ctx context.Context, req domain.AIRequest) (*domain.AIResponse, error) {
	start := time.Now()

	content, err := g.invoke(ctx, req.Credential, req)
	if err == nil {
		return &domain.AIResponse{
			Content:    content,
			Provider:   req.Credential.Provider,
			DurationMs: time.Since(start).Milliseconds(),
		}, nil
	}

	if req.Credential.Provider == domain.ProviderManaged {
		return nil, err
	}
	fallback := g.fallbackCredential(ctx)
	if fallback == nil {
		return nil, err
	}

	slog.Warn("AI provider failed, falling back to managed provider",
		"provider", req.Credential.Provider,
		"error", err,
	)
	metrics.AIFallbacks.WithLabelValues(string(req.Credential.Provider)).Inc()

	content, fbErr := g.invoke(ctx, *fallback, req)
	if fbErr != nil {
		return nil, fmt.Errorf("fallback after %s failure (%v): %w", req.Credential.Provider, err, fbErr)
	}

	return &domain.AIResponse{
		Content:    content,
		Provider:   domain.ProviderManaged,
		FellBack:   true,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

func (g *AIGateway) fallbackCredential(ctx context.Context) *domain.AICredential {
	if g.managed == nil {
		return nil
	}
	cred, err := g.managed.Managed(ctx)
	if err != nil {
		slog.Warn("Managed credential lookup failed, no fallback", "error", err)
		return nil
	}
	if cred == nil || cred.APIKey == "" {
		return nil
	}
	fallback := *cred
	fallback.Provider = domain.ProviderManaged
	return &fallback
}

func (g *AIGateway) invoke(ctx context.Context, cred domain.AICredential, req domain.AIRequest) (string, error) {
	adapter, ok := g.adapters[cred.Provider]
	if !ok {
		return "", fmt.Errorf("no adapter registered for provider %q", cred.Provider)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	content, err := adapter.Complete(ctx, cred, req.Messages, req.HasMedia)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordAICall(string(cred.Provider), status, time.Since(start).Seconds())

	if err != nil {
		return "", fmt.Errorf("%s: %w", cred.Provider, err)
	}
	return content, nil
}
