package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"commerce-agent/internal/core/domain"
	"commerce-agent/internal/core/ports"
)

// PageContext is everything the pipeline needs to act on behalf of a page
type PageContext struct {
	Config      *domain.PageConfig
	AccessToken string
}

// Reasons returned when automation stops early. These are normal outcomes, not errors.
const (
	ReasonPageNotConfigured = "page_not_configured"
	ReasonAutomationOff     = "automation_disabled"
	ReasonNoAccessToken     = "no_access_token"
	ReasonAIPaused          = "ai_paused"
	ReasonAIUnavailable     = "ai_unavailable"
	ReasonEmptyMessage      = "empty_message"
	ReasonNegativeComment   = "negative_comment"
	ReasonCommentRepliesOff = "comment_replies_disabled"
	ReasonDuplicate         = "duplicate_event"
)

// PageResolver loads page configuration and the page access token
type PageResolver struct {
	configs  ports.PageConfigRepository
	accounts ports.AccountRepository
}

// NewPageResolver creates a resolver
func NewPageResolver(configs ports.PageConfigRepository, accounts ports.AccountRepository) *PageResolver {
	return &PageResolver{configs: configs, accounts: accounts}
}

// Resolve returns (nil, reason, nil) when the page should simply be left alone.
func (r *PageResolver) Resolve(ctx context.Context, pageID string) (*PageContext, string, error) {
	cfg, err := r.configs.GetPageConfig(ctx, pageID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ReasonPageNotConfigured, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("load page config: %w", err)
	}
	if !cfg.Enabled {
		return nil, ReasonAutomationOff, nil
	}

	token, err := r.accounts.GetAccessToken(ctx, pageID, domain.PlatformFacebook)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && token == "") {
		return nil, ReasonNoAccessToken, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("load access token: %w", err)
	}

	return &PageContext{Config: cfg, AccessToken: token}, "", nil
}

// CredentialResolver decides which AI backend and key serve an owner
type CredentialResolver struct {
	settings          ports.AISettingsRepository
	defaultManagedKey string
	defaultManagedURL string
}

// NewCredentialResolver creates a resolver. defaultManagedKey backs the managed
// provider when the admin record carries no key of its own.
func NewCredentialResolver(settings ports.AISettingsRepository, defaultManagedKey, defaultManagedURL string) *CredentialResolver {
	return &CredentialResolver{
		settings:          settings,
		defaultManagedKey: defaultManagedKey,
		defaultManagedURL: defaultManagedURL,
	}
}

// Resolve returns nil when no AI backend is usable for the owner.
// First match wins: managed (opted in, globally enabled, key present), then the
// owner's personal config, then nothing.
func (r *CredentialResolver) Resolve(ctx context.Context, ownerID string) (*domain.AICredential, error) {
	owner, err := r.settings.GetOwnerAIConfig(ctx, ownerID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load owner ai config: %w", err)
	}
	if errors.Is(err, domain.ErrNotFound) {
		owner = nil
	}

	if owner != nil && owner.UseManagedAI {
		managed, err := r.loadManaged(ctx)
		if err != nil {
			return nil, err
		}
		if cred := r.managedCredential(managed); cred != nil {
			return cred, nil
		}
		slog.Debug("Managed AI requested but not usable, trying personal config", "owner_id", ownerID)
	}

	if owner != nil && owner.IsActive && owner.APIKey != "" {
		provider := domain.AIProvider(strings.ToLower(strings.TrimSpace(owner.Provider)))
		if !provider.Valid() {
			provider = InferProvider(owner.APIKey)
		}
		return &domain.AICredential{
			Provider: provider,
			APIKey:   owner.APIKey,
			BaseURL:  owner.BaseURL,
			Model:    owner.Model,
		}, nil
	}

	return nil, nil
}

// Managed returns the deployment's managed credential, used as the fallback backend.
// The admin record gates it; without a record the deployment key alone serves.
func (r *CredentialResolver) Managed(ctx context.Context) (*domain.AICredential, error) {
	managed, err := r.loadManaged(ctx)
	if err != nil {
		return nil, err
	}
	if managed == nil {
		managed = &domain.ManagedAISettings{Enabled: true}
	}
	return r.managedCredential(managed), nil
}

func (r *CredentialResolver) loadManaged(ctx context.Context) (*domain.ManagedAISettings, error) {
	managed, err := r.settings.GetManagedAISettings(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load managed ai settings: %w", err)
	}
	return managed, nil
}

// managedCredential applies the admin record over the deployment defaults.
// Returns nil when managed AI is switched off or has no key.
func (r *CredentialResolver) managedCredential(managed *domain.ManagedAISettings) *domain.AICredential {
	if managed == nil || !managed.Enabled {
		return nil
	}
	key := managed.APIKey
	if key == "" {
		key = r.defaultManagedKey
	}
	if key == "" {
		return nil
	}
	baseURL := managed.BaseURL
	if baseURL == "" {
		baseURL = r.defaultManagedURL
	}
	return &domain.AICredential{
		Provider: domain.ProviderManaged,
		APIKey:   key,
		BaseURL:  baseURL,
		Model:    managed.Model,
	}
}

// InferProvider guesses the vendor from the key shape.
// Deprecated: best-effort compatibility for owner records saved without a provider.
func InferProvider(apiKey string) domain.AIProvider {
	switch {
	case strings.HasPrefix(apiKey, "sk-"):
		return domain.ProviderOpenAI
	case strings.HasPrefix(apiKey, "AIza"):
		return domain.ProviderGemini
	}
	return domain.ProviderManaged
}
