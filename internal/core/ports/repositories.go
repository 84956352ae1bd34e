// Package ports defines interfaces for dependency inversion
// Following Hexagonal Architecture: Core defines contracts, Adapters implement them
package ports

import (
	"context"
	"time"

	"commerce-agent/internal/core/domain"
)

// PageConfigRepository loads per-page automation settings
type PageConfigRepository interface {
	// GetPageConfig returns domain.ErrNotFound when the page has no configuration
	GetPageConfig(ctx context.Context, pageID string) (*domain.PageConfig, error)
}

// AccountRepository resolves connected platform accounts
type AccountRepository interface {
	// GetAccessToken returns domain.ErrNotFound when no active connection exists
	GetAccessToken(ctx context.Context, externalID, platform string) (string, error)

	// DeactivateByToken disables every connection using a token the platform rejected
	DeactivateByToken(ctx context.Context, accessToken string) error
}

// AISettingsRepository exposes the managed AI record and per-owner AI preferences
type AISettingsRepository interface {
	// GetManagedAISettings returns domain.ErrNotFound when no admin record exists
	GetManagedAISettings(ctx context.Context) (*domain.ManagedAISettings, error)

	// GetOwnerAIConfig returns domain.ErrNotFound when the owner never configured AI
	GetOwnerAIConfig(ctx context.Context, ownerID string) (*domain.OwnerAIConfig, error)
}

// ConversationRepository persists rolling conversation state
type ConversationRepository interface {
	// GetConversation returns domain.ErrNotFound for an unknown (page, sender)
	GetConversation(ctx context.Context, pageID, senderID string) (*domain.Conversation, error)

	// CreateConversation inserts a new record and fills in its ID
	CreateConversation(ctx context.Context, conv *domain.Conversation) error

	// UpdateConversation writes history/count/activity only if conv.Version still matches,
	// returning domain.ErrVersionConflict otherwise. On success conv.Version is bumped.
	UpdateConversation(ctx context.Context, conv *domain.Conversation) error
}

// ExecutionLogRepository appends audit records
type ExecutionLogRepository interface {
	SaveExecutionLog(ctx context.Context, entry *domain.ExecutionLogEntry) error

	// PurgeExecutionLogs deletes up to limit entries older than cutoff
	PurgeExecutionLogs(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// OrderRepository persists orders taken by the agent
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
}

// DedupRepository handles deduplication of webhook events using cache
type DedupRepository interface {
	// IsDuplicate checks if an event ID has already been processed
	IsDuplicate(ctx context.Context, eventID string) (bool, error)

	// MarkProcessed marks an event as processed in the cache with a TTL
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error
}
