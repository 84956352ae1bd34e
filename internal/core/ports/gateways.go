package ports

import (
	"context"

	"commerce-agent/internal/core/domain"
)

// PlatformClient wraps outbound calls to the social platform.
// Every operation reports success as a bool and never returns an error;
// failures are logged by the implementation.
type PlatformClient interface {
	SendMessage(ctx context.Context, accessToken, recipientID, text string) bool
	ReplyToComment(ctx context.Context, accessToken, commentID, text string) bool
	ReactToComment(ctx context.Context, accessToken, commentID string, reaction domain.Reaction) bool
	HideComment(ctx context.Context, accessToken, commentID string) bool
	GetUserProfile(ctx context.Context, accessToken, userID string) (*domain.UserProfile, bool)
	MarkSeen(ctx context.Context, accessToken, recipientID string) bool
	SetTyping(ctx context.Context, accessToken, recipientID string, on bool) bool
}

// AIAdapter talks to a single AI backend.
// Implementations return an error on transport failure or non-2xx responses.
type AIAdapter interface {
	Complete(ctx context.Context, cred domain.AICredential, messages []domain.ChatMessage, hasMedia bool) (string, error)
}

// LogSink receives every execution log entry after it is persisted
type LogSink interface {
	PublishExecutionLog(ctx context.Context, entry *domain.ExecutionLogEntry) error
}
