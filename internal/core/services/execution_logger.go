package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"commerce-agent/internal/core/domain"
	"commerce-agent/internal/core/ports"
	"commerce-agent/internal/metrics"
)

// maxSnippetRunes bounds the payload snippets stored with each entry
const maxSnippetRunes = 500

// ExecutionLogger appends audit records. It never fails the caller.
type ExecutionLogger struct {
	repo  ports.ExecutionLogRepository
	sinks []ports.LogSink
	now   func() time.Time
}

// NewExecutionLogger creates a logger; sinks receive entries after persistence
func NewExecutionLogger(repo ports.ExecutionLogRepository, sinks ...ports.LogSink) *ExecutionLogger {
	return &ExecutionLogger{repo: repo, sinks: sinks, now: time.Now}
}

// Record persists one entry and fans it out. All failures are logged and swallowed.
func (l *ExecutionLogger) Record(ctx context.Context, ownerID, eventType, status, platform string, durationMs int64, input, output string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("PANIC recovered in execution logger", "panic", r, "event_type", eventType)
		}
	}()

	entry := &domain.ExecutionLogEntry{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		EventType:     eventType,
		Status:        status,
		Platform:      platform,
		DurationMs:    durationMs,
		InputSnippet:  truncateRunes(input, maxSnippetRunes),
		OutputSnippet: truncateRunes(output, maxSnippetRunes),
		CreatedAt:     l.now(),
	}
	metrics.ExecutionLogs.WithLabelValues(eventType, status).Inc()

	if l.repo != nil {
		if err := l.repo.SaveExecutionLog(ctx, entry); err != nil {
			slog.Error("Failed to save execution log",
				"error", err,
				"event_type", eventType,
				"owner_id", ownerID,
			)
		}
	}

	for _, sink := range l.sinks {
		if err := sink.PublishExecutionLog(ctx, entry); err != nil {
			slog.Warn("Failed to publish execution log", "error", err, "event_type", eventType)
		}
	}
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
