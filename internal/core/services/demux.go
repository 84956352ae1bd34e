// Package services contains core business logic
// Following Hexagonal Architecture: Services orchestrate domain logic using ports
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"commerce-agent/internal/adapters/dto"
	"commerce-agent/internal/core/domain"
	"commerce-agent/internal/core/ports"
	"commerce-agent/internal/metrics"
)

// dedupTTL is how long a processed event id is remembered
const dedupTTL = 24 * time.Hour

// EventHandler receives the events extracted from a webhook delivery
type EventHandler interface {
	HandleMessage(ctx context.Context, msg InboundMessage) (*AgentResult, error)
	HandleComment(ctx context.Context, c InboundComment) (*AgentResult, error)
}

// Demultiplexer splits a webhook payload into message and comment events
type Demultiplexer struct {
	handler EventHandler
	dedup   ports.DedupRepository
}

// NewDemultiplexer creates a demultiplexer. dedup may be nil.
func NewDemultiplexer(handler EventHandler, dedup ports.DedupRepository) *Demultiplexer {
	return &Demultiplexer{handler: handler, dedup: dedup}
}

// ProcessWebhook processes one Facebook webhook delivery.
// Events are handled sequentially; a failing event never stops the rest.
// Only a payload that cannot be parsed returns an error.
func (d *Demultiplexer) ProcessWebhook(ctx context.Context, payload []byte) error {
	var req dto.FacebookWebhookRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}

	if req.Object != "page" {
		slog.Debug("Ignoring non-page webhook", "object", req.Object)
		return nil
	}

	processed, skipped := 0, 0
	for _, entry := range req.Entry {
		for i := range entry.Messaging {
			messaging := &entry.Messaging[i]
			if !messaging.IsUserMessage() {
				slog.Debug("Skipping non-user message event",
					"is_echo", messaging.Message != nil && messaging.Message.IsEcho,
					"has_delivery", messaging.Delivery != nil,
					"has_read", messaging.Read != nil,
				)
				metrics.WebhookEvents.WithLabelValues("message", "skipped").Inc()
				skipped++
				continue
			}
			if d.handleEvent(ctx, "message", messaging.GetMessageID(), func(ctx context.Context) (*AgentResult, error) {
				return d.handler.HandleMessage(ctx, toInboundMessage(entry.ID, messaging))
			}) {
				processed++
			}
		}

		for i := range entry.Changes {
			change := &entry.Changes[i]
			if !change.IsComment() {
				continue
			}
			if !change.IsNewComment() || change.Value.From.ID == entry.ID {
				metrics.WebhookEvents.WithLabelValues("comment", "skipped").Inc()
				skipped++
				continue
			}
			if d.handleEvent(ctx, "comment", change.Value.CommentID, func(ctx context.Context) (*AgentResult, error) {
				return d.handler.HandleComment(ctx, InboundComment{
					PageID:     entry.ID,
					CommentID:  change.Value.CommentID,
					PostID:     change.Value.PostID,
					SenderID:   change.Value.From.ID,
					SenderName: change.Value.From.Name,
					Text:       change.Value.Message,
				})
			}) {
				processed++
			}
		}
	}

	slog.Info("Webhook processing completed",
		"processed", processed,
		"skipped", skipped,
	)
	return nil
}

// handleEvent runs one event with dedup and panic isolation. Reports whether it completed.
func (d *Demultiplexer) handleEvent(ctx context.Context, kind, eventID string, run func(context.Context) (*AgentResult, error)) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("PANIC recovered while handling webhook event",
				"panic", r,
				"kind", kind,
				"event_id", eventID,
			)
			metrics.WebhookEvents.WithLabelValues(kind, "panic").Inc()
			ok = false
		}
	}()

	if d.isDuplicate(ctx, eventID) {
		slog.Info("Duplicate event detected, skipping", "kind", kind, "event_id", eventID)
		metrics.WebhookEvents.WithLabelValues(kind, ReasonDuplicate).Inc()
		return false
	}

	result, err := run(ctx)
	if err != nil {
		slog.Error("Failed to handle webhook event",
			"error", err,
			"kind", kind,
			"event_id", eventID,
		)
		metrics.WebhookEvents.WithLabelValues(kind, "error").Inc()
		return false
	}

	outcome := "replied"
	if result != nil && result.Reason != "" {
		outcome = result.Reason
	}
	metrics.WebhookEvents.WithLabelValues(kind, outcome).Inc()
	d.markProcessed(ctx, eventID)
	return true
}

func (d *Demultiplexer) isDuplicate(ctx context.Context, eventID string) bool {
	if d.dedup == nil || eventID == "" {
		return false
	}
	dup, err := d.dedup.IsDuplicate(ctx, eventID)
	if err != nil {
		slog.Warn("Dedup check failed, processing anyway", "error", err, "event_id", eventID)
		return false
	}
	return dup
}

func (d *Demultiplexer) markProcessed(ctx context.Context, eventID string) {
	if d.dedup == nil || eventID == "" {
		return
	}
	if err := d.dedup.MarkProcessed(ctx, eventID, dedupTTL); err != nil {
		slog.Warn("Failed to mark event in dedup cache", "error", err, "event_id", eventID)
	}
}

func toInboundMessage(pageID string, m *dto.FacebookMessaging) InboundMessage {
	msg := InboundMessage{
		PageID:      pageID,
		SenderID:    m.Sender.ID,
		Text:        m.Message.Text,
		MessageType: m.GetMessageType(),
	}
	for _, a := range m.Message.Attachments {
		msg.Attachments = append(msg.Attachments, Attachment{Type: a.Type, URL: a.Payload.URL})
	}
	return msg
}
