package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"commerce-agent/internal/core/domain"
	"commerce-agent/internal/core/ports"
)

const maxAppendAttempts = 3

// ConversationStore manages the rolling per (page, sender) history.
// Callers hold Lock for the whole read-AI-append sequence; the repository's
// version check covers writers in other processes.
type ConversationStore struct {
	repo     ports.ConversationRepository
	platform ports.PlatformClient
	locks    *KeyedMutex
	now      func() time.Time
}

// NewConversationStore creates a store
func NewConversationStore(repo ports.ConversationRepository, platform ports.PlatformClient) *ConversationStore {
	return &ConversationStore{
		repo:     repo,
		platform: platform,
		locks:    NewKeyedMutex(),
		now:      time.Now,
	}
}

// Lock serializes processing for one conversation and returns the unlock func
func (s *ConversationStore) Lock(pageID, senderID string) func() {
	return s.locks.Lock(pageID + ":" + senderID)
}

// GetOrCreate returns the existing conversation or creates an empty active one.
// On creation the sender's display name comes from nameHint, else a best-effort profile fetch.
func (s *ConversationStore) GetOrCreate(ctx context.Context, pageID, senderID, nameHint, accessToken string) (*domain.Conversation, error) {
	conv, err := s.repo.GetConversation(ctx, pageID, senderID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	name := nameHint
	if name == "" && accessToken != "" && s.platform != nil {
		if profile, ok := s.platform.GetUserProfile(ctx, accessToken, senderID); ok {
			name = profile.DisplayName()
		}
	}

	now := s.now()
	conv = &domain.Conversation{
		PageID:         pageID,
		SenderID:       senderID,
		SenderName:     name,
		History:        []domain.HistoryEntry{},
		State:          domain.ConversationStateActive,
		LastActivityAt: now,
		CreatedAt:      now,
	}
	if err := s.repo.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	slog.Info("New conversation created",
		"conversation_id", conv.ID,
		"page_id", pageID,
		"sender_id", senderID,
	)
	return conv, nil
}

// AppendTurn appends a user/assistant pair, keeps the last MaxHistoryEntries entries
// and persists. A version conflict reloads the record and re-applies the turn.
func (s *ConversationStore) AppendTurn(ctx context.Context, conv *domain.Conversation, userMessage, assistantMessage string) error {
	for attempt := 1; attempt <= maxAppendAttempts; attempt++ {
		updated := *conv
		updated.History = append([]domain.HistoryEntry(nil), conv.History...)
		updated.AppendTurn(userMessage, assistantMessage, s.now())

		err := s.repo.UpdateConversation(ctx, &updated)
		if err == nil {
			*conv = updated
			return nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return fmt.Errorf("update conversation: %w", err)
		}

		slog.Warn("Conversation changed concurrently, reloading",
			"conversation_id", conv.ID,
			"attempt", attempt,
		)
		fresh, err := s.repo.GetConversation(ctx, conv.PageID, conv.SenderID)
		if err != nil {
			return fmt.Errorf("reload conversation: %w", err)
		}
		*conv = *fresh
	}
	return fmt.Errorf("append turn: %w", domain.ErrVersionConflict)
}
