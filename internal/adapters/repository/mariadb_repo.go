// Package repository implements data persistence adapters
// Following Hexagonal Architecture: Adapters implement ports defined in core
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"commerce-agent/internal/core/domain"
	"commerce-agent/internal/core/ports"
)

// Ensure MariaDBRepository implements the required interfaces
var (
	_ ports.PageConfigRepository   = (*MariaDBRepository)(nil)
	_ ports.AccountRepository      = (*MariaDBRepository)(nil)
	_ ports.AISettingsRepository   = (*MariaDBRepository)(nil)
	_ ports.ConversationRepository = (*MariaDBRepository)(nil)
	_ ports.ExecutionLogRepository = (*MariaDBRepository)(nil)
	_ ports.OrderRepository        = (*MariaDBRepository)(nil)
)

// MariaDBRepository implements persistence operations for MariaDB
type MariaDBRepository struct {
	db *sql.DB
}

// NewMariaDBRepository creates a new MariaDB repository instance
func NewMariaDBRepository(db *sql.DB) *MariaDBRepository {
	return &MariaDBRepository{
		db: db,
	}
}

// schema is applied idempotently at startup
var schema = []string{
	`CREATE TABLE IF NOT EXISTS page_automation_settings (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		owner_id VARCHAR(64) NOT NULL,
		page_id VARCHAR(64) NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		business_description TEXT,
		product_summary TEXT,
		tone VARCHAR(255),
		custom_instructions TEXT,
		language VARCHAR(8) NOT NULL DEFAULT 'en',
		selling_rules JSON,
		behavior_rules JSON,
		payment_info JSON,
		delivery_info JSON,
		UNIQUE KEY uq_owner_page (owner_id, page_id),
		KEY idx_page (page_id)
	)`,
	`CREATE TABLE IF NOT EXISTS connected_accounts (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		owner_id VARCHAR(64) NOT NULL,
		platform VARCHAR(32) NOT NULL,
		external_id VARCHAR(64) NOT NULL,
		access_token TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		KEY idx_external (external_id, platform)
	)`,
	`CREATE TABLE IF NOT EXISTS admin_ai_settings (
		id TINYINT PRIMARY KEY DEFAULT 1,
		enabled BOOLEAN NOT NULL DEFAULT FALSE,
		api_key TEXT,
		base_url VARCHAR(255),
		model VARCHAR(128)
	)`,
	`CREATE TABLE IF NOT EXISTS owner_ai_settings (
		owner_id VARCHAR(64) PRIMARY KEY,
		use_managed_ai BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		provider VARCHAR(32),
		api_key TEXT,
		base_url VARCHAR(255),
		model VARCHAR(128)
	)`,
	`CREATE TABLE IF NOT EXISTS ai_conversations (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		page_id VARCHAR(64) NOT NULL,
		sender_id VARCHAR(64) NOT NULL,
		sender_name VARCHAR(255),
		history JSON NOT NULL,
		state VARCHAR(32) NOT NULL DEFAULT 'active',
		message_count INT NOT NULL DEFAULT 0,
		last_activity_at DATETIME(3) NOT NULL,
		version BIGINT NOT NULL DEFAULT 0,
		created_at DATETIME(3) NOT NULL,
		UNIQUE KEY uq_page_sender (page_id, sender_id)
	)`,
	`CREATE TABLE IF NOT EXISTS execution_logs (
		id CHAR(36) PRIMARY KEY,
		owner_id VARCHAR(64) NOT NULL,
		event_type VARCHAR(32) NOT NULL,
		status VARCHAR(16) NOT NULL,
		platform VARCHAR(32) NOT NULL,
		duration_ms BIGINT NOT NULL,
		input_snippet TEXT,
		output_snippet TEXT,
		created_at DATETIME(3) NOT NULL,
		KEY idx_created (created_at),
		KEY idx_owner (owner_id, created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		owner_id VARCHAR(64) NOT NULL,
		page_id VARCHAR(64) NOT NULL,
		conversation_id BIGINT NOT NULL,
		customer_name VARCHAR(255) NOT NULL,
		customer_phone VARCHAR(32) NOT NULL,
		customer_address TEXT NOT NULL,
		items JSON NOT NULL,
		total DECIMAL(12,2) NOT NULL,
		status VARCHAR(16) NOT NULL,
		created_at DATETIME(3) NOT NULL,
		KEY idx_owner (owner_id, created_at)
	)`,
}

// EnsureSchema creates missing tables
func (r *MariaDBRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// ============================================================================
// PageConfigRepository Implementation
// ============================================================================

// GetPageConfig loads the automation settings of a page
func (r *MariaDBRepository) GetPageConfig(ctx context.Context, pageID string) (*domain.PageConfig, error) {
	query := `
		SELECT id, owner_id, page_id, enabled,
			COALESCE(business_description, ''), COALESCE(product_summary, ''),
			COALESCE(tone, ''), COALESCE(custom_instructions, ''), language,
			selling_rules, behavior_rules, payment_info, delivery_info
		FROM page_automation_settings
		WHERE page_id = ?
		LIMIT 1
	`

	var cfg domain.PageConfig
	var selling, behavior, payment, delivery []byte
	err := r.db.QueryRowContext(ctx, query, pageID).Scan(
		&cfg.ID, &cfg.OwnerID, &cfg.PageID, &cfg.Enabled,
		&cfg.BusinessDescription, &cfg.ProductSummary,
		&cfg.Tone, &cfg.CustomInstructions, &cfg.Language,
		&selling, &behavior, &payment, &delivery,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		slog.Error("Failed to load page config", "error", err, "page_id", pageID)
		return nil, fmt.Errorf("get page config: %w", err)
	}

	groups := []struct {
		raw []byte
		dst any
	}{
		{selling, &cfg.Selling},
		{behavior, &cfg.Behavior},
		{payment, &cfg.Payment},
		{delivery, &cfg.Delivery},
	}
	for _, g := range groups {
		if err := unmarshalNullable(g.raw, g.dst); err != nil {
			// A malformed rule group degrades to its zero value
			slog.Warn("Malformed rule group in page config", "error", err, "page_id", pageID)
		}
	}

	return &cfg, nil
}

// ============================================================================
// AccountRepository Implementation
// ============================================================================

// GetAccessToken returns the token of the active connection for a page
func (r *MariaDBRepository) GetAccessToken(ctx context.Context, externalID, platform string) (string, error) {
	query := `
		SELECT access_token
		FROM connected_accounts
		WHERE external_id = ? AND platform = ? AND is_active = TRUE
		ORDER BY id DESC
		LIMIT 1
	`

	var token string
	err := r.db.QueryRowContext(ctx, query, externalID, platform).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		slog.Error("Failed to get access token", "error", err, "external_id", externalID)
		return "", fmt.Errorf("get access token: %w", err)
	}
	return token, nil
}

// DeactivateByToken disables connections whose token the platform rejected
func (r *MariaDBRepository) DeactivateByToken(ctx context.Context, accessToken string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE connected_accounts SET is_active = FALSE WHERE access_token = ? AND is_active = TRUE`,
		accessToken,
	)
	if err != nil {
		slog.Error("Failed to deactivate account", "error", err)
		return fmt.Errorf("deactivate account: %w", err)
	}

	rows, _ := result.RowsAffected()
	slog.Warn("🔴 ACCOUNT AUTO-DEACTIVATED",
		"rows", rows,
		"reason", "Token expired",
	)
	return nil
}

// ============================================================================
// AISettingsRepository Implementation
// ============================================================================

// GetManagedAISettings loads the single admin record
func (r *MariaDBRepository) GetManagedAISettings(ctx context.Context) (*domain.ManagedAISettings, error) {
	query := `
		SELECT enabled, COALESCE(api_key, ''), COALESCE(base_url, ''), COALESCE(model, '')
		FROM admin_ai_settings
		ORDER BY id
		LIMIT 1
	`

	var s domain.ManagedAISettings
	err := r.db.QueryRowContext(ctx, query).Scan(&s.Enabled, &s.APIKey, &s.BaseURL, &s.Model)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get managed ai settings: %w", err)
	}
	return &s, nil
}

// GetOwnerAIConfig loads an owner's AI preference
func (r *MariaDBRepository) GetOwnerAIConfig(ctx context.Context, ownerID string) (*domain.OwnerAIConfig, error) {
	query := `
		SELECT owner_id, use_managed_ai, is_active,
			COALESCE(provider, ''), COALESCE(api_key, ''), COALESCE(base_url, ''), COALESCE(model, '')
		FROM owner_ai_settings
		WHERE owner_id = ?
	`

	var c domain.OwnerAIConfig
	err := r.db.QueryRowContext(ctx, query, ownerID).Scan(
		&c.OwnerID, &c.UseManagedAI, &c.IsActive,
		&c.Provider, &c.APIKey, &c.BaseURL, &c.Model,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get owner ai config: %w", err)
	}
	return &c, nil
}

// ============================================================================
// ConversationRepository Implementation
// ============================================================================

// GetConversation loads the conversation of a (page, sender) pair
func (r *MariaDBRepository) GetConversation(ctx context.Context, pageID, senderID string) (*domain.Conversation, error) {
	query := `
		SELECT id, page_id, sender_id, COALESCE(sender_name, ''), history, state,
			message_count, last_activity_at, version, created_at
		FROM ai_conversations
		WHERE page_id = ? AND sender_id = ?
	`

	var c domain.Conversation
	var history []byte
	err := r.db.QueryRowContext(ctx, query, pageID, senderID).Scan(
		&c.ID, &c.PageID, &c.SenderID, &c.SenderName, &history, &c.State,
		&c.MessageCount, &c.LastActivityAt, &c.Version, &c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		slog.Error("Failed to load conversation",
			"error", err,
			"page_id", pageID,
			"sender_id", senderID,
		)
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	if err := unmarshalNullable(history, &c.History); err != nil {
		slog.Warn("Malformed conversation history, starting fresh", "error", err, "conversation_id", c.ID)
		c.History = nil
	}
	return &c, nil
}

// CreateConversation inserts a conversation. A concurrent insert for the same pair
// is resolved by returning the existing row's id.
func (r *MariaDBRepository) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	history, err := json.Marshal(nonNilHistory(conv.History))
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	query := `
		INSERT INTO ai_conversations (
			page_id, sender_id, sender_name, history, state,
			message_count, last_activity_at, version, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)
	`

	result, err := r.db.ExecContext(ctx, query,
		conv.PageID, conv.SenderID, conv.SenderName, history, conv.State,
		conv.MessageCount, conv.LastActivityAt, conv.Version, conv.CreatedAt,
	)
	if err != nil {
		slog.Error("Failed to create conversation",
			"error", err,
			"page_id", conv.PageID,
			"sender_id", conv.SenderID,
		)
		return fmt.Errorf("create conversation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	conv.ID = id
	return nil
}

// UpdateConversation writes the mutable fields guarded by the version column
func (r *MariaDBRepository) UpdateConversation(ctx context.Context, conv *domain.Conversation) error {
	history, err := json.Marshal(nonNilHistory(conv.History))
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	query := `
		UPDATE ai_conversations
		SET history = ?, message_count = ?, last_activity_at = ?, sender_name = ?,
			state = ?, version = version + 1
		WHERE id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		history, conv.MessageCount, conv.LastActivityAt, conv.SenderName,
		conv.State, conv.ID, conv.Version,
	)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if rows == 0 {
		return domain.ErrVersionConflict
	}

	conv.Version++
	return nil
}

// ============================================================================
// ExecutionLogRepository Implementation
// ============================================================================

// SaveExecutionLog appends one audit entry
func (r *MariaDBRepository) SaveExecutionLog(ctx context.Context, entry *domain.ExecutionLogEntry) error {
	query := `
		INSERT INTO execution_logs (
			id, owner_id, event_type, status, platform,
			duration_ms, input_snippet, output_snippet, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.OwnerID, entry.EventType, entry.Status, entry.Platform,
		entry.DurationMs, entry.InputSnippet, entry.OutputSnippet, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save execution log: %w", err)
	}
	return nil
}

// PurgeExecutionLogs deletes up to limit entries older than cutoff
func (r *MariaDBRepository) PurgeExecutionLogs(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM execution_logs WHERE created_at < ? LIMIT ?`,
		cutoff, limit,
	)
	if err != nil {
		return 0, fmt.Errorf("purge execution logs: %w", err)
	}
	return result.RowsAffected()
}

// ============================================================================
// OrderRepository Implementation
// ============================================================================

// CreateOrder inserts an order and fills in its ID
func (r *MariaDBRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("marshal order items: %w", err)
	}

	query := `
		INSERT INTO orders (
			owner_id, page_id, conversation_id, customer_name, customer_phone,
			customer_address, items, total, status, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		order.OwnerID, order.PageID, order.ConversationID, order.CustomerName, order.CustomerPhone,
		order.CustomerAddress, items, order.Total, order.Status, order.CreatedAt,
	)
	if err != nil {
		slog.Error("Failed to create order",
			"error", err,
			"conversation_id", order.ConversationID,
		)
		return fmt.Errorf("create order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	order.ID = id
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

func unmarshalNullable(raw []byte, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func nonNilHistory(h []domain.HistoryEntry) []domain.HistoryEntry {
	if h == nil {
		return []domain.HistoryEntry{}
	}
	return h
}
