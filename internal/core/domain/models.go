// Package domain contains core business entities
// Following Hexagonal Architecture: These models are infrastructure-agnostic
package domain

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by repositories when a lookup has no row
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict is returned when a conditional conversation update lost a race
	ErrVersionConflict = errors.New("conversation version conflict")

	// ErrMalformedPayload is returned when an inbound webhook body is not valid JSON
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

// Platform constants
const (
	PlatformFacebook = "facebook"
)

// PageConfig holds the automation settings for one managed page
// Exactly one row per (owner, page). Never hard-deleted, toggled via Enabled.
type PageConfig struct {
	ID                  int64         `json:"id" db:"id"`
	OwnerID             string        `json:"owner_id" db:"owner_id"`
	PageID              string        `json:"page_id" db:"page_id"`
	Enabled             bool          `json:"enabled" db:"enabled"`
	BusinessDescription string        `json:"business_description" db:"business_description"`
	ProductSummary      string        `json:"product_summary" db:"product_summary"`
	Tone                string        `json:"tone" db:"tone"`
	CustomInstructions  string        `json:"custom_instructions" db:"custom_instructions"`
	Language            string        `json:"language" db:"language"` // "bn" or "en"
	Selling             SellingRules  `json:"selling_rules" db:"selling_rules"`
	Behavior            BehaviorRules `json:"behavior_rules" db:"behavior_rules"`
	Payment             PaymentInfo   `json:"payment_info" db:"payment_info"`
	Delivery            DeliveryInfo  `json:"delivery_info" db:"delivery_info"`
}

// SellingRules controls how the agent sells
type SellingRules struct {
	ShowPriceFirst     bool     `json:"show_price_first,omitempty"`
	BargainingEnabled  bool     `json:"bargaining_enabled,omitempty"`
	MaxDiscountPercent *float64 `json:"max_discount_percent,omitempty"`
	UpsellEnabled      bool     `json:"upsell_enabled,omitempty"`
	TakeOrders         bool     `json:"take_orders,omitempty"`
}

// BehaviorRules controls conversational behaviour and comment moderation
type BehaviorRules struct {
	ReplyToComments      bool `json:"reply_to_comments,omitempty"`
	HideNegativeComments bool `json:"hide_negative_comments,omitempty"`
	AutoReact            bool `json:"auto_react,omitempty"`
	UseEmoji             bool `json:"use_emoji,omitempty"`
	ShortReplies         bool `json:"short_replies,omitempty"`
	AskForPhone          bool `json:"ask_for_phone,omitempty"`
}

// PaymentInfo lists accepted payment channels
type PaymentInfo struct {
	CashOnDelivery bool   `json:"cash_on_delivery,omitempty"`
	BkashNumber    string `json:"bkash_number,omitempty"`
	NagadNumber    string `json:"nagad_number,omitempty"`
	BankDetails    string `json:"bank_details,omitempty"`
}

// IsEmpty reports whether no payment channel is configured
func (p PaymentInfo) IsEmpty() bool {
	return !p.CashOnDelivery && p.BkashNumber == "" && p.NagadNumber == "" && p.BankDetails == ""
}

// DeliveryInfo describes shipping charges and timing
type DeliveryInfo struct {
	InsideDhakaCharge  *float64 `json:"inside_dhaka_charge,omitempty"`
	OutsideDhakaCharge *float64 `json:"outside_dhaka_charge,omitempty"`
	EstimatedDays      string   `json:"estimated_days,omitempty"`
	FreeDeliveryAbove  *float64 `json:"free_delivery_above,omitempty"`
}

// IsEmpty reports whether no delivery detail is configured
func (d DeliveryInfo) IsEmpty() bool {
	return d.InsideDhakaCharge == nil && d.OutsideDhakaCharge == nil &&
		d.EstimatedDays == "" && d.FreeDeliveryAbove == nil
}

// ConnectedAccount is a page connection holding the platform access token
type ConnectedAccount struct {
	ID          int64  `json:"id" db:"id"`
	OwnerID     string `json:"owner_id" db:"owner_id"`
	Platform    string `json:"platform" db:"platform"`
	ExternalID  string `json:"external_id" db:"external_id"` // Facebook Page ID
	AccessToken string `json:"-" db:"access_token"`          // Never expose in JSON
	IsActive    bool   `json:"is_active" db:"is_active"`
}

// Conversation states
const (
	ConversationStateActive = "active"
)

// Conversation roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MaxHistoryEntries caps the rolling conversation memory
const MaxHistoryEntries = 20

// HistoryEntry is one role-tagged turn in a conversation
type HistoryEntry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the rolling exchange state for one (page, sender) pair
type Conversation struct {
	ID             int64          `json:"id" db:"id"`
	PageID         string         `json:"page_id" db:"page_id"`
	SenderID       string         `json:"sender_id" db:"sender_id"`
	SenderName     string         `json:"sender_name,omitempty" db:"sender_name"`
	History        []HistoryEntry `json:"history" db:"history"`
	State          string         `json:"state" db:"state"`
	MessageCount   int            `json:"message_count" db:"message_count"`
	LastActivityAt time.Time      `json:"last_activity_at" db:"last_activity_at"`
	Version        int64          `json:"version" db:"version"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// AppendTurn appends a user/assistant pair and truncates to the most recent entries
func (c *Conversation) AppendTurn(user, assistant string, now time.Time) {
	c.History = append(c.History,
		HistoryEntry{Role: RoleUser, Content: user, Timestamp: now},
		HistoryEntry{Role: RoleAssistant, Content: assistant, Timestamp: now},
	)
	if len(c.History) > MaxHistoryEntries {
		c.History = append([]HistoryEntry(nil), c.History[len(c.History)-MaxHistoryEntries:]...)
	}
	c.MessageCount++
	c.LastActivityAt = now
}

// Execution log statuses
const (
	ExecutionStatusSuccess = "success"
	ExecutionStatusFailed  = "failed"
)

// Execution log event types
const (
	EventMessageReply    = "message_reply"
	EventCommentReply    = "comment_reply"
	EventCommentHidden   = "comment_hidden"
	EventCommentReaction = "comment_reaction"
)

// ExecutionLogEntry is the append-only audit record of one automated action
type ExecutionLogEntry struct {
	ID            string    `json:"id" db:"id"`
	OwnerID       string    `json:"owner_id" db:"owner_id"`
	EventType     string    `json:"event_type" db:"event_type"`
	Status        string    `json:"status" db:"status"`
	Platform      string    `json:"platform" db:"platform"`
	DurationMs    int64     `json:"duration_ms" db:"duration_ms"`
	InputSnippet  string    `json:"input_snippet" db:"input_snippet"`
	OutputSnippet string    `json:"output_snippet" db:"output_snippet"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// UserProfile is the subset of the platform profile we use
type UserProfile struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Name      string `json:"name"`
}

// DisplayName returns the best available display name
func (p *UserProfile) DisplayName() string {
	if p == nil {
		return ""
	}
	if p.Name != "" {
		return p.Name
	}
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	}
	return p.LastName
}
