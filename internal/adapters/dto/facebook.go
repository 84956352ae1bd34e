// Package dto contains data transfer objects for external APIs
// Separating DTOs from handlers prevents import cycles
package dto

// FacebookWebhookRequest is the top-level webhook payload from Facebook
// Ref: https://developers.facebook.com/docs/messenger-platform/webhooks
type FacebookWebhookRequest struct {
	Object string          `json:"object"` // "page" for Messenger and feed events
	Entry  []FacebookEntry `json:"entry"`
}

// FacebookEntry represents a single page's webhook events.
// Messenger events arrive in Messaging, page feed events in Changes.
type FacebookEntry struct {
	ID        string              `json:"id"`   // Page ID
	Time      int64               `json:"time"` // Unix milliseconds
	Messaging []FacebookMessaging `json:"messaging,omitempty"`
	Changes   []FacebookChange    `json:"changes,omitempty"`
}

// FacebookMessaging represents a single messaging event
// Can be a message, delivery receipt, read receipt, or echo
type FacebookMessaging struct {
	Sender    FacebookUser      `json:"sender"`
	Recipient FacebookUser      `json:"recipient"`
	Timestamp int64             `json:"timestamp"`
	Message   *FacebookMessage  `json:"message,omitempty"`
	Delivery  *FacebookDelivery `json:"delivery,omitempty"`
	Read      *FacebookRead     `json:"read,omitempty"`
}

// FacebookUser represents a sender or recipient (PSID)
type FacebookUser struct {
	ID string `json:"id"`
}

// FacebookMessage represents the actual message content
type FacebookMessage struct {
	MID         string               `json:"mid"`
	Text        string               `json:"text"`
	Attachments []FacebookAttachment `json:"attachments,omitempty"`

	// IsEcho marks messages sent BY the page, which must never be answered
	IsEcho bool `json:"is_echo,omitempty"`
}

// FacebookAttachment represents media attachments
type FacebookAttachment struct {
	Type    string                    `json:"type"` // "image", "video", "audio", "file"
	Payload FacebookAttachmentPayload `json:"payload"`
}

// FacebookAttachmentPayload contains attachment URL and metadata
type FacebookAttachmentPayload struct {
	URL string `json:"url"`
}

// FacebookDelivery represents a delivery confirmation
type FacebookDelivery struct {
	MIDs      []string `json:"mids"`
	Watermark int64    `json:"watermark"`
}

// FacebookRead represents a read confirmation
type FacebookRead struct {
	Watermark int64 `json:"watermark"`
}

// FacebookChange is a page field-change event (feed, mention, ...)
type FacebookChange struct {
	Field string              `json:"field"`
	Value FacebookChangeValue `json:"value"`
}

// FacebookChangeValue carries the feed item. Only comment fields are mapped.
type FacebookChangeValue struct {
	Item        string          `json:"item"` // "comment", "post", "reaction", ...
	Verb        string          `json:"verb"` // "add", "edited", "remove", ...
	CommentID   string          `json:"comment_id"`
	PostID      string          `json:"post_id"`
	ParentID    string          `json:"parent_id"`
	Message     string          `json:"message"`
	From        FacebookProfile `json:"from"`
	CreatedTime int64           `json:"created_time"`
}

// FacebookProfile is the author of a feed item
type FacebookProfile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IsUserMessage determines if this messaging event is an actual user message
// Returns false for: echo messages, delivery receipts, read receipts
func (m *FacebookMessaging) IsUserMessage() bool {
	if m.Message == nil {
		return false
	}
	if m.Message.IsEcho {
		return false
	}
	if m.Delivery != nil || m.Read != nil {
		return false
	}
	return true
}

// GetMessageID extracts the message ID for deduplication
func (m *FacebookMessaging) GetMessageID() string {
	if m.Message != nil {
		return m.Message.MID
	}
	return ""
}

// GetMessageType determines the type of message
func (m *FacebookMessaging) GetMessageType() string {
	if m.Message == nil {
		return ""
	}
	if len(m.Message.Attachments) > 0 {
		return m.Message.Attachments[0].Type
	}
	if m.Message.Text != "" {
		return "text"
	}
	return "unknown"
}

// IsComment reports whether the change is a feed comment event
func (c *FacebookChange) IsComment() bool {
	return c.Field == "feed" && c.Value.Item == "comment"
}

// IsNewComment reports whether the comment was just added (not edited or removed)
func (c *FacebookChange) IsNewComment() bool {
	return c.IsComment() && (c.Value.Verb == "" || c.Value.Verb == "add")
}
