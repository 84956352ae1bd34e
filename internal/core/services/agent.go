package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"commerce-agent/internal/adapters/dto"
	"commerce-agent/internal/core/domain"
	"commerce-agent/internal/core/ports"
)

const commentContext = `You are replying publicly to a comment on one of the page's posts.
Keep it short and friendly. For prices of specific orders or personal details, invite the customer to message the page.`

// ReasonEmptyReply is returned when the AI produced nothing to send
const ReasonEmptyReply = "empty_ai_reply"

// Attachment is an inbound media item
type Attachment struct {
	Type string
	URL  string
}

// InboundMessage is a direct message addressed to a page
type InboundMessage struct {
	PageID      string
	SenderID    string
	SenderName  string
	Text        string
	MessageType string
	Attachments []Attachment
}

// InboundComment is a new comment on one of the page's posts
type InboundComment struct {
	PageID     string
	CommentID  string
	PostID     string
	SenderID   string
	SenderName string
	Text       string
}

// AgentResult is the outcome of processing one event
type AgentResult struct {
	Success          bool
	Reply            string
	Provider         domain.AIProvider
	ConversationID   int64
	Reason           string
	Sentiment        domain.Sentiment
	Delivered        bool
	ProcessingTimeMs int64
}

// Agent orchestrates the response pipeline for messages and comments
type Agent struct {
	pages    *PageResolver
	creds    *CredentialResolver
	gateway  *AIGateway
	platform ports.PlatformClient
	store    *ConversationStore
	logger   *ExecutionLogger
	orders   ports.OrderRepository
	panic    *PanicMode
}

// NewAgent wires the pipeline. orders and panicMode may be nil.
func NewAgent(
	pages *PageResolver,
	creds *CredentialResolver,
	gateway *AIGateway,
	platform ports.PlatformClient,
	store *ConversationStore,
	logger *ExecutionLogger,
	orders ports.OrderRepository,
	panicMode *PanicMode,
) *Agent {
	return &Agent{
		pages:    pages,
		creds:    creds,
		gateway:  gateway,
		platform: platform,
		store:    store,
		logger:   logger,
		orders:   orders,
		panic:    panicMode,
	}
}

// Invoke runs the pipeline for a direct invocation request
func (a *Agent) Invoke(ctx context.Context, req dto.InvokeRequest) (*AgentResult, error) {
	if req.IsComment {
		return a.HandleComment(ctx, InboundComment{
			PageID:     req.PageID,
			CommentID:  req.CommentID,
			PostID:     req.PostID,
			SenderID:   req.SenderID,
			SenderName: req.SenderName,
			Text:       req.MessageText,
		})
	}

	msg := InboundMessage{
		PageID:      req.PageID,
		SenderID:    req.SenderID,
		SenderName:  req.SenderName,
		Text:        req.MessageText,
		MessageType: req.MessageType,
	}
	for _, att := range req.Attachments {
		msg.Attachments = append(msg.Attachments, Attachment{Type: att.Type, URL: att.Payload.URL})
	}
	return a.HandleMessage(ctx, msg)
}

// HandleMessage answers one direct message
func (a *Agent) HandleMessage(ctx context.Context, msg InboundMessage) (*AgentResult, error) {
	start := time.Now()
	done := func(r *AgentResult) (*AgentResult, error) {
		r.ProcessingTimeMs = time.Since(start).Milliseconds()
		return r, nil
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" && len(msg.Attachments) == 0 {
		return done(&AgentResult{Reason: ReasonEmptyMessage})
	}

	page, reason, err := a.pages.Resolve(ctx, msg.PageID)
	if err != nil {
		return nil, err
	}
	if page == nil {
		slog.Info("Automation skipped", "page_id", msg.PageID, "reason", reason)
		return done(&AgentResult{Reason: reason})
	}
	if a.panic.IsActive() {
		return done(&AgentResult{Reason: ReasonAIPaused})
	}

	ownerID := page.Config.OwnerID
	cred, err := a.creds.Resolve(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		slog.Info("No AI credential available", "page_id", msg.PageID, "owner_id", ownerID)
		return done(&AgentResult{Reason: ReasonAIUnavailable})
	}

	a.platform.MarkSeen(ctx, page.AccessToken, msg.SenderID)
	a.platform.SetTyping(ctx, page.AccessToken, msg.SenderID, true)

	unlock := a.store.Lock(msg.PageID, msg.SenderID)
	defer unlock()

	conv, err := a.store.GetOrCreate(ctx, msg.PageID, msg.SenderID, msg.SenderName, page.AccessToken)
	if err != nil {
		a.platform.SetTyping(ctx, page.AccessToken, msg.SenderID, false)
		a.logger.Record(ctx, ownerID, domain.EventMessageReply, domain.ExecutionStatusFailed,
			domain.PlatformFacebook, time.Since(start).Milliseconds(), text, err.Error())
		return nil, err
	}

	userContent, imageURLs := describeInbound(text, msg.Attachments)
	messages := make([]domain.ChatMessage, 0, len(conv.History)+2)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: BuildSystemPrompt(page.Config)})
	for _, h := range conv.History {
		messages = append(messages, domain.ChatMessage{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: userContent, ImageURLs: imageURLs})

	resp, err := a.gateway.Call(ctx, domain.AIRequest{
		Messages:   messages,
		Credential: *cred,
		HasMedia:   len(msg.Attachments) > 0,
	})
	if err != nil {
		a.platform.SetTyping(ctx, page.AccessToken, msg.SenderID, false)
		a.logger.Record(ctx, ownerID, domain.EventMessageReply, domain.ExecutionStatusFailed,
			domain.PlatformFacebook, time.Since(start).Milliseconds(), userContent, err.Error())
		return nil, fmt.Errorf("generate reply: %w", err)
	}

	reply := strings.TrimSpace(resp.Content)
	if page.Config.Selling.TakeOrders {
		reply = a.captureOrder(ctx, page.Config, conv, reply)
	}
	if reply == "" {
		a.platform.SetTyping(ctx, page.AccessToken, msg.SenderID, false)
		a.logger.Record(ctx, ownerID, domain.EventMessageReply, domain.ExecutionStatusFailed,
			domain.PlatformFacebook, time.Since(start).Milliseconds(), userContent, "empty reply from "+string(resp.Provider))
		return done(&AgentResult{Reason: ReasonEmptyReply, Provider: resp.Provider, ConversationID: conv.ID})
	}

	delivered := a.platform.SendMessage(ctx, page.AccessToken, msg.SenderID, reply)
	a.platform.SetTyping(ctx, page.AccessToken, msg.SenderID, false)

	if err := a.store.AppendTurn(ctx, conv, userContent, reply); err != nil {
		slog.Error("Failed to append conversation turn",
			"error", err,
			"conversation_id", conv.ID,
		)
	}

	status := domain.ExecutionStatusSuccess
	if !delivered {
		status = domain.ExecutionStatusFailed
	}
	a.logger.Record(ctx, ownerID, domain.EventMessageReply, status,
		domain.PlatformFacebook, time.Since(start).Milliseconds(), userContent, reply)

	slog.Info("Message answered",
		"page_id", msg.PageID,
		"sender_id", msg.SenderID,
		"provider", resp.Provider,
		"fell_back", resp.FellBack,
		"delivered", delivered,
	)

	return done(&AgentResult{
		Success:        true,
		Reply:          reply,
		Provider:       resp.Provider,
		ConversationID: conv.ID,
		Delivered:      delivered,
	})
}

// HandleComment applies the sentiment gate to one comment and replies when allowed
func (a *Agent) HandleComment(ctx context.Context, c InboundComment) (*AgentResult, error) {
	start := time.Now()
	done := func(r *AgentResult) (*AgentResult, error) {
		r.ProcessingTimeMs = time.Since(start).Milliseconds()
		return r, nil
	}

	text := strings.TrimSpace(c.Text)
	if text == "" {
		return done(&AgentResult{Reason: ReasonEmptyMessage})
	}

	page, reason, err := a.pages.Resolve(ctx, c.PageID)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return done(&AgentResult{Reason: reason})
	}

	ownerID := page.Config.OwnerID
	behavior := page.Config.Behavior
	sentiment := ClassifySentiment(text)

	if !sentiment.ShouldReply {
		if behavior.HideNegativeComments {
			hidden := a.platform.HideComment(ctx, page.AccessToken, c.CommentID)
			a.logger.Record(ctx, ownerID, domain.EventCommentHidden, statusOf(hidden),
				domain.PlatformFacebook, time.Since(start).Milliseconds(), text, "hidden comment "+c.CommentID)
		}
		slog.Info("Negative comment not answered",
			"page_id", c.PageID,
			"comment_id", c.CommentID,
			"hide_enabled", behavior.HideNegativeComments,
		)
		return done(&AgentResult{Success: true, Reason: ReasonNegativeComment, Sentiment: sentiment.Sentiment})
	}

	if behavior.AutoReact && sentiment.Reaction != domain.ReactionNone {
		reacted := a.platform.ReactToComment(ctx, page.AccessToken, c.CommentID, sentiment.Reaction)
		a.logger.Record(ctx, ownerID, domain.EventCommentReaction, statusOf(reacted),
			domain.PlatformFacebook, time.Since(start).Milliseconds(), text, string(sentiment.Reaction))
	}

	if !behavior.ReplyToComments {
		return done(&AgentResult{Success: true, Reason: ReasonCommentRepliesOff, Sentiment: sentiment.Sentiment})
	}
	if a.panic.IsActive() {
		return done(&AgentResult{Reason: ReasonAIPaused, Sentiment: sentiment.Sentiment})
	}

	cred, err := a.creds.Resolve(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return done(&AgentResult{Reason: ReasonAIUnavailable, Sentiment: sentiment.Sentiment})
	}

	author := c.SenderName
	if author == "" {
		author = "A customer"
	}
	messages := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: BuildSystemPrompt(page.Config) + "\n\n" + commentContext},
		{Role: domain.RoleUser, Content: fmt.Sprintf("%s commented: %s", author, text)},
	}

	resp, err := a.gateway.Call(ctx, domain.AIRequest{Messages: messages, Credential: *cred})
	if err != nil {
		a.logger.Record(ctx, ownerID, domain.EventCommentReply, domain.ExecutionStatusFailed,
			domain.PlatformFacebook, time.Since(start).Milliseconds(), text, err.Error())
		return nil, fmt.Errorf("generate comment reply: %w", err)
	}

	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		a.logger.Record(ctx, ownerID, domain.EventCommentReply, domain.ExecutionStatusFailed,
			domain.PlatformFacebook, time.Since(start).Milliseconds(), text, "empty reply from "+string(resp.Provider))
		return done(&AgentResult{Reason: ReasonEmptyReply, Provider: resp.Provider, Sentiment: sentiment.Sentiment})
	}

	delivered := a.platform.ReplyToComment(ctx, page.AccessToken, c.CommentID, reply)
	a.logger.Record(ctx, ownerID, domain.EventCommentReply, statusOf(delivered),
		domain.PlatformFacebook, time.Since(start).Milliseconds(), text, reply)

	return done(&AgentResult{
		Success:   true,
		Reply:     reply,
		Provider:  resp.Provider,
		Sentiment: sentiment.Sentiment,
		Delivered: delivered,
	})
}

// captureOrder strips an order block from reply and persists it. The cleaned reply is returned.
func (a *Agent) captureOrder(ctx context.Context, cfg *domain.PageConfig, conv *domain.Conversation, reply string) string {
	cleaned, raw, found := extractOrderBlock(reply)
	if !found {
		return reply
	}

	var order domain.Order
	if err := json.Unmarshal([]byte(raw), &order); err != nil {
		slog.Warn("Unparseable order block in AI reply", "error", err, "conversation_id", conv.ID)
		return cleaned
	}
	order.OwnerID = cfg.OwnerID
	order.PageID = cfg.PageID
	order.ConversationID = conv.ID
	order.Status = domain.OrderStatusPending
	order.Total = order.ComputeTotal()
	order.CreatedAt = time.Now()

	if err := order.Validate(); err != nil {
		slog.Warn("Rejected order from AI reply", "error", err, "conversation_id", conv.ID)
		return cleaned
	}
	if a.orders == nil {
		return cleaned
	}
	if err := a.orders.CreateOrder(ctx, &order); err != nil {
		slog.Error("Failed to save order", "error", err, "conversation_id", conv.ID)
		return cleaned
	}

	slog.Info("Order captured from conversation",
		"order_id", order.ID,
		"conversation_id", conv.ID,
		"total", order.Total,
	)
	return cleaned
}

func extractOrderBlock(reply string) (cleaned, raw string, found bool) {
	start := strings.Index(reply, OrderBlockStart)
	if start < 0 {
		return reply, "", false
	}
	end := strings.Index(reply[start:], OrderBlockEnd)
	if end < 0 {
		return reply, "", false
	}
	end += start
	raw = strings.TrimSpace(reply[start+len(OrderBlockStart) : end])
	cleaned = strings.TrimSpace(reply[:start] + reply[end+len(OrderBlockEnd):])
	return cleaned, raw, true
}

func describeInbound(text string, attachments []Attachment) (string, []string) {
	var images []string
	for _, att := range attachments {
		if att.Type == "image" && att.URL != "" {
			images = append(images, att.URL)
		}
	}
	if len(attachments) == 0 {
		return text, nil
	}
	note := fmt.Sprintf("[customer sent %d attachment(s)]", len(attachments))
	if text == "" {
		return note, images
	}
	return text + "\n" + note, images
}

func statusOf(ok bool) string {
	if ok {
		return domain.ExecutionStatusSuccess
	}
	return domain.ExecutionStatusFailed
}
