// Package gateway implements external API adapters
// Following Hexagonal Architecture: Outbound adapters for external services
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"commerce-agent/internal/core/domain"
	"commerce-agent/internal/metrics"
)

const (
	defaultGraphBaseURL = "https://graph.facebook.com"
	defaultGraphVersion = "v19.0"
)

// Graph API failure classes
var (
	// ErrTokenExpired indicates the page access token is expired or invalid (code 190)
	ErrTokenExpired = errors.New("facebook access token expired or invalid")

	// ErrRateLimited indicates Facebook rate limit exceeded (code 4, 17, 32, 613)
	ErrRateLimited = errors.New("facebook rate limit exceeded")

	// ErrPermissionDenied indicates missing permissions (code 10, 200, 299)
	ErrPermissionDenied = errors.New("facebook permission denied")
)

// FacebookError represents an error from Facebook API
type FacebookError struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode"`
	FBTraceID    string `json:"fbtrace_id"`
}

// FacebookClient handles communication with Facebook Graph API.
// It implements ports.PlatformClient: no retries, failures are logged and reported as false.
type FacebookClient struct {
	httpClient *http.Client
	baseURL    string
	apiVersion string

	// OnTokenExpired is called when the Graph API rejects a token (code 190)
	OnTokenExpired func(ctx context.Context, accessToken string)
}

// NewFacebookClient creates a new Facebook API client. Empty arguments select the defaults.
func NewFacebookClient(baseURL, apiVersion string) *FacebookClient {
	if baseURL == "" {
		baseURL = defaultGraphBaseURL
	}
	if apiVersion == "" {
		apiVersion = defaultGraphVersion
	}
	return &FacebookClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiVersion: apiVersion,
	}
}

type sendMessageRequest struct {
	Recipient struct {
		ID string `json:"id"` // PSID (Page-Scoped ID)
	} `json:"recipient"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
	MessagingType string `json:"messaging_type"` // "RESPONSE" for replies
}

type senderActionRequest struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	SenderAction string `json:"sender_action"`
}

// SendMessage sends a text message to a Messenger user
func (c *FacebookClient) SendMessage(ctx context.Context, accessToken, recipientID, text string) bool {
	payload := sendMessageRequest{MessagingType: "RESPONSE"}
	payload.Recipient.ID = recipientID
	payload.Message.Text = text

	var resp struct {
		MessageID string `json:"message_id"`
	}
	if err := c.post(ctx, "send_message", accessToken, "me/messages", payload, &resp); err != nil {
		return false
	}

	slog.Info("Message sent successfully",
		"recipient_psid", recipientID,
		"message_id", resp.MessageID,
	)
	return true
}

// ReplyToComment posts a public reply under a comment
func (c *FacebookClient) ReplyToComment(ctx context.Context, accessToken, commentID, text string) bool {
	body := map[string]string{"message": text}
	return c.post(ctx, "reply_comment", accessToken, commentID+"/comments", body, nil) == nil
}

// ReactToComment reacts to a comment as the page.
// Pages can only "like" comments through the Graph API, so every reaction maps to a like.
func (c *FacebookClient) ReactToComment(ctx context.Context, accessToken, commentID string, reaction domain.Reaction) bool {
	if reaction == domain.ReactionNone || reaction == "" {
		return true
	}
	slog.Debug("Reacting to comment", "comment_id", commentID, "reaction", reaction)
	return c.post(ctx, "react_comment", accessToken, commentID+"/likes", nil, nil) == nil
}

// HideComment hides a comment from everyone except its author and the page
func (c *FacebookClient) HideComment(ctx context.Context, accessToken, commentID string) bool {
	body := map[string]bool{"is_hidden": true}
	return c.post(ctx, "hide_comment", accessToken, commentID, body, nil) == nil
}

// GetUserProfile fetches a user's display fields
func (c *FacebookClient) GetUserProfile(ctx context.Context, accessToken, userID string) (*domain.UserProfile, bool) {
	q := url.Values{}
	q.Set("fields", "first_name,last_name,name")

	var profile domain.UserProfile
	if err := c.do(ctx, "get_profile", http.MethodGet, accessToken, userID, q, nil, &profile); err != nil {
		return nil, false
	}
	if profile.ID == "" {
		profile.ID = userID
	}
	return &profile, true
}

// MarkSeen marks the conversation as read
func (c *FacebookClient) MarkSeen(ctx context.Context, accessToken, recipientID string) bool {
	return c.senderAction(ctx, accessToken, recipientID, "mark_seen")
}

// SetTyping toggles the "..." bubbles in the customer's Messenger
func (c *FacebookClient) SetTyping(ctx context.Context, accessToken, recipientID string, on bool) bool {
	action := "typing_off"
	if on {
		action = "typing_on"
	}
	return c.senderAction(ctx, accessToken, recipientID, action)
}

func (c *FacebookClient) senderAction(ctx context.Context, accessToken, recipientID, action string) bool {
	var payload senderActionRequest
	payload.Recipient.ID = recipientID
	payload.SenderAction = action
	return c.post(ctx, action, accessToken, "me/messages", payload, nil) == nil
}

func (c *FacebookClient) post(ctx context.Context, action, accessToken, path string, body, out any) error {
	return c.do(ctx, action, http.MethodPost, accessToken, path, nil, body, out)
}

// do performs one Graph API call, logs any failure and records the outcome
func (c *FacebookClient) do(ctx context.Context, action, method, accessToken, path string, query url.Values, body, out any) (err error) {
	defer func() {
		metrics.RecordPlatformAction(action, err == nil)
		if errors.Is(err, ErrTokenExpired) && c.OnTokenExpired != nil {
			c.OnTokenExpired(ctx, accessToken)
		}
	}()

	if query == nil {
		query = url.Values{}
	}
	query.Set("access_token", accessToken)
	endpoint := fmt.Sprintf("%s/%s/%s?%s", c.baseURL, c.apiVersion, path, query.Encode())

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("Failed to send request to Facebook",
			"error", err,
			"action", action,
		)
		return fmt.Errorf("facebook api request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("Failed to read Facebook response", "error", err, "action", action)
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return classifyGraphError(action, resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			// HTTP 200 means it worked
			slog.Warn("Failed to parse success response",
				"error", err,
				"action", action,
				"body", string(respBody),
			)
		}
	}
	return nil
}

// classifyGraphError maps a Graph API error body to one of the sentinel errors
func classifyGraphError(action string, status int, body []byte) error {
	var fbError struct {
		Error FacebookError `json:"error"`
	}
	if err := json.Unmarshal(body, &fbError); err != nil {
		slog.Error("Facebook API error (unparseable)",
			"action", action,
			"status_code", status,
			"body", string(body),
		)
		return fmt.Errorf("facebook api error %d: %s", status, string(body))
	}

	slog.Error("Facebook API error",
		"action", action,
		"status_code", status,
		"error_code", fbError.Error.Code,
		"error_message", fbError.Error.Message,
		"error_subcode", fbError.Error.ErrorSubcode,
		"fbtrace_id", fbError.Error.FBTraceID,
	)

	switch fbError.Error.Code {
	case 190:
		return ErrTokenExpired
	case 4, 17, 32, 613:
		return ErrRateLimited
	case 10, 200, 299:
		return ErrPermissionDenied
	case 100:
		return fmt.Errorf("invalid parameter: %s", fbError.Error.Message)
	default:
		return fmt.Errorf("facebook api error (code %d): %s", fbError.Error.Code, fbError.Error.Message)
	}
}
