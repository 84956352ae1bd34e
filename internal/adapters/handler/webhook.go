// Package handler implements HTTP request handlers
// Following Hexagonal Architecture: Adapters translate HTTP to domain logic
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"commerce-agent/internal/core/domain"
)

// WebhookProcessor consumes a verified webhook body
type WebhookProcessor interface {
	ProcessWebhook(ctx context.Context, payload []byte) error
}

// WebhookHandler handles Facebook webhook verification and events
type WebhookHandler struct {
	processor   WebhookProcessor
	appSecret   string // For HMAC signature validation, empty disables it
	verifyToken string // For webhook verification
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(processor WebhookProcessor, appSecret, verifyToken string) *WebhookHandler {
	return &WebhookHandler{
		processor:   processor,
		appSecret:   appSecret,
		verifyToken: verifyToken,
	}
}

// HandleFacebookVerify handles the GET subscription challenge
// Ref: https://developers.facebook.com/docs/messenger-platform/webhooks#verification
func (h *WebhookHandler) HandleFacebookVerify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token != "" && token == h.verifyToken {
		slog.Info("Webhook verification successful")
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}

	slog.Warn("Webhook verification failed",
		"mode", mode,
		"token_matches", false,
	)
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// HandleFacebookEvent validates the signature and processes the delivery to completion.
// The vendor only gets its 200 after every event has been handled.
func (h *WebhookHandler) HandleFacebookEvent(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("PANIC in webhook handler", "panic", rec)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		}
	}()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error("Failed to read webhook body", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to read body"})
		return
	}
	defer r.Body.Close()

	if !VerifySignature(body, r.Header.Get("X-Hub-Signature-256"), h.appSecret) {
		slog.Warn("Webhook signature validation failed")
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid signature"})
		return
	}

	// A vendor disconnect must not abort half-applied side effects
	ctx := context.WithoutCancel(r.Context())
	if err := h.processor.ProcessWebhook(ctx, body); err != nil {
		if errors.Is(err, domain.ErrMalformedPayload) {
			slog.Warn("Rejected malformed webhook", "error", err)
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		slog.Error("Webhook processing failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
