package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"commerce-agent/internal/adapters/dto"
	"commerce-agent/internal/core/services"
)

// Invoker runs the agent pipeline for a direct request
type Invoker interface {
	Invoke(ctx context.Context, req dto.InvokeRequest) (*services.AgentResult, error)
}

// InvokeHandler exposes the agent pipeline for manual triggering and testing
type InvokeHandler struct {
	agent Invoker
}

// NewInvokeHandler creates a new invoke handler
func NewInvokeHandler(agent Invoker) *InvokeHandler {
	return &InvokeHandler{agent: agent}
}

// HandleInvoke runs one message or comment through the pipeline
// POST /api/agent/invoke
func (h *InvokeHandler) HandleInvoke(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req dto.InvokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.InvokeResponse{Error: "invalid JSON body"})
		return
	}
	if req.PageID == "" || req.SenderID == "" || strings.TrimSpace(req.MessageText) == "" {
		writeJSON(w, http.StatusBadRequest, dto.InvokeResponse{
			Error: "pageId, senderId and messageText are required",
		})
		return
	}
	if req.IsComment && req.CommentID == "" {
		writeJSON(w, http.StatusBadRequest, dto.InvokeResponse{Error: "commentId is required for comments"})
		return
	}

	result, err := h.agent.Invoke(context.WithoutCancel(r.Context()), req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		slog.Error("Agent invocation failed",
			"error", err,
			"page_id", req.PageID,
			"sender_id", req.SenderID,
			"correlation_id", GetCorrelationID(r.Context()),
		)
		writeJSON(w, http.StatusInternalServerError, dto.InvokeResponse{
			Success:        false,
			Error:          err.Error(),
			ProcessingTime: elapsed,
		})
		return
	}

	writeJSON(w, http.StatusOK, dto.InvokeResponse{
		Success:        result.Success,
		Reply:          result.Reply,
		Provider:       string(result.Provider),
		ConversationID: result.ConversationID,
		Reason:         result.Reason,
		ProcessingTime: elapsed,
	})
}
