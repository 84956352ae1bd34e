package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"commerce-agent/internal/core/domain"
)

const defaultMaxTokens = 1024

// OpenAIAdapter completes chats against an OpenAI-compatible API.
// The same adapter serves OpenAI itself and the managed gateway, which differ only in base URL and models.
type OpenAIAdapter struct {
	baseURL    string
	textModel  string
	mediaModel string
	maxTokens  int
}

// NewOpenAIAdapter creates an adapter. An empty baseURL keeps the go-openai default.
func NewOpenAIAdapter(baseURL, textModel, mediaModel string) *OpenAIAdapter {
	return &OpenAIAdapter{
		baseURL:    baseURL,
		textModel:  textModel,
		mediaModel: mediaModel,
		maxTokens:  defaultMaxTokens,
	}
}

// NewOpenAI returns the adapter for the public OpenAI API
func NewOpenAI(baseURL string) *OpenAIAdapter {
	return NewOpenAIAdapter(baseURL, "gpt-4o-mini", "gpt-4o")
}

// Complete sends messages and returns the first choice's content
func (a *OpenAIAdapter) Complete(ctx context.Context, cred domain.AICredential, messages []domain.ChatMessage, hasMedia bool) (string, error) {
	if cred.APIKey == "" {
		return "", errors.New("missing API key")
	}

	cfg := openai.DefaultConfig(cred.APIKey)
	switch {
	case cred.BaseURL != "":
		cfg.BaseURL = cred.BaseURL
	case a.baseURL != "":
		cfg.BaseURL = a.baseURL
	}
	client := openai.NewClientWithConfig(cfg)

	model := selectModel(cred, a.textModel, a.mediaModel, hasMedia)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     model,
		Messages:  toOpenAIMessages(messages),
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned by model %s", model)
	}
	return resp.Choices[0].Message.Content, nil
}

// selectModel picks the media model for requests carrying images. A credential model
// only replaces the text model so media requests keep the larger model.
func selectModel(cred domain.AICredential, textModel, mediaModel string, hasMedia bool) string {
	if hasMedia {
		return mediaModel
	}
	if cred.Model != "" {
		return cred.Model
	}
	return textModel
}

// toOpenAIMessages converts chat messages; image URLs become image_url parts
func toOpenAIMessages(messages []domain.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		if len(msg.ImageURLs) == 0 {
			out[i] = openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content}
			continue
		}

		parts := make([]openai.ChatMessagePart, 0, len(msg.ImageURLs)+1)
		if msg.Content != "" {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: msg.Content,
			})
		}
		for _, u := range msg.ImageURLs {
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: u},
			})
		}
		out[i] = openai.ChatCompletionMessage{Role: msg.Role, MultiContent: parts}
	}
	return out
}
