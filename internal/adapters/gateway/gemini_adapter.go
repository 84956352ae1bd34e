package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"commerce-agent/internal/core/domain"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiAdapter calls the Gemini generateContent REST endpoint
type GeminiAdapter struct {
	httpClient *http.Client
	baseURL    string
	textModel  string
	mediaModel string
}

// NewGeminiAdapter creates an adapter. The per-call deadline comes from ctx.
func NewGeminiAdapter(baseURL string) *GeminiAdapter {
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &GeminiAdapter{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		textModel:  "gemini-1.5-flash",
		mediaModel: "gemini-1.5-pro",
	}
}

type geminiPart struct {
	Text     string          `json:"text,omitempty"`
	FileData *geminiFileData `json:"fileData,omitempty"`
}

type geminiFileData struct {
	MimeType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Complete sends messages to Gemini. System messages are hoisted into systemInstruction
// and the assistant role is renamed to "model".
func (a *GeminiAdapter) Complete(ctx context.Context, cred domain.AICredential, messages []domain.ChatMessage, hasMedia bool) (string, error) {
	if cred.APIKey == "" {
		return "", errors.New("missing API key")
	}

	model := selectModel(cred, a.textModel, a.mediaModel, hasMedia)
	base := a.baseURL
	if cred.BaseURL != "" {
		base = strings.TrimRight(cred.BaseURL, "/")
	}

	data, err := json.Marshal(toGeminiRequest(messages))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", base, model, url.QueryEscape(cred.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("gemini api error %d: %s", resp.StatusCode, string(body))
	}

	var out geminiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Candidates) == 0 {
		return "", errors.New("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

func toGeminiRequest(messages []domain.ChatMessage) geminiRequest {
	var req geminiRequest
	var system []string
	for _, msg := range messages {
		if msg.Role == domain.RoleSystem {
			system = append(system, msg.Content)
			continue
		}

		role := "user"
		if msg.Role == domain.RoleAssistant {
			role = "model"
		}
		c := geminiContent{Role: role}
		if msg.Content != "" {
			c.Parts = append(c.Parts, geminiPart{Text: msg.Content})
		}
		for _, u := range msg.ImageURLs {
			c.Parts = append(c.Parts, geminiPart{FileData: &geminiFileData{MimeType: "image/jpeg", FileURI: u}})
		}
		if len(c.Parts) == 0 {
			c.Parts = []geminiPart{{Text: ""}}
		}
		req.Contents = append(req.Contents, c)
	}
	if len(system) > 0 {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: strings.Join(system, "\n\n")}}}
	}
	return req
}
