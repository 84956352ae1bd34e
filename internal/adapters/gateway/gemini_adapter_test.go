package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commerce-agent/internal/core/domain"
)

func TestToGeminiRequest(t *testing.T) {
	req := toGeminiRequest([]domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "persona"},
		{Role: domain.RoleSystem, Content: "comment rules"},
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "hello"},
		{Role: domain.RoleUser, ImageURLs: []string{"https://cdn/x.jpg"}},
	})

	require.NotNil(t, req.SystemInstruction)
	assert.Equal(t, "persona\n\ncomment rules", req.SystemInstruction.Parts[0].Text)
	require.Len(t, req.Contents, 3)
	assert.Equal(t, "user", req.Contents[0].Role)
	assert.Equal(t, "model", req.Contents[1].Role)
	require.Len(t, req.Contents[2].Parts, 1)
	assert.Equal(t, "https://cdn/x.jpg", req.Contents[2].Parts[0].FileData.FileURI)
}

func TestGeminiAdapter_Complete(t *testing.T) {
	var gotPath, gotKey string
	var gotBody geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"দাম "},{"text":"৫০০ টাকা"}]}}]}`))
	}))
	defer srv.Close()

	content, err := NewGeminiAdapter(srv.URL).Complete(context.Background(),
		domain.AICredential{Provider: domain.ProviderGemini, APIKey: "AIza-test"},
		[]domain.ChatMessage{
			{Role: domain.RoleSystem, Content: "persona"},
			{Role: domain.RoleUser, Content: "দাম কত?"},
		}, false)

	require.NoError(t, err)
	assert.Equal(t, "দাম ৫০০ টাকা", content)
	assert.Equal(t, "/models/gemini-1.5-flash:generateContent", gotPath)
	assert.Equal(t, "AIza-test", gotKey)
	require.Len(t, gotBody.Contents, 1)
	assert.Equal(t, "দাম কত?", gotBody.Contents[0].Parts[0].Text)
}

func TestGeminiAdapter_MediaModelAndOverride(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer srv.Close()

	adapter := NewGeminiAdapter(srv.URL)
	msgs := []domain.ChatMessage{{Role: domain.RoleUser, Content: "x"}}

	_, err := adapter.Complete(context.Background(), domain.AICredential{APIKey: "k"}, msgs, true)
	require.NoError(t, err)
	_, err = adapter.Complete(context.Background(), domain.AICredential{APIKey: "k", Model: "gemini-2.0-flash"}, msgs, true)
	require.NoError(t, err)
	_, err = adapter.Complete(context.Background(), domain.AICredential{APIKey: "k", Model: "gemini-2.0-flash"}, msgs, false)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/models/gemini-1.5-pro:generateContent",
		"/models/gemini-1.5-pro:generateContent",
		"/models/gemini-2.0-flash:generateContent",
	}, paths)
}

func TestGeminiAdapter_Errors(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		_, err := NewGeminiAdapter("").Complete(context.Background(), domain.AICredential{}, nil, false)
		assert.ErrorContains(t, err, "missing API key")
	})

	t.Run("non-2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"quota"}}`))
		}))
		defer srv.Close()

		_, err := NewGeminiAdapter(srv.URL).Complete(context.Background(), domain.AICredential{APIKey: "k"}, nil, false)
		assert.ErrorContains(t, err, "gemini api error 429")
	})

	t.Run("no candidates", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"candidates":[]}`))
		}))
		defer srv.Close()

		_, err := NewGeminiAdapter(srv.URL).Complete(context.Background(), domain.AICredential{APIKey: "k"}, nil, false)
		assert.ErrorContains(t, err, "no candidates")
	})
}
