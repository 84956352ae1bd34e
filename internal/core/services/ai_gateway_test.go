package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"commerce-agent/internal/core/domain"
	"commerce-agent/internal/core/ports"
)

type staticManaged struct {
	cred *domain.AICredential
	err  error
}

func (s staticManaged) Managed(context.Context) (*domain.AICredential, error) {
	return s.cred, s.err
}

func newGatewayWithSource(source ManagedCredentialSource) (*AIGateway, *MockAIAdapter, *MockAIAdapter, *MockAIAdapter) {
	openai, gemini, managed := new(MockAIAdapter), new(MockAIAdapter), new(MockAIAdapter)
	gw := NewAIGateway(map[domain.AIProvider]ports.AIAdapter{
		domain.ProviderOpenAI:  openai,
		domain.ProviderGemini:  gemini,
		domain.ProviderManaged: managed,
	}, source, time.Second)
	return gw, openai, gemini, managed
}

func newTestGateway(fallbackKey string) (*AIGateway, *MockAIAdapter, *MockAIAdapter, *MockAIAdapter) {
	return newGatewayWithSource(staticManaged{cred: &domain.AICredential{APIKey: fallbackKey, BaseURL: "https://managed/v1"}})
}

var helloMessages = []domain.ChatMessage{
	{Role: domain.RoleSystem, Content: "be nice"},
	{Role: domain.RoleUser, Content: "hello"},
}

func TestAIGateway_PrimarySuccess(t *testing.T) {
	gw, _, gemini, managed := newTestGateway("managed-key")
	gemini.On("Complete", mock.Anything, mock.Anything, helloMessages, false).Return("hi", nil)

	resp, err := gw.Call(context.Background(), domain.AIRequest{
		Messages:   helloMessages,
		Credential: domain.AICredential{Provider: domain.ProviderGemini, APIKey: "AIza"},
	})

	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Content)
	assert.Equal(t, domain.ProviderGemini, resp.Provider)
	assert.False(t, resp.FellBack)
	managed.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAIGateway_FallbackReportsManaged(t *testing.T) {
	gw, openai, _, managed := newTestGateway("managed-key")
	openai.On("Complete", mock.Anything, mock.Anything, mock.Anything, true).Return("", errors.New("rate limited"))
	managed.On("Complete", mock.Anything, domain.AICredential{
		Provider: domain.ProviderManaged,
		APIKey:   "managed-key",
		BaseURL:  "https://managed/v1",
	}, helloMessages, true).Return("hello from managed", nil)

	resp, err := gw.Call(context.Background(), domain.AIRequest{
		Messages:   helloMessages,
		Credential: domain.AICredential{Provider: domain.ProviderOpenAI, APIKey: "sk"},
		HasMedia:   true,
	})

	require.NoError(t, err)
	assert.Equal(t, "hello from managed", resp.Content)
	assert.Equal(t, domain.ProviderManaged, resp.Provider)
	assert.True(t, resp.FellBack)
	openai.AssertNumberOfCalls(t, "Complete", 1)
	managed.AssertNumberOfCalls(t, "Complete", 1)
}

func TestAIGateway_NoFallbackFromManaged(t *testing.T) {
	gw, _, _, managed := newTestGateway("managed-key")
	managed.On("Complete", mock.Anything, mock.Anything, mock.Anything, false).Return("", errors.New("boom"))

	resp, err := gw.Call(context.Background(), domain.AIRequest{
		Messages:   helloMessages,
		Credential: domain.AICredential{Provider: domain.ProviderManaged, APIKey: "owner-managed"},
	})

	assert.Nil(t, resp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "managed")
	managed.AssertNumberOfCalls(t, "Complete", 1)
}

func TestAIGateway_NoFallbackWithoutKey(t *testing.T) {
	gw, openai, _, managed := newTestGateway("")
	openai.On("Complete", mock.Anything, mock.Anything, mock.Anything, false).Return("", errors.New("boom"))

	_, err := gw.Call(context.Background(), domain.AIRequest{
		Messages:   helloMessages,
		Credential: domain.AICredential{Provider: domain.ProviderOpenAI, APIKey: "sk"},
	})

	require.Error(t, err)
	managed.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAIGateway_BothFail(t *testing.T) {
	gw, openai, _, managed := newTestGateway("managed-key")
	openai.On("Complete", mock.Anything, mock.Anything, mock.Anything, false).Return("", errors.New("primary down"))
	managedErr := errors.New("managed down")
	managed.On("Complete", mock.Anything, mock.Anything, mock.Anything, false).Return("", managedErr)

	_, err := gw.Call(context.Background(), domain.AIRequest{
		Messages:   helloMessages,
		Credential: domain.AICredential{Provider: domain.ProviderOpenAI, APIKey: "sk"},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, managedErr)
	assert.Contains(t, err.Error(), "primary down")
}

func TestAIGateway_UnknownProvider(t *testing.T) {
	gw, _, _, _ := newTestGateway("")

	_, err := gw.Call(context.Background(), domain.AIRequest{
		Messages:   helloMessages,
		Credential: domain.AICredential{Provider: "anthropic", APIKey: "x"},
	})

	assert.ErrorContains(t, err, "no adapter registered")
}

func TestAIGateway_AppliesTimeout(t *testing.T) {
	gw, openai, _, _ := newTestGateway("")
	openai.On("Complete", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	}), mock.Anything, mock.Anything, false).Return("ok", nil)

	_, err := gw.Call(context.Background(), domain.AIRequest{
		Messages:   helloMessages,
		Credential: domain.AICredential{Provider: domain.ProviderOpenAI, APIKey: "sk"},
	})

	require.NoError(t, err)
	openai.AssertExpectations(t)
}

func TestAIGateway_NoFallbackWhenManagedUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		source ManagedCredentialSource
	}{
		{"no source", nil},
		{"managed switched off", staticManaged{}},
		{"lookup error", staticManaged{err: errors.New("db down")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, openai, _, managed := newGatewayWithSource(tt.source)
			openai.On("Complete", mock.Anything, mock.Anything, mock.Anything, false).Return("", errors.New("boom"))

			_, err := gw.Call(context.Background(), domain.AIRequest{
				Messages:   helloMessages,
				Credential: domain.AICredential{Provider: domain.ProviderOpenAI, APIKey: "sk"},
			})

			assert.ErrorContains(t, err, "openai: boom")
			managed.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestAIGateway_FallbackUsesAdminRecordKey(t *testing.T) {
	settings := new(MockAISettingsRepository)
	settings.On("GetManagedAISettings", mock.Anything).Return(&domain.ManagedAISettings{
		Enabled: true,
		APIKey:  "admin-key",
		Model:   "admin-model",
	}, nil)
	gw, openai, _, managed := newGatewayWithSource(NewCredentialResolver(settings, "", "https://managed/v1"))

	openai.On("Complete", mock.Anything, mock.Anything, mock.Anything, false).Return("", errors.New("boom"))
	managed.On("Complete", mock.Anything, domain.AICredential{
		Provider: domain.ProviderManaged,
		APIKey:   "admin-key",
		BaseURL:  "https://managed/v1",
		Model:    "admin-model",
	}, helloMessages, false).Return("from admin key", nil)

	resp, err := gw.Call(context.Background(), domain.AIRequest{
		Messages:   helloMessages,
		Credential: domain.AICredential{Provider: domain.ProviderOpenAI, APIKey: "sk"},
	})

	require.NoError(t, err)
	assert.Equal(t, "from admin key", resp.Content)
	assert.True(t, resp.FellBack)
}
