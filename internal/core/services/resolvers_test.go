package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"commerce-agent/internal/core/domain"
)

func TestPageResolver_Resolve(t *testing.T) {
	t.Run("enabled page with token", func(t *testing.T) {
		configs := new(MockPageConfigRepository)
		accounts := new(MockAccountRepository)
		cfg := &domain.PageConfig{PageID: "P1", OwnerID: "o1", Enabled: true}
		configs.On("GetPageConfig", mock.Anything, "P1").Return(cfg, nil)
		accounts.On("GetAccessToken", mock.Anything, "P1", domain.PlatformFacebook).Return("tok", nil)

		page, reason, err := NewPageResolver(configs, accounts).Resolve(context.Background(), "P1")

		require.NoError(t, err)
		assert.Empty(t, reason)
		assert.Equal(t, cfg, page.Config)
		assert.Equal(t, "tok", page.AccessToken)
	})

	t.Run("empty token", func(t *testing.T) {
		configs := new(MockPageConfigRepository)
		accounts := new(MockAccountRepository)
		configs.On("GetPageConfig", mock.Anything, "P1").Return(&domain.PageConfig{Enabled: true}, nil)
		accounts.On("GetAccessToken", mock.Anything, "P1", domain.PlatformFacebook).Return("", nil)

		page, reason, err := NewPageResolver(configs, accounts).Resolve(context.Background(), "P1")

		require.NoError(t, err)
		assert.Nil(t, page)
		assert.Equal(t, ReasonNoAccessToken, reason)
	})

	t.Run("repository failure", func(t *testing.T) {
		configs := new(MockPageConfigRepository)
		configs.On("GetPageConfig", mock.Anything, "P1").Return(nil, errors.New("connection refused"))

		page, _, err := NewPageResolver(configs, new(MockAccountRepository)).Resolve(context.Background(), "P1")

		assert.Nil(t, page)
		assert.ErrorContains(t, err, "connection refused")
	})
}

func TestCredentialResolver_Resolve(t *testing.T) {
	tests := []struct {
		name       string
		owner      *domain.OwnerAIConfig
		ownerErr   error
		managed    *domain.ManagedAISettings
		managedErr error
		defaultKey string
		want       *domain.AICredential
	}{
		{
			name:     "owner never configured",
			ownerErr: domain.ErrNotFound,
			want:     nil,
		},
		{
			name:    "managed opted in and enabled",
			owner:   &domain.OwnerAIConfig{UseManagedAI: true},
			managed: &domain.ManagedAISettings{Enabled: true, APIKey: "admin-key", BaseURL: "https://llm.internal/v1", Model: "m1"},
			want:    &domain.AICredential{Provider: domain.ProviderManaged, APIKey: "admin-key", BaseURL: "https://llm.internal/v1", Model: "m1"},
		},
		{
			name:       "managed key from deployment default",
			owner:      &domain.OwnerAIConfig{UseManagedAI: true},
			managed:    &domain.ManagedAISettings{Enabled: true},
			defaultKey: "env-key",
			want:       &domain.AICredential{Provider: domain.ProviderManaged, APIKey: "env-key", BaseURL: "https://default/v1"},
		},
		{
			name:    "managed disabled falls through to personal",
			owner:   &domain.OwnerAIConfig{UseManagedAI: true, IsActive: true, Provider: "gemini", APIKey: "AIza-1"},
			managed: &domain.ManagedAISettings{Enabled: false, APIKey: "admin-key"},
			want:    &domain.AICredential{Provider: domain.ProviderGemini, APIKey: "AIza-1"},
		},
		{
			name:       "managed record missing and no personal key",
			owner:      &domain.OwnerAIConfig{UseManagedAI: true},
			managedErr: domain.ErrNotFound,
			want:       nil,
		},
		{
			name:  "personal config",
			owner: &domain.OwnerAIConfig{IsActive: true, Provider: "OpenAI", APIKey: "sk-1", Model: "gpt-4o"},
			want:  &domain.AICredential{Provider: domain.ProviderOpenAI, APIKey: "sk-1", Model: "gpt-4o"},
		},
		{
			name:  "personal config without provider",
			owner: &domain.OwnerAIConfig{IsActive: true, APIKey: "AIzaSy-2"},
			want:  &domain.AICredential{Provider: domain.ProviderGemini, APIKey: "AIzaSy-2"},
		},
		{
			name:  "personal config inactive",
			owner: &domain.OwnerAIConfig{IsActive: false, Provider: "openai", APIKey: "sk-1"},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := new(MockAISettingsRepository)
			if tt.owner != nil {
				settings.On("GetOwnerAIConfig", mock.Anything, "o1").Return(tt.owner, nil)
			} else {
				settings.On("GetOwnerAIConfig", mock.Anything, "o1").Return(nil, tt.ownerErr)
			}
			if tt.managed != nil {
				settings.On("GetManagedAISettings", mock.Anything).Return(tt.managed, nil)
			} else {
				settings.On("GetManagedAISettings", mock.Anything).Return(nil, tt.managedErr)
			}

			got, err := NewCredentialResolver(settings, tt.defaultKey, "https://default/v1").Resolve(context.Background(), "o1")

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCredentialResolver_RepositoryError(t *testing.T) {
	settings := new(MockAISettingsRepository)
	settings.On("GetOwnerAIConfig", mock.Anything, "o1").Return(nil, errors.New("timeout"))

	got, err := NewCredentialResolver(settings, "", "").Resolve(context.Background(), "o1")

	assert.Nil(t, got)
	assert.Error(t, err)
}

func TestInferProvider(t *testing.T) {
	assert.Equal(t, domain.ProviderOpenAI, InferProvider("sk-proj-abc"))
	assert.Equal(t, domain.ProviderGemini, InferProvider("AIzaSyXYZ"))
	assert.Equal(t, domain.ProviderManaged, InferProvider("something-else"))
}

func TestCredentialResolver_Managed(t *testing.T) {
	tests := []struct {
		name       string
		managed    *domain.ManagedAISettings
		managedErr error
		defaultKey string
		want       *domain.AICredential
		wantErr    bool
	}{
		{
			name:       "no admin record uses deployment key",
			managedErr: domain.ErrNotFound,
			defaultKey: "env-key",
			want:       &domain.AICredential{Provider: domain.ProviderManaged, APIKey: "env-key", BaseURL: "https://default/v1"},
		},
		{
			name:    "admin record key without deployment key",
			managed: &domain.ManagedAISettings{Enabled: true, APIKey: "admin-key", BaseURL: "https://admin/v1"},
			want:    &domain.AICredential{Provider: domain.ProviderManaged, APIKey: "admin-key", BaseURL: "https://admin/v1"},
		},
		{
			name:       "admin record disabled",
			managed:    &domain.ManagedAISettings{Enabled: false, APIKey: "admin-key"},
			defaultKey: "env-key",
			want:       nil,
		},
		{
			name:       "no key anywhere",
			managedErr: domain.ErrNotFound,
			want:       nil,
		},
		{
			name:       "lookup failure",
			managedErr: errors.New("timeout"),
			defaultKey: "env-key",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := new(MockAISettingsRepository)
			if tt.managed != nil {
				settings.On("GetManagedAISettings", mock.Anything).Return(tt.managed, nil)
			} else {
				settings.On("GetManagedAISettings", mock.Anything).Return(nil, tt.managedErr)
			}

			got, err := NewCredentialResolver(settings, tt.defaultKey, "https://default/v1").Managed(context.Background())

			if tt.wantErr {
				assert.ErrorContains(t, err, "load managed ai settings")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
