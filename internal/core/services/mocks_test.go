package services

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"commerce-agent/internal/core/domain"
)

// ============================================================================
// Mock Repositories
// ============================================================================

type MockPageConfigRepository struct {
	mock.Mock
}

func (m *MockPageConfigRepository) GetPageConfig(ctx context.Context, pageID string) (*domain.PageConfig, error) {
	args := m.Called(ctx, pageID)
	if result := args.Get(0); result != nil {
		return result.(*domain.PageConfig), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetAccessToken(ctx context.Context, externalID, platform string) (string, error) {
	args := m.Called(ctx, externalID, platform)
	return args.String(0), args.Error(1)
}

func (m *MockAccountRepository) DeactivateByToken(ctx context.Context, accessToken string) error {
	args := m.Called(ctx, accessToken)
	return args.Error(0)
}

type MockAISettingsRepository struct {
	mock.Mock
}

func (m *MockAISettingsRepository) GetManagedAISettings(ctx context.Context) (*domain.ManagedAISettings, error) {
	args := m.Called(ctx)
	if result := args.Get(0); result != nil {
		return result.(*domain.ManagedAISettings), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAISettingsRepository) GetOwnerAIConfig(ctx context.Context, ownerID string) (*domain.OwnerAIConfig, error) {
	args := m.Called(ctx, ownerID)
	if result := args.Get(0); result != nil {
		return result.(*domain.OwnerAIConfig), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) GetConversation(ctx context.Context, pageID, senderID string) (*domain.Conversation, error) {
	args := m.Called(ctx, pageID, senderID)
	if result := args.Get(0); result != nil {
		return result.(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockConversationRepository) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	args := m.Called(ctx, conv)
	return args.Error(0)
}

func (m *MockConversationRepository) UpdateConversation(ctx context.Context, conv *domain.Conversation) error {
	args := m.Called(ctx, conv)
	return args.Error(0)
}

// memConversationRepo keeps conversations in memory and enforces the version check
type memConversationRepo struct {
	mu      sync.Mutex
	nextID  int64
	created int
	convs   map[string]domain.Conversation
}

func newMemConversationRepo() *memConversationRepo {
	return &memConversationRepo{convs: make(map[string]domain.Conversation)}
}

func copyConversation(c domain.Conversation) *domain.Conversation {
	c.History = append([]domain.HistoryEntry(nil), c.History...)
	return &c
}

func (r *memConversationRepo) GetConversation(_ context.Context, pageID, senderID string) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[pageID+":"+senderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyConversation(c), nil
}

func (r *memConversationRepo) CreateConversation(_ context.Context, conv *domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.created++
	conv.ID = r.nextID
	r.convs[conv.PageID+":"+conv.SenderID] = *copyConversation(*conv)
	return nil
}

func (r *memConversationRepo) UpdateConversation(_ context.Context, conv *domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := conv.PageID + ":" + conv.SenderID
	stored, ok := r.convs[key]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != conv.Version {
		return domain.ErrVersionConflict
	}
	conv.Version++
	r.convs[key] = *copyConversation(*conv)
	return nil
}

type MockExecutionLogRepository struct {
	mock.Mock
}

func (m *MockExecutionLogRepository) SaveExecutionLog(ctx context.Context, entry *domain.ExecutionLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockExecutionLogRepository) PurgeExecutionLogs(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	args := m.Called(ctx, cutoff, limit)
	return args.Get(0).(int64), args.Error(1)
}

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

// MockDedupRepository mocks DedupRepository interface
type MockDedupRepository struct {
	mock.Mock
}

func (m *MockDedupRepository) IsDuplicate(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDedupRepository) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error {
	args := m.Called(ctx, eventID, ttl)
	return args.Error(0)
}

// ============================================================================
// Mock Gateways
// ============================================================================

type MockPlatformClient struct {
	mock.Mock
}

func (m *MockPlatformClient) SendMessage(ctx context.Context, accessToken, recipientID, text string) bool {
	return m.Called(ctx, accessToken, recipientID, text).Bool(0)
}

func (m *MockPlatformClient) ReplyToComment(ctx context.Context, accessToken, commentID, text string) bool {
	return m.Called(ctx, accessToken, commentID, text).Bool(0)
}

func (m *MockPlatformClient) ReactToComment(ctx context.Context, accessToken, commentID string, reaction domain.Reaction) bool {
	return m.Called(ctx, accessToken, commentID, reaction).Bool(0)
}

func (m *MockPlatformClient) HideComment(ctx context.Context, accessToken, commentID string) bool {
	return m.Called(ctx, accessToken, commentID).Bool(0)
}

func (m *MockPlatformClient) GetUserProfile(ctx context.Context, accessToken, userID string) (*domain.UserProfile, bool) {
	args := m.Called(ctx, accessToken, userID)
	if result := args.Get(0); result != nil {
		return result.(*domain.UserProfile), args.Bool(1)
	}
	return nil, args.Bool(1)
}

func (m *MockPlatformClient) MarkSeen(ctx context.Context, accessToken, recipientID string) bool {
	return m.Called(ctx, accessToken, recipientID).Bool(0)
}

func (m *MockPlatformClient) SetTyping(ctx context.Context, accessToken, recipientID string, on bool) bool {
	return m.Called(ctx, accessToken, recipientID, on).Bool(0)
}

type MockAIAdapter struct {
	mock.Mock
}

func (m *MockAIAdapter) Complete(ctx context.Context, cred domain.AICredential, messages []domain.ChatMessage, hasMedia bool) (string, error) {
	args := m.Called(ctx, cred, messages, hasMedia)
	return args.String(0), args.Error(1)
}

type MockLogSink struct {
	mock.Mock
}

func (m *MockLogSink) PublishExecutionLog(ctx context.Context, entry *domain.ExecutionLogEntry) error {
	return m.Called(ctx, entry).Error(0)
}

// MockEventHandler mocks the agent as seen by the demultiplexer
type MockEventHandler struct {
	mock.Mock
}

func (m *MockEventHandler) HandleMessage(ctx context.Context, msg InboundMessage) (*AgentResult, error) {
	args := m.Called(ctx, msg)
	if result := args.Get(0); result != nil {
		return result.(*AgentResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEventHandler) HandleComment(ctx context.Context, c InboundComment) (*AgentResult, error) {
	args := m.Called(ctx, c)
	if result := args.Get(0); result != nil {
		return result.(*AgentResult), args.Error(1)
	}
	return nil, args.Error(1)
}
