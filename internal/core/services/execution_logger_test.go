package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"commerce-agent/internal/core/domain"
)

func TestExecutionLogger_Record(t *testing.T) {
	repo := new(MockExecutionLogRepository)
	sink := new(MockLogSink)

	var saved *domain.ExecutionLogEntry
	repo.On("SaveExecutionLog", mock.Anything, mock.AnythingOfType("*domain.ExecutionLogEntry")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*domain.ExecutionLogEntry) }).
		Return(nil)
	sink.On("PublishExecutionLog", mock.Anything, mock.Anything).Return(nil)

	logger := NewExecutionLogger(repo, sink)
	logger.now = fixedClock
	logger.Record(context.Background(), "owner-1", domain.EventMessageReply, domain.ExecutionStatusSuccess,
		domain.PlatformFacebook, 120, "hello", "hi")

	if assert.NotNil(t, saved) {
		assert.NotEmpty(t, saved.ID)
		assert.Equal(t, "owner-1", saved.OwnerID)
		assert.Equal(t, domain.EventMessageReply, saved.EventType)
		assert.Equal(t, int64(120), saved.DurationMs)
		assert.Equal(t, fixedClock(), saved.CreatedAt)
	}
	sink.AssertCalled(t, "PublishExecutionLog", mock.Anything, saved)
}

func TestExecutionLogger_TruncatesSnippets(t *testing.T) {
	repo := new(MockExecutionLogRepository)
	repo.On("SaveExecutionLog", mock.Anything, mock.MatchedBy(func(e *domain.ExecutionLogEntry) bool {
		return utf8.RuneCountInString(e.InputSnippet) == maxSnippetRunes+3 &&
			strings.HasSuffix(e.InputSnippet, "...") &&
			e.OutputSnippet == "short"
	})).Return(nil)

	long := strings.Repeat("অ", maxSnippetRunes+50)
	NewExecutionLogger(repo).Record(context.Background(), "o", domain.EventCommentReply,
		domain.ExecutionStatusSuccess, domain.PlatformFacebook, 1, long, "short")

	repo.AssertExpectations(t)
}

func TestExecutionLogger_FailuresAreSwallowed(t *testing.T) {
	repo := new(MockExecutionLogRepository)
	sink := new(MockLogSink)
	repo.On("SaveExecutionLog", mock.Anything, mock.Anything).Return(errors.New("db down"))
	sink.On("PublishExecutionLog", mock.Anything, mock.Anything).Return(errors.New("nats down"))

	assert.NotPanics(t, func() {
		NewExecutionLogger(repo, sink).Record(context.Background(), "o", domain.EventCommentHidden,
			domain.ExecutionStatusFailed, domain.PlatformFacebook, 1, "in", "out")
	})
	sink.AssertNumberOfCalls(t, "PublishExecutionLog", 1)
}

func TestExecutionLogger_NilRepository(t *testing.T) {
	sink := new(MockLogSink)
	sink.On("PublishExecutionLog", mock.Anything, mock.Anything).Return(nil)

	NewExecutionLogger(nil, sink).Record(context.Background(), "o", domain.EventMessageReply,
		domain.ExecutionStatusSuccess, domain.PlatformFacebook, 1, "in", "out")

	sink.AssertNumberOfCalls(t, "PublishExecutionLog", 1)
}
