package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"mety-backend/internal/config"
	"mety-backend/internal/model"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatModel struct {
	generate func(ctx context.Context, msgs []*schema.Message) (*schema.Message, error)

	calls        atomic.Int32
	lastMessages []*schema.Message
	lastOptions  *einoModel.Options
}

func (f *fakeChatModel) Generate(ctx context.Context, msgs []*schema.Message, opts ...einoModel.Option) (*schema.Message, error) {
	f.calls.Add(1)
	f.lastMessages = msgs
	f.lastOptions = einoModel.GetCommonOptions(nil, opts...)
	return f.generate(ctx, msgs)
}

func (f *fakeChatModel) Stream(ctx context.Context, msgs []*schema.Message, opts ...einoModel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func replyWith(text string) func(context.Context, []*schema.Message) (*schema.Message, error) {
	return func(context.Context, []*schema.Message) (*schema.Message, error) {
		return schema.AssistantMessage(text, nil), nil
	}
}

func newTestService(fake *fakeChatModel, timeout time.Duration) *ChatService {
	s := NewChatService(fake, config.ChatConfig{
		SystemPrompt:    "You are Mety {not a variable}.",
		MaxTokens:       1000,
		Temperature:     0.7,
		ProviderTimeout: timeout,
	})
	s.now = func() time.Time { return time.Date(2026, 10, 18, 15, 4, 5, 0, time.UTC) }
	return s
}

func TestBuildMessages_OrderAndRoles(t *testing.T) {
	s := newTestService(&fakeChatModel{generate: replyWith("ok")}, time.Second)

	msgs, err := s.BuildMessages(context.Background(), &model.ChatRequest{
		Message: "And {integrals}?",
		ConversationHistory: []model.HistoryMessage{
			{ID: 1, Type: model.MessageTypeAI, Message: "Hi! I'm Mety"},
			{ID: 2, Type: model.MessageTypeUser, Message: "Explain derivatives"},
			{ID: 3, Type: model.MessageTypeAI, Message: "A derivative measures..."},
			{ID: 4, Type: "bot", Message: "unknown types are assistant turns"},
		},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 6)

	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, "You are Mety {not a variable}.", msgs[0].Content)

	wantRoles := []schema.RoleType{schema.Assistant, schema.User, schema.Assistant, schema.Assistant}
	wantText := []string{"Hi! I'm Mety", "Explain derivatives", "A derivative measures...", "unknown types are assistant turns"}
	for i := range wantRoles {
		assert.Equal(t, wantRoles[i], msgs[i+1].Role, "history %d", i)
		assert.Equal(t, wantText[i], msgs[i+1].Content, "history %d", i)
	}

	assert.Equal(t, schema.User, msgs[5].Role)
	assert.Equal(t, "And {integrals}?", msgs[5].Content)
}

func TestBuildMessages_NoHistory(t *testing.T) {
	s := newTestService(&fakeChatModel{generate: replyWith("ok")}, time.Second)

	msgs, err := s.BuildMessages(context.Background(), &model.ChatRequest{Message: "hello"})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, schema.User, msgs[1].Role)
}

func TestReply_Success(t *testing.T) {
	fake := &fakeChatModel{generate: replyWith("A derivative measures...")}
	s := newTestService(fake, time.Second)

	reply, err := s.Reply(context.Background(), &model.ChatRequest{Message: "Explain derivatives"})
	require.NoError(t, err)

	assert.True(t, reply.Success)
	assert.Equal(t, "A derivative measures...", reply.Message)
	assert.Equal(t, "3:04:05 PM", reply.Timestamp)
	assert.Empty(t, reply.Error)

	require.NotNil(t, fake.lastOptions.MaxTokens)
	require.NotNil(t, fake.lastOptions.Temperature)
	assert.Equal(t, 1000, *fake.lastOptions.MaxTokens)
	assert.InDelta(t, 0.7, *fake.lastOptions.Temperature, 1e-6)
}

func TestReply_InvalidInputSkipsProvider(t *testing.T) {
	fake := &fakeChatModel{generate: replyWith("unused")}
	s := newTestService(fake, time.Second)

	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := s.Reply(context.Background(), &model.ChatRequest{Message: msg})
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
	_, err := s.Reply(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Zero(t, fake.calls.Load())
}

func TestReply_ProviderFailures(t *testing.T) {
	tests := []struct {
		name     string
		generate func(context.Context, []*schema.Message) (*schema.Message, error)
		wantErr  error
		notErr   error
	}{
		{
			name: "provider error",
			generate: func(context.Context, []*schema.Message) (*schema.Message, error) {
				return nil, errors.New("status 500: invalid api key sk-secret")
			},
			wantErr: ErrProviderUnavailable,
			notErr:  ErrProviderTimeout,
		},
		{
			name: "timeout",
			generate: func(ctx context.Context, _ []*schema.Message) (*schema.Message, error) {
				<-ctx.Done()
				return nil, fmt.Errorf("request aborted: %w", ctx.Err())
			},
			wantErr: ErrProviderTimeout,
		},
		{
			name: "empty completion",
			generate: func(context.Context, []*schema.Message) (*schema.Message, error) {
				return nil, fmt.Errorf("openai: %w", model.ErrEmptyCompletion)
			},
			wantErr: ErrMalformedResponse,
		},
		{
			name:     "blank content",
			generate: replyWith("  "),
			wantErr:  ErrMalformedResponse,
		},
		{
			name: "nil message",
			generate: func(context.Context, []*schema.Message) (*schema.Message, error) {
				return nil, nil
			},
			wantErr: ErrMalformedResponse,
		},
		{
			name: "panic",
			generate: func(context.Context, []*schema.Message) (*schema.Message, error) {
				panic("adapter bug")
			},
			wantErr: ErrProviderUnavailable,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestService(&fakeChatModel{generate: tc.generate}, 20*time.Millisecond)

			reply, err := s.Reply(context.Background(), &model.ChatRequest{Message: "Explain derivatives"})
			assert.Nil(t, reply)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.ErrorIs(t, err, ErrProviderUnavailable)
			if tc.notErr != nil {
				assert.NotErrorIs(t, err, tc.notErr)
			}
		})
	}
}
