package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mety-backend/internal/config"
	"mety-backend/internal/model"
	"mety-backend/pkg/logger"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// TimestampLayout formats reply timestamps like a locale time string.
const TimestampLayout = "3:04:05 PM"

const defaultProviderTimeout = 30 * time.Second

// ChatService turns one chat request into one provider call. It keeps no
// state between requests, so a single instance serves all handlers.
type ChatService struct {
	chatModel    einoModel.BaseChatModel
	template     prompt.ChatTemplate
	systemPrompt string
	maxTokens    int
	temperature  float32
	timeout      time.Duration
	now          func() time.Time
}

func NewChatService(chatModel einoModel.BaseChatModel, cfg config.ChatConfig) *ChatService {
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	return &ChatService{
		chatModel:    chatModel,
		template:     newChatPrompt(),
		systemPrompt: cfg.SystemPrompt,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		timeout:      timeout,
		now:          time.Now,
	}
}

// newChatPrompt assembles [system persona] + history + [user message]. The
// persona is a variable so braces in configured prompts are never parsed.
func newChatPrompt() prompt.ChatTemplate {
	return prompt.FromMessages(schema.FString,
		schema.SystemMessage("{system_prompt}"),
		schema.MessagesPlaceholder("message_histories", true),
		schema.UserMessage("{user_query}"),
	)
}

// BuildMessages maps the request history role-for-role in its original order.
// Entries whose type is not "user" are assistant turns.
func (s *ChatService) BuildMessages(ctx context.Context, req *model.ChatRequest) ([]*schema.Message, error) {
	history := make([]*schema.Message, 0, len(req.ConversationHistory))
	for _, msg := range req.ConversationHistory {
		if msg.Type == model.MessageTypeUser {
			history = append(history, schema.UserMessage(msg.Message))
		} else {
			history = append(history, schema.AssistantMessage(msg.Message, nil))
		}
	}

	return s.template.Format(ctx, map[string]any{
		"system_prompt":     s.systemPrompt,
		"message_histories": history,
		"user_query":        req.Message,
	})
}

// Reply validates the request, calls the provider once under the configured
// timeout and returns a success reply. Every provider failure is returned as
// an error matching ErrProviderUnavailable.
func (s *ChatService) Reply(ctx context.Context, req *model.ChatRequest) (reply *model.ChatReply, err error) {
	if req == nil || strings.TrimSpace(req.Message) == "" {
		return nil, ErrInvalidInput
	}

	messages, err := s.BuildMessages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			reply = nil
			err = fmt.Errorf("%w: provider panic: %v", ErrProviderUnavailable, r)
		}
	}()

	logger.Debugf("calling provider with %d messages (%d history)", len(messages), len(req.ConversationHistory))

	resp, err := s.chatModel.Generate(callCtx, messages,
		einoModel.WithMaxTokens(s.maxTokens),
		einoModel.WithTemperature(s.temperature),
	)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrEmptyCompletion):
			return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: %w", ErrProviderTimeout, err)
		default:
			return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
		}
	}

	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, ErrMalformedResponse
	}

	return &model.ChatReply{
		Success:   true,
		Message:   resp.Content,
		Timestamp: s.now().Format(TimestampLayout),
	}, nil
}
