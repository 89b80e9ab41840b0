package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"mety-backend/internal/config"
	"mety-backend/internal/utils"
	"mety-backend/pkg/logger"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/qwen"
	einoModel "github.com/cloudwego/eino/components/model"
)

// ErrEmptyCompletion is returned by adapters when the provider answered
// without any usable text.
var ErrEmptyCompletion = errors.New("provider returned an empty completion")

// NewChatModel builds the completion provider selected by cfg.Model.Provider.
// Some providers hold resources; callers should close the result when it
// implements io.Closer.
func NewChatModel(ctx context.Context, cfg *config.Config) (einoModel.BaseChatModel, error) {
	switch cfg.Model.Provider {
	case config.ProviderOpenAI:
		return createOpenAIModel(cfg.OpenAI, cfg.Chat.ProviderTimeout), nil
	case config.ProviderDoubao:
		return createDoubaoModel(ctx, cfg.Doubao, cfg.Chat)
	case config.ProviderQwen:
		return createQwenModel(ctx, cfg.Qwen, cfg.Chat)
	case config.ProviderGemini:
		return createGeminiModel(ctx, cfg.Gemini)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, cfg.Model.Provider)
	}
}

func createOpenAIModel(cfg config.OpenAIConfig, timeout time.Duration) einoModel.BaseChatModel {
	logger.Infof("Using OpenAI model %s (credential loaded: %t)", cfg.Model, cfg.APIKey != "")

	httpClient := utils.NewHTTPClient(timeout)
	httpClient.Transport = NewDebugTransport(httpClient.Transport, cfg.DebugRequest)

	return newOpenAIChatModel(cfg, httpClient)
}

func createDoubaoModel(ctx context.Context, cfg config.DoubaoConfig, chat config.ChatConfig) (einoModel.BaseChatModel, error) {
	logger.Infof("Using Doubao model %s (credential loaded: %t)", cfg.Model, cfg.APIKey != "")

	maxTokens := chat.MaxTokens
	temperature := chat.Temperature
	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
		CustomHeader: map[string]string{
			"X-Ark-Thinking-Mode": "disable",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create doubao model: %w", err)
	}
	return chatModel, nil
}

func createQwenModel(ctx context.Context, cfg config.QwenConfig, chat config.ChatConfig) (einoModel.BaseChatModel, error) {
	logger.Infof("Using Qwen model %s at %s (credential loaded: %t)", cfg.Model, cfg.BaseURL, cfg.APIKey != "")

	httpClient := &http.Client{
		Transport: NewDebugTransport(nil, cfg.DebugRequest),
		Timeout:   chat.ProviderTimeout,
	}

	maxTokens := chat.MaxTokens
	temperature := chat.Temperature
	topP := cfg.TopP
	chatModel, err := qwen.NewChatModel(ctx, &qwen.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
		TopP:        &topP,
		Timeout:     chat.ProviderTimeout,
		HTTPClient:  httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("create qwen model: %w", err)
	}
	return chatModel, nil
}

func createGeminiModel(ctx context.Context, cfg config.GeminiConfig) (einoModel.BaseChatModel, error) {
	logger.Infof("Using Gemini model %s (credential loaded: %t)", cfg.Model, cfg.APIKey != "")

	chatModel, err := newGeminiChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini model: %w", err)
	}
	return chatModel, nil
}
