package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mety-backend/internal/config"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

var errGeminiNoUserTurn = errors.New("gemini: conversation must end with a user message")

type geminiChatModel struct {
	client *genai.Client
	model  string
}

func newGeminiChatModel(ctx context.Context, cfg config.GeminiConfig) (*geminiChatModel, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, err
	}
	return &geminiChatModel{client: client, model: cfg.Model}, nil
}

func (m *geminiChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...einoModel.Option) (*schema.Message, error) {
	options := einoModel.GetCommonOptions(&einoModel.Options{Model: &m.model}, opts...)

	// GenerativeModel carries per-call settings, so build one per request.
	gm := m.client.GenerativeModel(*options.Model)
	if options.Temperature != nil {
		gm.SetTemperature(*options.Temperature)
	}
	if options.MaxTokens != nil {
		gm.SetMaxOutputTokens(int32(*options.MaxTokens))
	}

	system, history, last, err := splitForGemini(messages)
	if err != nil {
		return nil, err
	}
	if system != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	cs := gm.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return nil, fmt.Errorf("gemini send message: %w", err)
	}

	text := geminiText(resp)
	if text == "" {
		return nil, fmt.Errorf("gemini: %w", ErrEmptyCompletion)
	}
	return schema.AssistantMessage(text, nil), nil
}

func (m *geminiChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...einoModel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("gemini: streaming is not supported")
}

func (m *geminiChatModel) Close() error {
	return m.client.Close()
}

// splitForGemini separates system instructions from the turn history and
// returns the final user message that SendMessage expects.
func splitForGemini(messages []*schema.Message) (string, []*genai.Content, string, error) {
	var system []string
	var turns []*schema.Message
	for _, msg := range messages {
		if msg.Role == schema.System {
			system = append(system, msg.Content)
			continue
		}
		turns = append(turns, msg)
	}

	if len(turns) == 0 || turns[len(turns)-1].Role != schema.User {
		return "", nil, "", errGeminiNoUserTurn
	}

	history := make([]*genai.Content, 0, len(turns)-1)
	for _, msg := range turns[:len(turns)-1] {
		role := "user"
		if msg.Role == schema.Assistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}

	return strings.Join(system, "\n\n"), history, turns[len(turns)-1].Content, nil
}

func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}
