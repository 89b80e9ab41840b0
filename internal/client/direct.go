package client

import (
	"context"
	"errors"

	"mety-backend/internal/model"
)

// Replier is the backend chat service contract.
type Replier interface {
	Reply(ctx context.Context, req *model.ChatRequest) (*model.ChatReply, error)
}

// DirectProvider answers through a chat service running in the same process,
// skipping HTTP. The provider credential stays with that service.
type DirectProvider struct {
	replier Replier
}

func NewDirectProvider(replier Replier) *DirectProvider {
	return &DirectProvider{replier: replier}
}

func (d *DirectProvider) Answer(ctx context.Context, req *model.ChatRequest) (string, error) {
	reply, err := d.replier.Reply(ctx, req)
	if err != nil {
		return "", err
	}
	if reply == nil || !reply.Success {
		return "", errors.New("chat service returned no reply")
	}
	return reply.Message, nil
}
