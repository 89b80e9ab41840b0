package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mety-backend/internal/config"
	"mety-backend/internal/model"
)

// Answerer produces the assistant text for one request. Implementations
// must be safe for concurrent use.
type Answerer interface {
	Answer(ctx context.Context, req *model.ChatRequest) (string, error)
}

const (
	ModeRemote = "remote"
	ModeDirect = "direct"
	ModeLocal  = "local"
)

var (
	ErrUnknownMode = errors.New("unknown answer mode")
	ErrNoReplier   = errors.New("direct mode needs an in-process chat service")
)

// NewAnswerer selects the answer variant named by cfg.Mode. replier is only
// used, and required, for direct mode.
func NewAnswerer(cfg config.ClientConfig, replier Replier) (Answerer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", ModeRemote:
		return NewRemoteBackend(cfg.BaseURL, cfg.Timeout), nil
	case ModeDirect:
		if replier == nil {
			return nil, ErrNoReplier
		}
		return NewDirectProvider(replier), nil
	case ModeLocal:
		return NewLocalFallback(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, cfg.Mode)
	}
}
