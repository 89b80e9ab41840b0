// Package client holds the chat client: a Conversation that owns its turns
// and allows one outstanding request, plus the Answerer variants it can talk
// to.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"mety-backend/internal/model"
	"mety-backend/pkg/logger"
)

const (
	DefaultHistoryLimit = 10

	// FallbackMessage replaces the pending turn whenever an answer fails.
	FallbackMessage = "I'm having trouble connecting right now. Please try again later!"
	GreetingMessage = "Hi! I'm Mety, your personal AI study assistant! 🤖 How can I help you with your studies today?"

	placeholderText = "Mety is thinking..."
	turnTimeLayout  = "3:04 PM"
)

var (
	ErrEmptyInput     = errors.New("message is empty")
	ErrRequestPending = errors.New("a reply is still pending")
	ErrClosed         = errors.New("conversation is closed")
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a Conversation. CreatedAt is for display only;
// turns are ordered by insertion.
type Turn struct {
	ID        int64
	Role      Role
	Text      string
	CreatedAt time.Time
	Pending   bool
}

// Time renders CreatedAt the way the chat view shows it.
func (t Turn) Time() string {
	return t.CreatedAt.Format(turnTimeLayout)
}

type Option func(*Conversation)

// WithHistoryLimit caps how many prior turns are sent with each request.
// Zero sends no history.
func WithHistoryLimit(n int) Option {
	return func(c *Conversation) {
		if n >= 0 {
			c.historyLimit = n
		}
	}
}

// WithGreeting seeds the conversation with the assistant greeting.
func WithGreeting() Option {
	return func(c *Conversation) { c.greeting = true }
}

func WithClock(now func() time.Time) Option {
	return func(c *Conversation) { c.now = now }
}

// Conversation is the turn list of one open chat view. It is safe for
// concurrent use; at most one request is in flight at any time.
type Conversation struct {
	answerer     Answerer
	historyLimit int
	greeting     bool
	now          func() time.Time

	mu      sync.Mutex
	turns   []Turn
	nextID  int64
	pending bool
	closed  bool
}

func NewConversation(answerer Answerer, opts ...Option) *Conversation {
	c := &Conversation{
		answerer:     answerer,
		historyLimit: DefaultHistoryLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.greeting {
		c.appendLocked(RoleAssistant, GreetingMessage, false)
	}
	return c
}

// Submit appends the trimmed input as a user turn plus a pending assistant
// turn and asks the answerer in the background. Rejected input adds no turns.
//
// The returned channel receives the resolved assistant turn and is then
// closed. If the conversation is closed first, it is closed without a value.
// Cancelling ctx does not abandon the request; the pending turn is always
// resolved, with FallbackMessage on any failure.
func (c *Conversation) Submit(ctx context.Context, raw string) (<-chan Turn, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, ErrEmptyInput
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.pending {
		c.mu.Unlock()
		return nil, ErrRequestPending
	}

	history := c.historyLocked()
	c.appendLocked(RoleUser, text, false)
	placeholder := c.appendLocked(RoleAssistant, placeholderText, true)
	c.pending = true
	c.mu.Unlock()

	req := &model.ChatRequest{
		Message:             text,
		ConversationHistory: history,
	}

	done := make(chan Turn, 1)
	go c.resolve(context.WithoutCancel(ctx), placeholder.ID, req, done)
	return done, nil
}

// Ask submits and waits for the assistant turn. If ctx ends first, Ask
// returns ctx.Err() while the request keeps running to completion.
func (c *Conversation) Ask(ctx context.Context, raw string) (Turn, error) {
	done, err := c.Submit(ctx, raw)
	if err != nil {
		return Turn{}, err
	}

	select {
	case turn, ok := <-done:
		if !ok {
			return Turn{}, ErrClosed
		}
		return turn, nil
	case <-ctx.Done():
		return Turn{}, ctx.Err()
	}
}

func (c *Conversation) resolve(ctx context.Context, id int64, req *model.ChatRequest, done chan<- Turn) {
	defer close(done)

	text, err := c.answer(ctx, req)
	if err != nil {
		logger.Warnf("chat answer failed, using fallback: %v", err)
		text = FallbackMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = false
	if c.closed {
		return
	}

	for i := range c.turns {
		if c.turns[i].ID == id {
			c.turns[i].Text = text
			c.turns[i].Pending = false
			c.turns[i].CreatedAt = c.now()
			done <- c.turns[i]
			return
		}
	}
}

func (c *Conversation) answer(ctx context.Context, req *model.ChatRequest) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("answerer panic: %v", r)
		}
	}()

	text, err = c.answerer.Answer(ctx, req)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty answer")
	}
	return text, err
}

// Close discards the conversation. A reply that arrives afterwards is
// dropped.
func (c *Conversation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.turns = nil
}

func (c *Conversation) Turns() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Turn(nil), c.turns...)
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// Pending reports whether a reply is outstanding; input should be disabled
// while it is true.
func (c *Conversation) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// History returns what the next request would carry as conversationHistory.
func (c *Conversation) History() []model.HistoryMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.historyLocked()
}

func (c *Conversation) historyLocked() []model.HistoryMessage {
	resolved := make([]Turn, 0, len(c.turns))
	for _, t := range c.turns {
		if !t.Pending {
			resolved = append(resolved, t)
		}
	}
	if len(resolved) > c.historyLimit {
		resolved = resolved[len(resolved)-c.historyLimit:]
	}

	history := make([]model.HistoryMessage, 0, len(resolved))
	for _, t := range resolved {
		msgType := model.MessageTypeAI
		if t.Role == RoleUser {
			msgType = model.MessageTypeUser
		}
		history = append(history, model.HistoryMessage{
			ID:      t.ID,
			Type:    msgType,
			Message: t.Text,
			Time:    t.Time(),
		})
	}
	return history
}

func (c *Conversation) appendLocked(role Role, text string, pending bool) Turn {
	c.nextID++
	t := Turn{
		ID:        c.nextID,
		Role:      role,
		Text:      text,
		CreatedAt: c.now(),
		Pending:   pending,
	}
	c.turns = append(c.turns, t)
	return t
}
