package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"mety-backend/internal/model"
	"mety-backend/internal/service"
	"mety-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	errMessageRequired = "Message is required"
	errInvalidBody     = "Invalid request body"
	errProviderFailed  = "Failed to get response from AI"
	errInternal        = "Internal server error"

	healthMessage = "Mety AI Backend is running"
)

// Replier answers one chat request. *service.ChatService implements it.
type Replier interface {
	Reply(ctx context.Context, req *model.ChatRequest) (*model.ChatReply, error)
}

type ChatHandler struct {
	chatService Replier
}

func NewChatHandler(chatService Replier) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

func (h *ChatHandler) Chat(c *gin.Context) {
	log := logger.WithFields(logger.Fields{"request_id": RequestIDFrom(c)})

	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Warnf("chat request rejected: %v", err)
		c.JSON(http.StatusBadRequest, model.ChatReply{Error: errInvalidBody})
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, model.ChatReply{Error: errMessageRequired})
		return
	}

	log.WithFields(logger.Fields{
		"message_chars": utf8.RuneCountInString(req.Message),
		"history":       len(req.ConversationHistory),
	}).Info("chat request received")

	reply, err := h.chatService.Reply(c.Request.Context(), &req)
	if err != nil {
		status, body := errorReply(err)
		// Provider detail stays in the log; the body only names the category.
		log.WithField("status", status).Errorf("chat request failed: %v", err)
		c.JSON(status, body)
		return
	}

	log.WithField("reply_chars", utf8.RuneCountInString(reply.Message)).Info("chat request resolved")
	c.JSON(http.StatusOK, reply)
}

func errorReply(err error) (int, model.ChatReply) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, model.ChatReply{Error: errMessageRequired}
	case errors.Is(err, service.ErrProviderTimeout):
		return http.StatusGatewayTimeout, model.ChatReply{Error: errProviderFailed, Details: "provider timed out"}
	case errors.Is(err, service.ErrMalformedResponse):
		return http.StatusBadGateway, model.ChatReply{Error: errProviderFailed, Details: "provider returned an unusable response"}
	case errors.Is(err, service.ErrProviderUnavailable):
		return http.StatusBadGateway, model.ChatReply{Error: errProviderFailed, Details: "provider unavailable"}
	default:
		return http.StatusInternalServerError, model.ChatReply{Error: errInternal}
	}
}

// Health is a liveness probe. It never calls the provider.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, model.HealthResponse{
		Status:  "OK",
		Message: healthMessage,
	})
}
