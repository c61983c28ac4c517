package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type chatRequest struct {
	ConversationHistory []ChatMessage `json:"conversationHistory"`
}

type chatResponse struct {
	BotText    string `json:"botText"`
	SpeechText string `json:"speechText"`
}

// handleChat relays the visitor's conversation window to the completion
// provider. The widget holds the conversation; nothing is kept here.
func (s *Server) handleChat(c *gin.Context) {
	start := time.Now()

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.ConversationHistory) == 0 {
		s.metrics.RecordChat("bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": MsgMissingHistory})
		return
	}

	reply, err := s.assistant.Reply(c.Request.Context(), req.ConversationHistory)
	if err != nil {
		s.chatFailed(c, err, time.Since(start))
		return
	}

	s.metrics.RecordChat("ok")
	s.recordEvent(EventChat, StatusOK, time.Since(start))
	c.JSON(http.StatusOK, chatResponse{BotText: reply.Text, SpeechText: reply.Speech})
}

func (s *Server) chatFailed(c *gin.Context, err error, elapsed time.Duration) {
	switch {
	case errors.Is(err, ErrEmptyHistory):
		s.metrics.RecordChat("bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": MsgMissingHistory})
		return
	case errors.Is(err, ErrInvalidRole):
		s.metrics.RecordChat("bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": MsgInvalidRole})
		return
	}

	msg := MsgInternalError
	outcome := KindUpstream
	var chatErr *ChatError
	if errors.As(err, &chatErr) {
		msg = chatErr.UserMessage()
		outcome = chatErr.Kind
	}

	s.log.Errorw("completion provider error",
		"error", err,
		"kind", outcome,
		"request_id", c.GetString("request_id"),
	)
	s.metrics.RecordChat(outcome)
	s.recordEvent(EventChat, StatusError, elapsed)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

// recordEvent stores an outcome without blocking the response on SQLite.
func (s *Server) recordEvent(kind, status string, latency time.Duration) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.RecordEvent(ctx, kind, status, latency); err != nil {
			s.log.Errorw("error recording event", "kind", kind, "error", err)
		}
	}()
}
