package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func isHTMX(c *gin.Context) bool { return c.GetHeader("HX-Request") == "true" }

// Handle contact form submission. HTMX posts get HTML fragments, everything
// else gets JSON.
func (s *Server) handleContact(c *gin.Context) {
	start := time.Now()

	var form ContactForm
	if err := c.ShouldBind(&form); err != nil {
		s.metrics.RecordContact("bad_request")
		s.contactError(c, http.StatusBadRequest, MsgContactFailure, nil)
		return
	}

	if err := form.Validate(); err != nil {
		var fields ValidationErrors
		errors.As(err, &fields)
		s.metrics.RecordContact("invalid")
		s.contactError(c, http.StatusBadRequest, "", fields)
		return
	}

	if s.mailer == nil {
		s.log.Errorw("contact form submitted but no mailer configured", "error", ErrMailerNotConfigured)
		s.metrics.RecordContact("unconfigured")
		s.recordEvent(EventContact, StatusError, time.Since(start))
		s.contactError(c, http.StatusServiceUnavailable, MsgContactFailure, nil)
		return
	}

	if err := s.mailer.Send(c.Request.Context(), form); err != nil {
		s.log.Errorw("error sending contact message", "error", err)
		s.metrics.RecordContact("error")
		s.recordEvent(EventContact, StatusError, time.Since(start))
		s.contactError(c, http.StatusBadGateway, MsgContactFailure, nil)
		return
	}

	s.log.Infow("contact message sent", "client", s.store.HashIP(c.ClientIP()))
	s.metrics.RecordContact("ok")
	s.recordEvent(EventContact, StatusOK, time.Since(start))

	if isHTMX(c) {
		c.HTML(http.StatusOK, "contact-success.html", gin.H{"success": MsgContactSuccess})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": MsgContactSuccess})
}

// contactError renders either a summary message or per-field errors.
// HTMX only swaps 2xx responses, so fragments always go out as 200.
func (s *Server) contactError(c *gin.Context, status int, msg string, fields ValidationErrors) {
	if isHTMX(c) {
		c.HTML(http.StatusOK, "contact-error.html", gin.H{"error": msg, "fields": fields})
		return
	}
	body := gin.H{}
	if msg != "" {
		body["error"] = msg
	}
	if len(fields) > 0 {
		body["errors"] = fields
	}
	c.JSON(status, body)
}
