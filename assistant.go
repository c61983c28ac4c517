package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

var (
	ErrMissingAPIKey = errors.New("completion API key not configured")
	ErrEmptyHistory  = errors.New("conversation history is empty")
	ErrInvalidRole   = errors.New("message role must be user or assistant")
	ErrEmptyReply    = errors.New("no response content from completion provider")
)

// ChatMessage is one turn of the visitor's conversation as sent by the widget.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionClient is the subset of openai.Client the assistant needs.
type CompletionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// PromptSource supplies the system prompt for each request.
type PromptSource interface {
	SystemPrompt() string
}

type staticPrompt string

func (p staticPrompt) SystemPrompt() string { return string(p) }

// Error kinds reported by the assistant.
const (
	KindConfig    = "config"
	KindRateLimit = "rate_limit"
	KindUpstream  = "upstream"
	KindEmpty     = "empty"
)

// ChatError wraps a provider failure with the kind used to pick a visitor-facing message.
type ChatError struct {
	Kind   string
	Status int
	Err    error
}

func (e *ChatError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("chat %s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("chat %s: %v", e.Kind, e.Err)
}

func (e *ChatError) Unwrap() error { return e.Err }

// UserMessage is what the visitor sees for this failure.
func (e *ChatError) UserMessage() string {
	switch e.Kind {
	case KindConfig:
		return MsgConfigIssue
	case KindRateLimit:
		return MsgProviderBusy
	default:
		return MsgInternalError
	}
}

// Reply is a completed assistant turn.
type Reply struct {
	Text   string
	Speech string
}

// Assistant forwards a bounded conversation window to the completion
// provider behind a fixed system prompt.
type Assistant struct {
	client  CompletionClient
	prompt  PromptSource
	cfg     ChatConfig
	metrics *Metrics
}

// NewAssistant builds an assistant talking to an OpenAI-compatible endpoint.
// Without an API key the assistant still serves, but every reply fails with
// a configuration error.
func NewAssistant(cfg ChatConfig, prompt PromptSource, metrics *Metrics) *Assistant {
	var client CompletionClient
	if cfg.APIKey != "" {
		oc := openai.DefaultConfig(cfg.APIKey)
		oc.BaseURL = cfg.BaseURL
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
		client = openai.NewClientWithConfig(oc)
	}
	return newAssistantWithClient(client, cfg, prompt, metrics)
}

func newAssistantWithClient(client CompletionClient, cfg ChatConfig, prompt PromptSource, metrics *Metrics) *Assistant {
	if prompt == nil {
		prompt = staticPrompt(DefaultSystemPrompt)
	}
	return &Assistant{client: client, prompt: prompt, cfg: cfg, metrics: metrics}
}

// BuildMessages validates the history, keeps the last HistoryWindow turns and
// prepends the system prompt.
func (a *Assistant) BuildMessages(history []ChatMessage) ([]openai.ChatCompletionMessage, error) {
	if len(history) == 0 {
		return nil, ErrEmptyHistory
	}
	for _, m := range history {
		if m.Role != openai.ChatMessageRoleUser && m.Role != openai.ChatMessageRoleAssistant {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRole, m.Role)
		}
	}

	if w := a.cfg.HistoryWindow; w > 0 && len(history) > w {
		history = history[len(history)-w:]
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: a.prompt.SystemPrompt(),
	})
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return msgs, nil
}

func (a *Assistant) completionRequest(msgs []openai.ChatCompletionMessage) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		Messages:    msgs,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
		TopP:        a.cfg.TopP,
		Stream:      false,
	}
}

// Reply sends the conversation upstream and returns the first completion.
// Validation failures are returned as-is; provider failures as *ChatError.
func (a *Assistant) Reply(ctx context.Context, history []ChatMessage) (Reply, error) {
	msgs, err := a.BuildMessages(history)
	if err != nil {
		return Reply{}, err
	}
	if a.client == nil {
		return Reply{}, &ChatError{Kind: KindConfig, Err: ErrMissingAPIKey}
	}

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, a.completionRequest(msgs))
	if a.metrics != nil {
		a.metrics.ObserveUpstream(time.Since(start))
	}
	if err != nil {
		return Reply{}, classifyProviderError(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Reply{}, &ChatError{Kind: KindEmpty, Err: ErrEmptyReply}
	}

	text := resp.Choices[0].Message.Content
	return Reply{Text: text, Speech: SpeechText(text)}, nil
}

// Ask is a one-shot single-turn question.
func (a *Assistant) Ask(ctx context.Context, question string) (Reply, error) {
	return a.Reply(ctx, []ChatMessage{{Role: openai.ChatMessageRoleUser, Content: question}})
}

func classifyProviderError(err error) *ChatError {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &ChatError{Kind: KindConfig, Status: status, Err: err}
	case http.StatusTooManyRequests:
		return &ChatError{Kind: KindRateLimit, Status: status, Err: err}
	default:
		return &ChatError{Kind: KindUpstream, Status: status, Err: err}
	}
}
