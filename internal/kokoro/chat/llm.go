package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bdobrica/Kokoro/common/redact"
)

const (
	defaultChatBase    = "https://api.openai.com/v1"
	defaultChatModel   = "gpt-4o-mini"
	defaultChatTimeout = 30 * time.Second
	defaultTemperature = 0.8
)

// LLMConfig configures the LLM-based responder.
type LLMConfig struct {
	// APIKey is the bearer token for authentication.
	APIKey string

	// BaseURL overrides the API endpoint. Defaults to https://api.openai.com/v1.
	BaseURL string

	// Model is the chat model to use. Defaults to gpt-4o-mini (cheap, fast).
	Model string

	// Temperature controls reply variety. Defaults to 0.8; persona cards
	// usually override it.
	Temperature float64

	// Timeout is the HTTP request timeout. Defaults to 30 s.
	Timeout time.Duration
}

// LLMResponder implements Responder using an OpenAI-compatible chat
// completions API. The oracle and the responder share the endpoint style,
// so one API key runs the whole persona.
type LLMResponder struct {
	cfg    LLMConfig
	client *http.Client
}

// NewLLM creates a Responder backed by an OpenAI-compatible chat API.
// The returned responder is safe for concurrent use.
func NewLLM(cfg LLMConfig) *LLMResponder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultChatBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultChatModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultChatTimeout
	}
	return &LLMResponder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- minimal OpenAI wire types ---

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

// Respond renders the persona context into a system prompt and asks the
// model for one in-character reply.
func (r *LLMResponder) Respond(ctx context.Context, req Request) (string, error) {
	msgs := make([]chatMessage, 0, len(req.History)+2)
	msgs = append(msgs, chatMessage{Role: "system", Content: buildSystemPrompt(req)})
	for _, m := range req.History {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: req.UserText})

	body := chatRequest{
		Model:       r.cfg.Model,
		Messages:    msgs,
		MaxTokens:   512,
		Temperature: r.cfg.Temperature,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("chat: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.cfg.BaseURL+"/chat/completions",
		bytes.NewReader(data),
	)
	if err != nil {
		return "", fmt.Errorf("chat: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("chat: read response body: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("chat: decode response: %w", err)
	}

	if chatResp.Error != nil {
		// Some providers echo the offending key back in auth error messages.
		msg := redact.String(chatResp.Error.Message, r.cfg.APIKey)
		if resp.StatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("chat: rate limit (HTTP 429): %s", msg)
		}
		return "", fmt.Errorf("chat: API error (%s): %s", chatResp.Error.Type, msg)
	}

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("chat: unexpected HTTP status %d", resp.StatusCode)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("chat: no choices returned")
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

// buildSystemPrompt weaves the persona's inner state into its card prompt.
// Sections with nothing to say are omitted entirely.
func buildSystemPrompt(req Request) string {
	var b strings.Builder
	b.WriteString(req.SystemPrompt)

	if req.Mood != "" {
		fmt.Fprintf(&b, "\n\nYour current mood is %s. Let it color your reply without announcing it.", req.Mood)
	}

	if len(req.RecentThoughts) > 0 {
		b.WriteString("\n\nThoughts drifting through your mind right now (let them surface naturally, never list them):")
		for _, text := range req.RecentThoughts {
			fmt.Fprintf(&b, "\n- %s", text)
		}
	}

	if len(req.GoldenMemories) > 0 {
		b.WriteString("\n\nMemories you hold dear (draw on them when they fit, never recite them):")
		for _, text := range req.GoldenMemories {
			fmt.Fprintf(&b, "\n- %s", text)
		}
	}

	if len(req.Vocabulary) > 0 {
		b.WriteString("\n\nWords you have coined for feelings (use them naturally when they apply):")
		for _, w := range req.Vocabulary {
			fmt.Fprintf(&b, "\n- %s: %s", w.Word, w.Definition)
		}
	}

	if req.PersonaName != "" {
		fmt.Fprintf(&b, "\n\nAlways answer as %s, in one short conversational message.", req.PersonaName)
	}

	return b.String()
}

// Compile-time interface satisfaction check.
var _ Responder = (*LLMResponder)(nil)
