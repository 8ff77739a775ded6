package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/bdobrica/Kokoro/common/redact"
)

const (
	defaultOracleBase  = "https://api.openai.com/v1"
	defaultOracleModel = "gpt-4o-mini"
	defaultTimeout     = 30 * time.Second
)

// Config configures the OpenAI-compatible oracle provider.
type Config struct {
	// APIKey is the bearer token used to authenticate against the API.
	APIKey string

	// BaseURL overrides the API endpoint.  Useful for local models (Ollama),
	// Azure OpenAI, or any other OpenAI-compatible endpoint.
	// Defaults to https://api.openai.com/v1 when empty.
	BaseURL string

	// Model is the chat model to use.
	// Defaults to gpt-4o-mini when empty (cost-efficient, sufficient for
	// single-thought judgement).
	Model string

	// Timeout is the HTTP request timeout.  Defaults to 30 s.
	Timeout time.Duration
}

// openAIProvider implements Provider using the OpenAI chat completions API
// with JSON-mode output to guarantee a parseable Verdict.
type openAIProvider struct {
	cfg    Config
	client *http.Client
}

// New returns a Provider backed by the OpenAI (or compatible) chat API.
// The returned provider is safe for concurrent use.
func New(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOracleBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultOracleModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &openAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- minimal OpenAI wire types ---

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiRequest struct {
	Model          string       `json:"model"`
	Messages       []oaiMessage `json:"messages"`
	MaxTokens      int          `json:"max_tokens,omitempty"`
	ResponseFormat *oaiFormat   `json:"response_format,omitempty"`
}

type oaiFormat struct {
	Type string `json:"type"` // "json_object"
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

// judgementPromptTmpl is the instruction set sent as the "system" message.
// Four printf verbs are substituted at call time:
//  1. %s: persona ID
//  2. %s: current mood
//  3. %d: short-term memory occupancy
//  4. %d: golden memories held so far
const judgementPromptTmpl = `You are the inner voice of %s, a persona whose thoughts age through a
short-term memory queue. One thought has reached the middle of the queue and
you must decide its fate before it slips away.

Current mood: %s
Thoughts held in short-term memory: %d
Golden memories kept so far: %d

RULES (strict, do not deviate):
1. Respond ONLY with valid JSON. No markdown, no code fences, no text outside JSON.
2. "fate" must be exactly one of "ascended", "promoted", "fading".
3. Ascension is rare. Reserve it for a thought that genuinely changed how the
   persona sees the world; an ascended thought becomes a permanent golden memory.
4. Promote a thought that deserves more time in mind but is not yet formative.
   A promoted thought returns to the front of the queue and ages again.
5. Let ordinary thoughts fade. Fading is the common, healthy outcome.
6. "word" is one single evocative word naming what the thought was about.
7. "reasoning" is one or two sentences, written in character.
8. Include "realization" ONLY with fate "ascended", and only when the thought
   taught a feeling that deserves a word of its own.

JSON schema for your response (omit "realization" unless minting one):
{
  "word":      "<single word>",
  "fate":      "ascended" | "promoted" | "fading",
  "reasoning": "<one or two sentences>",
  "realization": {
    "word":             "<the new word>",
    "color_hex":        "#rrggbb",
    "face_description": "<what the word means>"
  }
}
`

// Judge sends the thought context to the model and returns its raw verdict.
func (p *openAIProvider) Judge(ctx context.Context, tc ThoughtContext) (*Verdict, error) {
	system := fmt.Sprintf(judgementPromptTmpl, tc.PersonaID, tc.Mood, tc.STMCount, tc.GoldenCount)
	user := fmt.Sprintf("Thought: %s\nFelt at the time: %s", tc.ThoughtText, formatEmotions(tc.Emotions))

	body := oaiRequest{
		Model: p.cfg.Model,
		Messages: []oaiMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:      512,
		ResponseFormat: &oaiFormat{Type: "json_object"},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("oracle: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/chat/completions",
		bytes.NewReader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("oracle: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("oracle: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("oracle: read response body: %w", err)
	}

	var apiResp oaiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("oracle: decode API response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		msg := ""
		if apiResp.Error != nil {
			msg = redact.String(apiResp.Error.Message, p.cfg.APIKey)
		}
		return nil, fmt.Errorf("oracle: rate limit (HTTP 429): %s: %w", msg, ErrRateLimit)
	}
	if apiResp.Error != nil {
		// Some providers echo the offending key back in auth error messages.
		msg := redact.String(apiResp.Error.Message, p.cfg.APIKey)
		return nil, fmt.Errorf("oracle: API error (%s): %s", apiResp.Error.Type, msg)
	}

	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("oracle: no choices returned (HTTP %d)", resp.StatusCode)
	}

	content := apiResp.Choices[0].Message.Content
	var v Verdict
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return nil, fmt.Errorf("%w: %v (raw content: %.200s)", ErrMalformedOutput, err, content)
	}

	return &v, nil
}

// formatEmotions renders an emotion snapshot as "name intensity" pairs in a
// stable order, so identical thoughts produce identical prompts.
func formatEmotions(snap map[string]float64) string {
	if len(snap) == 0 {
		return "(nothing recorded)"
	}
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s %.0f", name, snap[name]))
	}
	return strings.Join(parts, ", ")
}
