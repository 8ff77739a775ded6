package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func sampleContext() ThoughtContext {
	return ThoughtContext{
		PersonaID:   "ayame",
		ThoughtText: "the lantern kept flickering all night",
		Emotions:    map[string]float64{"curious": 40, "mysterious": 62},
		Mood:        "mysterious",
		STMCount:    4,
		GoldenCount: 7,
	}
}

func TestOpenAIProvider_SatisfiesInterface(t *testing.T) {
	p := New(Config{APIKey: "test-key"})
	var _ Provider = p
}

func TestOpenAIProvider_SuccessfulVerdict(t *testing.T) {
	verdict := `{
		"word": "flicker",
		"fate": "ascended",
		"reasoning": "Some lights matter more for almost going out.",
		"realization": {
			"word": "lambence",
			"color_hex": "#f4c542",
			"face_description": "the glow that persists after the flame is gone"
		}
	}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key-abc" {
			t.Errorf("unexpected Authorization: %s", r.Header.Get("Authorization"))
		}

		var req oaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("expected json_object response format, got %+v", req.ResponseFormat)
		}

		if len(req.Messages) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(req.Messages))
		}
		if req.Messages[0].Role != "system" {
			t.Errorf("first message should be system, got %q", req.Messages[0].Role)
		}
		if !strings.Contains(req.Messages[0].Content, `"fate"`) {
			t.Errorf("system prompt should describe the fate field, got %q", req.Messages[0].Content)
		}
		if !strings.Contains(req.Messages[0].Content, "ayame") {
			t.Errorf("system prompt should name the persona, got %q", req.Messages[0].Content)
		}

		if req.Messages[1].Role != "user" {
			t.Errorf("second message should be user, got %q", req.Messages[1].Role)
		}
		if !strings.Contains(req.Messages[1].Content, "the lantern kept flickering") {
			t.Errorf("user message should carry the thought, got %q", req.Messages[1].Content)
		}
		if !strings.Contains(req.Messages[1].Content, "curious 40, mysterious 62") {
			t.Errorf("user message should carry the emotion readout, got %q", req.Messages[1].Content)
		}

		resp := oaiResponse{
			Choices: []oaiChoice{
				{Message: oaiMessage{Role: "assistant", Content: verdict}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := New(Config{APIKey: "test-key-abc", BaseURL: srv.URL})

	v, err := p.Judge(context.Background(), sampleContext())
	if err != nil {
		t.Fatalf("Judge() error: %v", err)
	}
	if v.Word != "flicker" || v.Fate != "ascended" {
		t.Errorf("verdict = %+v", v)
	}
	if v.Realization == nil || v.Realization.Word != "lambence" || v.Realization.ColorHex != "#f4c542" {
		t.Errorf("realization = %+v", v.Realization)
	}
}

func TestOpenAIProvider_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		resp := oaiResponse{
			Error: &struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			}{
				Message: "server error",
				Type:    "server_error",
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := New(Config{APIKey: "key", BaseURL: srv.URL})
	_, err := p.Judge(context.Background(), sampleContext())
	if err == nil {
		t.Fatal("expected error for API error response")
	}
}

func TestOpenAIProvider_RateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		resp := oaiResponse{
			Error: &struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			}{
				Message: "rate limit",
				Type:    "rate_limit_error",
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := New(Config{APIKey: "key", BaseURL: srv.URL})
	_, err := p.Judge(context.Background(), sampleContext())
	if err == nil {
		t.Fatal("expected error for rate limit")
	}
	if !errors.Is(err, ErrRateLimit) {
		t.Errorf("error should wrap ErrRateLimit, got %v", err)
	}
}

func TestOpenAIProvider_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := oaiResponse{Choices: []oaiChoice{}}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := New(Config{APIKey: "key", BaseURL: srv.URL})
	_, err := p.Judge(context.Background(), sampleContext())
	if err == nil {
		t.Fatal("expected error for no choices")
	}
}

func TestOpenAIProvider_MalformedVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := oaiResponse{
			Choices: []oaiChoice{
				{Message: oaiMessage{Role: "assistant", Content: "Sure! Here is the fate:"}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := New(Config{APIKey: "key", BaseURL: srv.URL})
	_, err := p.Judge(context.Background(), sampleContext())
	if err == nil {
		t.Fatal("expected error for non-JSON verdict content")
	}
	if !errors.Is(err, ErrMalformedOutput) {
		t.Errorf("error should wrap ErrMalformedOutput, got %v", err)
	}
}

func TestOpenAIProvider_MalformedEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{broken json`))
	}))
	defer srv.Close()

	p := New(Config{APIKey: "key", BaseURL: srv.URL})
	_, err := p.Judge(context.Background(), sampleContext())
	if err == nil {
		t.Fatal("expected error for malformed envelope")
	}
}

func TestOpenAIProvider_CustomModel(t *testing.T) {
	var receivedModel string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req oaiRequest
		json.NewDecoder(r.Body).Decode(&req)
		receivedModel = req.Model

		resp := oaiResponse{
			Choices: []oaiChoice{
				{Message: oaiMessage{Role: "assistant", Content: `{"word":"w","fate":"fading","reasoning":"r"}`}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := New(Config{APIKey: "key", BaseURL: srv.URL, Model: "gpt-4o"})
	_, err := p.Judge(context.Background(), sampleContext())
	if err != nil {
		t.Fatalf("Judge() error: %v", err)
	}
	if receivedModel != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %q", receivedModel)
	}
}

// --- formatEmotions tests ---

func TestFormatEmotions_StableOrder(t *testing.T) {
	snap := map[string]float64{"playful": 55, "angry": 10, "curious": 72}
	got := formatEmotions(snap)
	want := "angry 10, curious 72, playful 55"
	if got != want {
		t.Errorf("formatEmotions() = %q, want %q", got, want)
	}
}

func TestFormatEmotions_Empty(t *testing.T) {
	if got := formatEmotions(nil); got != "(nothing recorded)" {
		t.Errorf("formatEmotions(nil) = %q", got)
	}
}
