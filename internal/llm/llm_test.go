package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/Otitodev/wa-assist/config"
	"github.com/Otitodev/wa-assist/internal/domain"
)

func TestDecodeOptions_WeakTyping(t *testing.T) {
	opts, err := DecodeOptions(map[string]interface{}{
		"apikey":     "k1",
		"model":      "test-model",
		"max_tokens": "512",
		"unknown":    "ignored",
	})
	if err != nil {
		t.Fatal(err)
	}
	if opts.Apikey != "k1" || opts.Model != "test-model" {
		t.Errorf("options: %+v", opts)
	}
	if opts.MaxTokens != 512 {
		t.Errorf("string max_tokens should coerce, got %d", opts.MaxTokens)
	}
}

func TestAnthropic_Generate(t *testing.T) {
	var gotModel, gotKey, gotVersion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path: got %q", r.URL.Path)
		}
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		raw, _ := io.ReadAll(r.Body)
		var payload map[string]interface{}
		_ = json.Unmarshal(raw, &payload)
		gotModel, _ = payload["model"].(string)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Hello! "},{"type":"text","text":"How can I help?"}]}`))
	}))
	defer srv.Close()

	p := NewAnthropic(Options{Apikey: "k1", BaseURL: srv.URL, Model: "m1"}, 5*time.Second)
	text, err := p.Generate(context.Background(), &Request{
		System:   "be brief",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if text != "Hello! How can I help?" {
		t.Errorf("text: got %q", text)
	}
	if gotModel != "m1" || gotKey != "k1" || gotVersion == "" {
		t.Errorf("request: model=%q key=%q version=%q", gotModel, gotKey, gotVersion)
	}
}

func TestAnthropic_GenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	p := NewAnthropic(Options{Apikey: "k1", BaseURL: srv.URL}, 5*time.Second)
	_, err := p.Generate(context.Background(), &Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestOpenAI_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path: got %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer k2" {
			t.Errorf("auth: got %q", got)
		}
		raw, _ := io.ReadAll(r.Body)
		var payload struct {
			Messages []Message `json:"messages"`
		}
		_ = json.Unmarshal(raw, &payload)
		if len(payload.Messages) == 0 || payload.Messages[0].Role != "system" {
			t.Errorf("system prompt must lead the messages, got %+v", payload.Messages)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"sure thing"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAI(Options{Apikey: "k2", BaseURL: srv.URL}, 5*time.Second)
	text, err := p.Generate(context.Background(), &Request{
		System:   "be brief",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if text != "sure thing" {
		t.Errorf("text: got %q", text)
	}
}

func TestRegistry_ForTenant(t *testing.T) {
	reg, err := NewRegistry(config.LlmConfig{
		Provider:        "anthropic",
		AnthropicApikey: "k1",
		OpenaiApikey:    "k2",
		TimeoutSeconds:  5,
	})
	if err != nil {
		t.Fatal(err)
	}

	p, err := reg.ForTenant(&domain.Tenant{})
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "anthropic" {
		t.Errorf("default provider: got %q", p.Name())
	}

	p, err = reg.ForTenant(&domain.Tenant{LlmProvider: "openai"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "openai" {
		t.Errorf("tenant provider: got %q", p.Name())
	}

	_, err = reg.ForTenant(&domain.Tenant{LlmProvider: "nonexistent"})
	if !errors.Is(err, ErrNoProvider) {
		t.Errorf("expected ErrNoProvider, got %v", err)
	}
}

func TestRegistry_NoProvidersConfigured(t *testing.T) {
	if _, err := NewRegistry(config.LlmConfig{Provider: "anthropic"}); err == nil {
		t.Error("expected error with no apikeys")
	}
}
