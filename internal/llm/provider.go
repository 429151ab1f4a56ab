// Package llm generates assistant replies through hosted model APIs.
package llm

import (
	"context"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoProvider marks a tenant whose configured provider is unknown.
var ErrNoProvider = errors.New("no such llm provider")

// Message is one turn of conversation context, oldest first.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Request is one reply-generation call.
type Request struct {
	System   string
	Messages []Message
}

// Provider generates one assistant reply from conversation context.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req *Request) (string, error)
}

// Options configures a provider instance. Decoded from loosely-typed config
// maps, so every field is optional with a provider-specific default.
type Options struct {
	Apikey    string `mapstructure:"apikey"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}
