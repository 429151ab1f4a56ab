package llm

import (
	"context"
	"strings"
	"time"

	"github.com/guonaihong/gout"
	"github.com/pkg/errors"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicDefaultModel   = "claude-3-5-haiku-latest"
	anthropicVersion        = "2023-06-01"
)

// Anthropic calls the Anthropic messages API.
type Anthropic struct {
	opts    Options
	timeout time.Duration
}

func NewAnthropic(opts Options, timeout time.Duration) *Anthropic {
	if opts.BaseURL == "" {
		opts.BaseURL = anthropicDefaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = anthropicDefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Anthropic{opts: opts, timeout: timeout}
}

func (a *Anthropic) Name() string {
	return "anthropic"
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *Anthropic) Generate(ctx context.Context, req *Request) (string, error) {
	payload := gout.H{
		"model":      a.opts.Model,
		"max_tokens": a.opts.MaxTokens,
		"system":     req.System,
		"messages":   req.Messages,
	}
	var (
		body string
		code int
	)
	err := gout.POST(strings.TrimRight(a.opts.BaseURL, "/") + "/v1/messages").
		WithContext(ctx).
		SetTimeout(a.timeout).
		SetHeader(gout.H{
			"x-api-key":         a.opts.Apikey,
			"anthropic-version": anthropicVersion,
		}).
		SetJSON(payload).
		BindBody(&body).
		Code(&code).
		Do()
	if err != nil {
		return "", errors.Wrap(err, "anthropic request")
	}
	var resp anthropicResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return "", errors.Wrap(err, "anthropic response decode")
	}
	if code < 200 || code > 299 {
		msg := body
		if resp.Error != nil {
			msg = resp.Error.Message
		}
		return "", errors.Errorf("anthropic status %d: %s", code, msg)
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errors.New("anthropic returned empty completion")
	}
	return text, nil
}
