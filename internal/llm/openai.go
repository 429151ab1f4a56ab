package llm

import (
	"context"
	"strings"
	"time"

	"github.com/guonaihong/gout"
	"github.com/pkg/errors"
)

const (
	openaiDefaultBaseURL = "https://api.openai.com"
	openaiDefaultModel   = "gpt-4o-mini"
)

// OpenAI calls the OpenAI chat completions API.
type OpenAI struct {
	opts    Options
	timeout time.Duration
}

func NewOpenAI(opts Options, timeout time.Duration) *OpenAI {
	if opts.BaseURL == "" {
		opts.BaseURL = openaiDefaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = openaiDefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OpenAI{opts: opts, timeout: timeout}
}

func (o *OpenAI) Name() string {
	return "openai"
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (o *OpenAI) Generate(ctx context.Context, req *Request) (string, error) {
	// The system prompt rides as the first chat message here.
	messages := make([]Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, req.Messages...)

	payload := gout.H{
		"model":      o.opts.Model,
		"max_tokens": o.opts.MaxTokens,
		"messages":   messages,
	}
	var (
		body string
		code int
	)
	err := gout.POST(strings.TrimRight(o.opts.BaseURL, "/") + "/v1/chat/completions").
		WithContext(ctx).
		SetTimeout(o.timeout).
		SetHeader(gout.H{"Authorization": "Bearer " + o.opts.Apikey}).
		SetJSON(payload).
		BindBody(&body).
		Code(&code).
		Do()
	if err != nil {
		return "", errors.Wrap(err, "openai request")
	}
	var resp openaiResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return "", errors.Wrap(err, "openai response decode")
	}
	if code < 200 || code > 299 {
		msg := body
		if resp.Error != nil {
			msg = resp.Error.Message
		}
		return "", errors.Errorf("openai status %d: %s", code, msg)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("openai returned empty completion")
	}
	return text, nil
}
