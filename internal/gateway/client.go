// Package gateway is the HTTP client for the external WhatsApp gateway
// (Evolution API compatible). Each call is routed per tenant: base URL and
// apikey come from the tenant record, never from process config.
package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/guonaihong/gout"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway status %d: %s", e.StatusCode, e.Body)
}

// Client talks to one gateway server. Credentials are passed per call so a
// single client serves every tenant.
type Client struct {
	timeout time.Duration
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{timeout: timeout}
}

// NormalizeChatID converts a stored chat id into the number form the send
// endpoint expects. Linked-device ids (@lid) must be sent whole; regular
// ids send only the part before the @.
func NormalizeChatID(chatID string) string {
	if strings.HasSuffix(chatID, "@lid") {
		return chatID
	}
	if i := strings.Index(chatID, "@"); i > 0 {
		return chatID[:i]
	}
	return chatID
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type sendTextResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
	Status string `json:"status"`
}

// SendText delivers a text message through the tenant's instance and returns
// the gateway-assigned message id when one comes back.
func (c *Client) SendText(ctx context.Context, serverURL, apikey, instance, chatID, text string) (string, error) {
	var (
		resp sendTextResponse
		body string
		code int
	)
	url := fmt.Sprintf("%s/message/sendText/%s", strings.TrimRight(serverURL, "/"), instance)
	err := gout.POST(url).
		WithContext(ctx).
		SetTimeout(c.timeout).
		SetHeader(gout.H{"apikey": apikey}).
		SetJSON(sendTextRequest{Number: NormalizeChatID(chatID), Text: text}).
		BindBody(&body).
		Code(&code).
		Do()
	if err != nil {
		return "", errors.Wrap(err, "gateway sendText")
	}
	if code < 200 || code > 299 {
		return "", &APIError{StatusCode: code, Body: body}
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		// Some gateway builds answer 2xx with a bare string; the send
		// still succeeded.
		zap.L().Debug("gateway sendText response not json",
			zap.String("namespace", "gateway"), zap.String("instance", instance))
		return "", nil
	}
	return resp.Key.ID, nil
}

// MarkAsRead acknowledges a message in the conversation so the counterpart
// sees the read receipt before the assistant answers.
func (c *Client) MarkAsRead(ctx context.Context, serverURL, apikey, instance, chatID, messageID string) error {
	var code int
	url := fmt.Sprintf("%s/chat/markMessageAsRead/%s", strings.TrimRight(serverURL, "/"), instance)
	payload := gout.H{
		"readMessages": []gout.H{
			{"remoteJid": chatID, "fromMe": false, "id": messageID},
		},
	}
	err := gout.POST(url).
		WithContext(ctx).
		SetTimeout(c.timeout).
		SetHeader(gout.H{"apikey": apikey}).
		SetJSON(payload).
		Code(&code).
		Do()
	if err != nil {
		return errors.Wrap(err, "gateway markAsRead")
	}
	if code < 200 || code > 299 {
		return &APIError{StatusCode: code}
	}
	return nil
}

// ConnectionState probes whether the tenant's instance is connected.
func (c *Client) ConnectionState(ctx context.Context, serverURL, apikey, instance string) (string, error) {
	var (
		resp struct {
			Instance struct {
				State string `json:"state"`
			} `json:"instance"`
		}
		code int
	)
	url := fmt.Sprintf("%s/instance/connectionState/%s", strings.TrimRight(serverURL, "/"), instance)
	err := gout.GET(url).
		WithContext(ctx).
		SetTimeout(c.timeout).
		SetHeader(gout.H{"apikey": apikey}).
		BindJSON(&resp).
		Code(&code).
		Do()
	if err != nil {
		return "", errors.Wrap(err, "gateway connectionState")
	}
	if code < 200 || code > 299 {
		return "", &APIError{StatusCode: code}
	}
	return resp.Instance.State, nil
}
