package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrMalformedPayload marks a webhook body that cannot be ingested.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// EventTypeMessage is the gateway event carrying new messages.
const EventTypeMessage = "messages.upsert"

// InboundEvent is the canonical form of one gateway webhook delivery.
type InboundEvent struct {
	EventType   string
	Instance    string
	ChatID      string
	MessageID   string
	FromMe      bool
	MessageType string
	Text        string
	PushName    string
	OccurredAt  *time.Time
	Raw         string
}

// IsMessage reports whether the event carries a message to process.
func (e *InboundEvent) IsMessage() bool {
	return e.EventType == EventTypeMessage
}

type webhookEnvelope struct {
	Event    string `json:"event"`
	Instance string `json:"instance"`
	Data     struct {
		Key struct {
			RemoteJid string `json:"remoteJid"`
			FromMe    *bool  `json:"fromMe"`
			ID        string `json:"id"`
		} `json:"key"`
		PushName         string              `json:"pushName"`
		MessageType      string              `json:"messageType"`
		MessageTimestamp jsoniter.RawMessage `json:"messageTimestamp"`
		Message          struct {
			Conversation        string `json:"conversation"`
			ExtendedTextMessage *struct {
				Text string `json:"text"`
			} `json:"extendedTextMessage"`
		} `json:"message"`
	} `json:"data"`
}

// ParseWebhook decodes a gateway webhook body into its canonical form.
// Non-message events (connection updates, presence and so on) parse
// successfully with IsMessage()==false so callers can acknowledge and drop
// them. Message events missing chat or message id fail with
// ErrMalformedPayload.
func ParseWebhook(body []byte) (*InboundEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Wrap(ErrMalformedPayload, err.Error())
	}
	if env.Event == "" || env.Instance == "" {
		return nil, errors.Wrap(ErrMalformedPayload, "missing event or instance")
	}

	evt := &InboundEvent{
		EventType: env.Event,
		Instance:  env.Instance,
		Raw:       string(body),
	}
	if !evt.IsMessage() {
		return evt, nil
	}

	evt.ChatID = env.Data.Key.RemoteJid
	evt.MessageID = env.Data.Key.ID
	if evt.ChatID == "" || evt.MessageID == "" {
		return nil, errors.Wrap(ErrMalformedPayload, "message event missing chat or message id")
	}

	// A missing fromMe flag is treated as counterpart-originated: wrongly
	// pausing a session on a guess would silence the assistant.
	if env.Data.Key.FromMe != nil {
		evt.FromMe = *env.Data.Key.FromMe
	}
	evt.PushName = env.Data.PushName
	evt.MessageType = env.Data.MessageType
	evt.Text = env.Data.Message.Conversation
	if evt.Text == "" && env.Data.Message.ExtendedTextMessage != nil {
		evt.Text = env.Data.Message.ExtendedTextMessage.Text
	}
	evt.OccurredAt = parseTimestamp(env.Data.MessageTimestamp)
	return evt, nil
}

// parseTimestamp accepts the timestamp variants gateways emit: unix seconds
// as a number, unix seconds as a quoted string, or a formatted date string.
// Unparseable values degrade to nil rather than failing the whole event.
func parseTimestamp(raw jsoniter.RawMessage) *time.Time {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		t := time.Unix(secs, 0).UTC()
		return &t
	}
	if t, err := dateparse.ParseAny(s); err == nil {
		t = t.UTC()
		return &t
	}
	return nil
}
