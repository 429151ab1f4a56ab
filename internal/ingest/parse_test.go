package ingest

import (
	"testing"
	"time"

	"github.com/pkg/errors"
)

const sampleUpsert = `{
	"event": "messages.upsert",
	"instance": "acme-main",
	"data": {
		"key": {"remoteJid": "5511999999999@s.whatsapp.net", "fromMe": false, "id": "3EB0C8A7D2"},
		"pushName": "Maria",
		"messageType": "conversation",
		"messageTimestamp": 1735689600,
		"message": {"conversation": "hello there"}
	}
}`

func TestParseWebhook_MessageUpsert(t *testing.T) {
	evt, err := ParseWebhook([]byte(sampleUpsert))
	if err != nil {
		t.Fatal(err)
	}
	if !evt.IsMessage() {
		t.Fatal("expected message event")
	}
	if evt.Instance != "acme-main" {
		t.Errorf("instance: got %s", evt.Instance)
	}
	if evt.ChatID != "5511999999999@s.whatsapp.net" {
		t.Errorf("chat id: got %s", evt.ChatID)
	}
	if evt.MessageID != "3EB0C8A7D2" {
		t.Errorf("message id: got %s", evt.MessageID)
	}
	if evt.FromMe {
		t.Error("fromMe should be false")
	}
	if evt.Text != "hello there" {
		t.Errorf("text: got %q", evt.Text)
	}
	if evt.OccurredAt == nil || !evt.OccurredAt.Equal(time.Unix(1735689600, 0)) {
		t.Errorf("occurred at: got %v", evt.OccurredAt)
	}
}

func TestParseWebhook_ExtendedText(t *testing.T) {
	body := `{"event":"messages.upsert","instance":"acme-main","data":{
		"key":{"remoteJid":"555@s.whatsapp.net","fromMe":true,"id":"MSG2"},
		"message":{"extendedTextMessage":{"text":"quoted reply"}}}}`
	evt, err := ParseWebhook([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	if evt.Text != "quoted reply" {
		t.Errorf("text: got %q", evt.Text)
	}
	if !evt.FromMe {
		t.Error("fromMe should be true")
	}
}

func TestParseWebhook_MissingFromMe(t *testing.T) {
	body := `{"event":"messages.upsert","instance":"acme-main","data":{
		"key":{"remoteJid":"555@s.whatsapp.net","id":"MSG3"},
		"message":{"conversation":"hi"}}}`
	evt, err := ParseWebhook([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	if evt.FromMe {
		t.Error("missing fromMe must default to counterpart-originated")
	}
}

func TestParseWebhook_NonMessageEvent(t *testing.T) {
	body := `{"event":"connection.update","instance":"acme-main","data":{"state":"open"}}`
	evt, err := ParseWebhook([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	if evt.IsMessage() {
		t.Error("connection.update is not a message event")
	}
}

func TestParseWebhook_Malformed(t *testing.T) {
	cases := []string{
		`not json at all`,
		`{}`,
		`{"event":"messages.upsert"}`,
		`{"event":"messages.upsert","instance":"acme","data":{"key":{"remoteJid":"x@s.whatsapp.net"}}}`,
		`{"event":"messages.upsert","instance":"acme","data":{"key":{"id":"MSG"}}}`,
	}
	for _, body := range cases {
		if _, err := ParseWebhook([]byte(body)); !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("body %q: expected ErrMalformedPayload, got %v", body, err)
		}
	}
}

func TestParseWebhook_StringTimestamp(t *testing.T) {
	body := `{"event":"messages.upsert","instance":"acme-main","data":{
		"key":{"remoteJid":"555@s.whatsapp.net","fromMe":false,"id":"MSG4"},
		"messageTimestamp":"1735689600",
		"message":{"conversation":"hi"}}}`
	evt, err := ParseWebhook([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	if evt.OccurredAt == nil || !evt.OccurredAt.Equal(time.Unix(1735689600, 0)) {
		t.Errorf("occurred at: got %v", evt.OccurredAt)
	}
}

func TestParseWebhook_BadTimestampDegrades(t *testing.T) {
	body := `{"event":"messages.upsert","instance":"acme-main","data":{
		"key":{"remoteJid":"555@s.whatsapp.net","fromMe":false,"id":"MSG5"},
		"messageTimestamp":"not-a-date-892xz",
		"message":{"conversation":"hi"}}}`
	evt, err := ParseWebhook([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	if evt.OccurredAt != nil {
		t.Errorf("unparseable timestamp should degrade to nil, got %v", evt.OccurredAt)
	}
}
