package reply

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Otitodev/wa-assist/config"
	"github.com/Otitodev/wa-assist/internal/domain"
	"github.com/Otitodev/wa-assist/internal/gateway"
	"github.com/Otitodev/wa-assist/internal/ingest"
	"github.com/Otitodev/wa-assist/internal/llm"
	"github.com/Otitodev/wa-assist/pkg/common"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(domain.Tables...); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestService_GenerateAndSend(t *testing.T) {
	db := testDB(t)
	events := ingest.NewGormEventStore(db)
	ledger := ingest.NewGormLedger(db)
	ctx := context.Background()

	var modelMessages []llm.Message
	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var payload struct {
			Messages []llm.Message `json:"messages"`
		}
		_ = json.Unmarshal(raw, &payload)
		modelMessages = payload.Messages
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"happy to help"}]}`))
	}))
	defer model.Close()

	var sentText string
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/message/sendText/acme-main" {
			raw, _ := io.ReadAll(r.Body)
			var body map[string]string
			_ = json.Unmarshal(raw, &body)
			sentText = body["text"]
			_, _ = w.Write([]byte(`{"key":{"id":"ECHO1"},"status":"PENDING"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	tenant := &domain.Tenant{
		ID:           common.UUIDint64(),
		InstanceName: "acme-main",
		EvoServerURL: gw.URL,
		EvoApikey:    "k",
	}
	if err := db.Create(tenant).Error; err != nil {
		t.Fatal(err)
	}

	// Prior history plus the inbound message being answered.
	chat := "555@s.whatsapp.net"
	for _, m := range []struct {
		id, text string
		fromMe   bool
	}{
		{"H1", "welcome aboard", true},
		{"H2", "what are your hours?", false},
	} {
		at := time.Now().UTC()
		if _, err := events.Append(ctx, &domain.MessageEvent{
			TenantID:   tenant.ID,
			ChatID:     chat,
			MessageID:  m.id,
			FromMe:     m.fromMe,
			Text:       m.text,
			OccurredAt: &at,
		}); err != nil {
			t.Fatal(err)
		}
	}

	registry, err := llm.NewRegistry(config.LlmConfig{Provider: "anthropic", AnthropicApikey: "k1", TimeoutSeconds: 5})
	if err != nil {
		t.Fatal(err)
	}
	registry.Register(llm.NewAnthropic(llm.Options{Apikey: "k1", BaseURL: model.URL}, 5*time.Second))

	svc, err := New(registry, gateway.NewClient(5*time.Second), events, ledger, "be helpful", 2)
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Close()

	label, err := svc.GenerateAndSend(ctx, tenant, chat, "H2", "what are your hours?")
	if err != nil {
		t.Fatal(err)
	}
	if label != domain.ActionAiReplied {
		t.Errorf("label: got %q", label)
	}
	if sentText != "happy to help" {
		t.Errorf("sent text: got %q", sentText)
	}

	// History runs oldest first with self-originated turns as assistant.
	if len(modelMessages) != 2 {
		t.Fatalf("model messages: got %d", len(modelMessages))
	}
	if modelMessages[0].Role != "assistant" || modelMessages[1].Role != "user" {
		t.Errorf("roles: got %q, %q", modelMessages[0].Role, modelMessages[1].Role)
	}

	// The gateway echo of the sent message must already be marked.
	dup, err := ledger.CheckAndRecord(ctx, tenant.ID, "ECHO1", ingest.EventTypeMessage)
	if err != nil {
		t.Fatal(err)
	}
	if !dup {
		t.Error("sent message id must be pre-marked against its own echo")
	}

	// The outbound answer is stored as a self-originated event.
	var outbound domain.MessageEvent
	if err := db.Where("message_id = ?", "ECHO1").First(&outbound).Error; err != nil {
		t.Fatal(err)
	}
	if !outbound.FromMe || outbound.Text != "happy to help" {
		t.Errorf("outbound event: %+v", outbound)
	}
}

func TestService_SendFailure(t *testing.T) {
	db := testDB(t)
	events := ingest.NewGormEventStore(db)
	ledger := ingest.NewGormLedger(db)
	ctx := context.Background()

	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"answer"}]}`))
	}))
	defer model.Close()
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer gw.Close()

	tenant := &domain.Tenant{
		ID:           common.UUIDint64(),
		InstanceName: "acme-main",
		EvoServerURL: gw.URL,
	}
	at := time.Now().UTC()
	if _, err := events.Append(ctx, &domain.MessageEvent{
		TenantID: tenant.ID, ChatID: "c", MessageID: "M1", Text: "hi", OccurredAt: &at,
	}); err != nil {
		t.Fatal(err)
	}

	registry, err := llm.NewRegistry(config.LlmConfig{Provider: "anthropic", AnthropicApikey: "k1", TimeoutSeconds: 5})
	if err != nil {
		t.Fatal(err)
	}
	registry.Register(llm.NewAnthropic(llm.Options{Apikey: "k1", BaseURL: model.URL}, 5*time.Second))

	svc, err := New(registry, gateway.NewClient(5*time.Second), events, ledger, "", 2)
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Close()

	label, err := svc.GenerateAndSend(ctx, tenant, "c", "M1", "hi")
	if err == nil {
		t.Fatal("expected send error")
	}
	if label != domain.ActionSendFailed {
		t.Errorf("label: got %q", label)
	}
}

func TestService_ProviderFailure(t *testing.T) {
	db := testDB(t)
	events := ingest.NewGormEventStore(db)
	ledger := ingest.NewGormLedger(db)

	registry, err := llm.NewRegistry(config.LlmConfig{Provider: "anthropic", AnthropicApikey: "k1", TimeoutSeconds: 5})
	if err != nil {
		t.Fatal(err)
	}
	svc, err := New(registry, gateway.NewClient(time.Second), events, ledger, "", 2)
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Close()

	tenant := &domain.Tenant{ID: common.UUIDint64(), LlmProvider: "nonexistent"}
	label, err := svc.GenerateAndSend(context.Background(), tenant, "c", "M1", "hi")
	if err == nil {
		t.Fatal("expected provider error")
	}
	if label != domain.ActionReplyFailed {
		t.Errorf("label: got %q", label)
	}
}
