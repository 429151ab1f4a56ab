package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/Otitodev/wa-assist/internal/domain"
)

type stubReplier struct {
	calls int
	label string
	err   error
}

func (s *stubReplier) GenerateAndSend(ctx context.Context, tenant *domain.Tenant, chatID, messageID, text string) (string, error) {
	s.calls++
	if s.err != nil {
		return s.label, s.err
	}
	return domain.ActionAiReplied, nil
}

func testPipeline(t *testing.T, replier Replier) (*Pipeline, *GormSessionRegistry, *GormLedger, *domain.Tenant) {
	t.Helper()
	db := testDB(t)
	tenant := testTenant(t, db, "acme-main")
	sessions := NewGormSessionRegistry(db)
	ledger := NewGormLedger(db)
	p := NewPipeline(NewGormTenantResolver(db), ledger, NewGormEventStore(db), sessions, replier, nil, 5*time.Second)
	return p, sessions, ledger, tenant
}

func webhookBody(instance, msgID string, fromMe bool, text string) []byte {
	return []byte(fmt.Sprintf(`{"event":"messages.upsert","instance":%q,"data":{
		"key":{"remoteJid":"111@s.whatsapp.net","fromMe":%v,"id":%q},
		"messageTimestamp":1735689600,
		"message":{"conversation":%q}}}`, instance, fromMe, msgID, text))
}

func TestPipeline_ReplyPath(t *testing.T) {
	replier := &stubReplier{}
	p, _, _, _ := testPipeline(t, replier)

	res, err := p.Ingest(context.Background(), webhookBody("acme-main", "MSG1", false, "hi"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != domain.ActionAiReplied {
		t.Errorf("action: got %q", res.Action)
	}
	if replier.calls != 1 {
		t.Errorf("replier calls: got %d", replier.calls)
	}
}

func TestPipeline_HumanTakeover(t *testing.T) {
	replier := &stubReplier{}
	p, sessions, _, tenant := testPipeline(t, replier)
	ctx := context.Background()

	// Operator writes: session pauses, no reply.
	res, err := p.Ingest(ctx, webhookBody("acme-main", "MSG1", true, "let me handle this"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != domain.ActionPaused {
		t.Fatalf("action: got %q", res.Action)
	}
	if replier.calls != 0 {
		t.Error("operator message must not trigger a reply")
	}
	sess, err := sessions.Get(ctx, tenant.ID, "111@s.whatsapp.net")
	if err != nil {
		t.Fatal(err)
	}
	if !sess.IsPaused || sess.PauseReason != domain.PauseReasonHumanTakeover {
		t.Errorf("session state: paused=%v reason=%q", sess.IsPaused, sess.PauseReason)
	}
	if sess.LastHumanAt == nil {
		t.Error("operator message must set last_human_at")
	}

	// Customer writes while paused: stored but ignored.
	res, err = p.Ingest(ctx, webhookBody("acme-main", "MSG2", false, "are you there?"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != domain.ActionIgnoredPaused {
		t.Errorf("action: got %q", res.Action)
	}
	if replier.calls != 0 {
		t.Error("paused session must not trigger a reply")
	}
}

func TestPipeline_DuplicateDelivery(t *testing.T) {
	replier := &stubReplier{}
	p, _, _, _ := testPipeline(t, replier)
	ctx := context.Background()

	body := webhookBody("acme-main", "MSG1", false, "hi")
	if _, err := p.Ingest(ctx, body); err != nil {
		t.Fatal(err)
	}
	res, err := p.Ingest(ctx, body)
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != domain.ActionDuplicateIgnored || !res.Duplicate {
		t.Errorf("replay: got action %q duplicate %v", res.Action, res.Duplicate)
	}
	if replier.calls != 1 {
		t.Errorf("replay must not invoke the replier again, calls=%d", replier.calls)
	}
}

func TestPipeline_UnknownTenant(t *testing.T) {
	p, _, _, _ := testPipeline(t, nil)
	_, err := p.Ingest(context.Background(), webhookBody("nobody-here", "MSG1", false, "hi"))
	if !errors.Is(err, ErrUnknownTenant) {
		t.Errorf("expected ErrUnknownTenant, got %v", err)
	}
}

func TestPipeline_MalformedBody(t *testing.T) {
	p, _, _, _ := testPipeline(t, nil)
	_, err := p.Ingest(context.Background(), []byte(`{"event":"messages.upsert"}`))
	if !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestPipeline_NoText(t *testing.T) {
	replier := &stubReplier{}
	p, _, _, _ := testPipeline(t, replier)
	res, err := p.Ingest(context.Background(), webhookBody("acme-main", "MSG1", false, ""))
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != domain.ActionNoText {
		t.Errorf("action: got %q", res.Action)
	}
	if replier.calls != 0 {
		t.Error("empty text must not invoke the replier")
	}
}

func TestPipeline_ReplyFailureDegrades(t *testing.T) {
	replier := &stubReplier{label: domain.ActionReplyFailed, err: errors.New("model down")}
	p, _, ledger, tenant := testPipeline(t, replier)
	ctx := context.Background()

	res, err := p.Ingest(ctx, webhookBody("acme-main", "MSG1", false, "hi"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != domain.ActionReplyFailed {
		t.Errorf("action: got %q", res.Action)
	}

	// The failed delivery stays recorded; a replay is still a duplicate.
	dup, err := ledger.CheckAndRecord(ctx, tenant.ID, "MSG1", EventTypeMessage)
	if err != nil {
		t.Fatal(err)
	}
	if !dup {
		t.Error("failed reply must not reopen the idempotency marker")
	}
}

func TestPipeline_NonMessageEventAcknowledged(t *testing.T) {
	p, _, _, _ := testPipeline(t, nil)
	body := []byte(`{"event":"connection.update","instance":"acme-main","data":{"state":"open"}}`)
	res, err := p.Ingest(context.Background(), body)
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != "ignored_event" {
		t.Errorf("action: got %q", res.Action)
	}
}
