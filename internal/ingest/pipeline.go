package ingest

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Otitodev/wa-assist/internal/domain"
	"github.com/Otitodev/wa-assist/pkg/common"
	"github.com/Otitodev/wa-assist/pkg/metrics"
)

// Bus topics published by the ingestion pipeline and sweeper.
const (
	TopicEventIngested  = "event.ingested"
	TopicSessionPaused  = "session.paused"
	TopicSessionResumed = "session.resumed"
)

// ErrUnknownTenant marks a webhook whose instance name matches no tenant.
var ErrUnknownTenant = errors.New("unknown tenant instance")

// Replier produces and delivers the assistant answer for one message.
// It returns the action label to record on the ledger; on error the label
// still describes which stage failed.
type Replier interface {
	GenerateAndSend(ctx context.Context, tenant *domain.Tenant, chatID, messageID, text string) (label string, err error)
}

// Notifier is the publish side of the process event bus.
type Notifier interface {
	Publish(topic string, args ...interface{})
}

// Result summarizes what the pipeline did with one delivery.
type Result struct {
	Action    string `json:"action"`
	ChatID    string `json:"chat_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// Pipeline is the webhook ingestion orchestrator. Every step before the
// reply stage is synchronous; replying happens after all state is committed
// so a crashed or slow model call can never lose the message record.
type Pipeline struct {
	tenants      TenantResolver
	ledger       Ledger
	events       EventStore
	sessions     SessionRegistry
	replier      Replier
	bus          Notifier
	replyTimeout time.Duration
}

func NewPipeline(tenants TenantResolver, ledger Ledger, events EventStore, sessions SessionRegistry, replier Replier, bus Notifier, replyTimeout time.Duration) *Pipeline {
	if replyTimeout <= 0 {
		replyTimeout = 30 * time.Second
	}
	return &Pipeline{
		tenants:      tenants,
		ledger:       ledger,
		events:       events,
		sessions:     sessions,
		replier:      replier,
		bus:          bus,
		replyTimeout: replyTimeout,
	}
}

// Ingest processes one raw webhook body end to end and returns the action
// taken. Error classes the caller must map to transport status:
// ErrMalformedPayload (client error), ErrUnknownTenant (not found),
// anything else (transient storage failure, retryable).
func (p *Pipeline) Ingest(ctx context.Context, body []byte) (*Result, error) {
	evt, err := ParseWebhook(body)
	if err != nil {
		return nil, err
	}

	tenant, err := p.tenants.ByInstanceName(ctx, evt.Instance)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(ErrUnknownTenant, evt.Instance)
		}
		return nil, err
	}

	if !evt.IsMessage() {
		zap.L().Debug("ignoring non-message event",
			zap.String("namespace", "ingest"),
			zap.String("event", evt.EventType),
			zap.String("instance", evt.Instance))
		return &Result{Action: "ignored_event"}, nil
	}

	duplicate, err := p.ledger.CheckAndRecord(ctx, tenant.ID, evt.MessageID, evt.EventType)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if duplicate {
		metrics.IncrCounter(metrics.CounterWebhookDuplicate, 1)
		return &Result{
			Action:    domain.ActionDuplicateIgnored,
			ChatID:    evt.ChatID,
			MessageID: evt.MessageID,
			Duplicate: true,
		}, nil
	}

	sess, err := p.sessions.GetOrCreate(ctx, tenant.ID, evt.ChatID)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	// The verdict uses the state as it stood before this message.
	action := Evaluate(evt.FromMe, sess.IsPaused)

	occurredAt := time.Now().UTC()
	if evt.OccurredAt != nil {
		occurredAt = *evt.OccurredAt
	}
	if _, err := p.events.Append(ctx, &domain.MessageEvent{
		ID:          common.UUIDint64(),
		TenantID:    tenant.ID,
		ChatID:      evt.ChatID,
		MessageID:   evt.MessageID,
		FromMe:      evt.FromMe,
		MessageType: evt.MessageType,
		Text:        evt.Text,
		Raw:         evt.Raw,
		OccurredAt:  &occurredAt,
	}); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := p.sessions.RecordMessage(ctx, tenant.ID, evt.ChatID, evt.FromMe, occurredAt); err != nil {
		return nil, errors.WithStack(err)
	}

	label := p.execute(ctx, action, tenant, sess, evt)

	if err := p.ledger.Annotate(ctx, tenant.ID, evt.MessageID, evt.EventType, label); err != nil {
		zap.L().Error("annotate ledger failed",
			zap.String("namespace", "ingest"),
			zap.String("message_id", evt.MessageID), zap.Error(err))
	}
	if p.bus != nil {
		p.bus.Publish(TopicEventIngested, tenant.InstanceName, label)
	}
	metrics.IncrCounter(metrics.CounterWebhookIngested, 1)
	return &Result{Action: label, ChatID: evt.ChatID, MessageID: evt.MessageID}, nil
}

// execute carries out the collision verdict and returns the ledger label.
// Pause and reply failures degrade to a label instead of an error: state is
// committed by now, so the delivery must still be acknowledged.
func (p *Pipeline) execute(ctx context.Context, action Action, tenant *domain.Tenant, sess *domain.Session, evt *InboundEvent) string {
	switch action {
	case ActionPause:
		if err := p.sessions.Pause(ctx, tenant.ID, evt.ChatID, domain.PauseReasonHumanTakeover); err != nil {
			zap.L().Error("pause session failed",
				zap.String("namespace", "ingest"),
				zap.String("chat_id", evt.ChatID), zap.Error(err))
			return domain.ActionStored
		}
		if p.bus != nil && !sess.IsPaused {
			p.bus.Publish(TopicSessionPaused, tenant.InstanceName, evt.ChatID, domain.PauseReasonHumanTakeover)
		}
		zap.L().Info("session paused by operator message",
			zap.String("namespace", "ingest"),
			zap.String("instance", tenant.InstanceName),
			zap.String("chat_id", evt.ChatID))
		return domain.ActionPaused

	case ActionIgnore:
		zap.L().Debug("session paused, message ignored",
			zap.String("namespace", "ingest"),
			zap.String("instance", tenant.InstanceName),
			zap.String("chat_id", evt.ChatID))
		return domain.ActionIgnoredPaused

	case ActionReply:
		if evt.Text == "" {
			return domain.ActionNoText
		}
		if p.replier == nil {
			return domain.ActionStored
		}
		rctx, cancel := context.WithTimeout(ctx, p.replyTimeout)
		defer cancel()
		label, err := p.replier.GenerateAndSend(rctx, tenant, evt.ChatID, evt.MessageID, evt.Text)
		if err != nil {
			zap.L().Error("assistant reply failed",
				zap.String("namespace", "ingest"),
				zap.String("instance", tenant.InstanceName),
				zap.String("chat_id", evt.ChatID),
				zap.String("stage", label), zap.Error(err))
			metrics.IncrCounter(metrics.CounterReplyFailed, 1)
			return label
		}
		metrics.IncrCounter(metrics.CounterReplySent, 1)
		return label
	}
	return domain.ActionStored
}
