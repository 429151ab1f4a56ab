// Package reply turns an inbound message into a delivered assistant answer:
// gather conversation context, generate, send, record.
package reply

import (
	"context"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Otitodev/wa-assist/internal/domain"
	"github.com/Otitodev/wa-assist/internal/gateway"
	"github.com/Otitodev/wa-assist/internal/ingest"
	"github.com/Otitodev/wa-assist/internal/llm"
	"github.com/Otitodev/wa-assist/pkg/common"
)

// contextDepth is how many stored messages feed the model as history.
const contextDepth = 10

// Service implements the reply stage of the ingestion pipeline. A worker
// pool bounds how many model calls run at once across all tenants.
type Service struct {
	providers     *llm.Registry
	gw            *gateway.Client
	events        ingest.EventStore
	ledger        ingest.Ledger
	defaultPrompt string
	pool          *ants.Pool
}

func New(providers *llm.Registry, gw *gateway.Client, events ingest.EventStore, ledger ingest.Ledger, defaultPrompt string, maxWorkers int) (*Service, error) {
	if maxWorkers <= 0 {
		maxWorkers = 8
	}
	pool, err := ants.NewPool(maxWorkers)
	if err != nil {
		return nil, errors.Wrap(err, "reply worker pool")
	}
	return &Service{
		providers:     providers,
		gw:            gw,
		events:        events,
		ledger:        ledger,
		defaultPrompt: defaultPrompt,
		pool:          pool,
	}, nil
}

// Close releases the worker pool.
func (s *Service) Close() {
	s.pool.Release()
}

type outcome struct {
	label string
	err   error
}

// GenerateAndSend runs the reply on the bounded pool and waits for it or the
// caller's deadline, whichever comes first. The returned label names the
// stage that failed when err is non-nil.
func (s *Service) GenerateAndSend(ctx context.Context, tenant *domain.Tenant, chatID, messageID, text string) (string, error) {
	ch := make(chan outcome, 1)
	if err := s.pool.Submit(func() {
		label, err := s.run(ctx, tenant, chatID, messageID)
		ch <- outcome{label: label, err: err}
	}); err != nil {
		return domain.ActionReplyFailed, errors.Wrap(err, "submit reply task")
	}
	select {
	case out := <-ch:
		return out.label, out.err
	case <-ctx.Done():
		return domain.ActionReplyFailed, ctx.Err()
	}
}

func (s *Service) run(ctx context.Context, tenant *domain.Tenant, chatID, messageID string) (string, error) {
	provider, err := s.providers.ForTenant(tenant)
	if err != nil {
		return domain.ActionReplyFailed, err
	}

	req, err := s.buildRequest(ctx, tenant, chatID)
	if err != nil {
		return domain.ActionReplyFailed, err
	}

	answer, err := provider.Generate(ctx, req)
	if err != nil {
		return domain.ActionReplyFailed, err
	}

	// Best effort: the counterpart sees the read receipt before the answer.
	if err := s.gw.MarkAsRead(ctx, tenant.EvoServerURL, tenant.EvoApikey, tenant.InstanceName, chatID, messageID); err != nil {
		zap.L().Debug("mark-as-read failed",
			zap.String("namespace", "reply"),
			zap.String("instance", tenant.InstanceName), zap.Error(err))
	}

	sentID, err := s.gw.SendText(ctx, tenant.EvoServerURL, tenant.EvoApikey, tenant.InstanceName, chatID, answer)
	if err != nil {
		return domain.ActionSendFailed, err
	}

	outboundID := sentID
	if outboundID == "" {
		outboundID = fmt.Sprintf("out-%d", common.UUIDint64())
	} else {
		// Pre-mark the sent id so the gateway echo of our own message is
		// dropped as a duplicate instead of pausing the session.
		if _, err := s.ledger.CheckAndRecord(ctx, tenant.ID, sentID, ingest.EventTypeMessage); err != nil {
			zap.L().Warn("pre-marking sent message failed",
				zap.String("namespace", "reply"),
				zap.String("message_id", sentID), zap.Error(err))
		}
	}

	now := time.Now().UTC()
	if _, err := s.events.Append(ctx, &domain.MessageEvent{
		TenantID:    tenant.ID,
		ChatID:      chatID,
		MessageID:   outboundID,
		FromMe:      true,
		MessageType: "conversation",
		Text:        answer,
		OccurredAt:  &now,
	}); err != nil {
		zap.L().Error("storing outbound message failed",
			zap.String("namespace", "reply"),
			zap.String("chat_id", chatID), zap.Error(err))
	}

	zap.L().Info("assistant reply delivered",
		zap.String("namespace", "reply"),
		zap.String("instance", tenant.InstanceName),
		zap.String("chat_id", chatID),
		zap.String("provider", provider.Name()))
	return domain.ActionAiReplied, nil
}

// buildRequest assembles the model request from stored history, oldest
// first. Self-originated turns play the assistant role.
func (s *Service) buildRequest(ctx context.Context, tenant *domain.Tenant, chatID string) (*llm.Request, error) {
	history, err := s.events.RecentByChat(ctx, tenant.ID, chatID, contextDepth)
	if err != nil {
		return nil, errors.Wrap(err, "load conversation history")
	}
	system := tenant.SystemPrompt
	if system == "" {
		system = s.defaultPrompt
	}
	req := &llm.Request{System: system}
	for i := len(history) - 1; i >= 0; i-- {
		evt := history[i]
		if evt.Text == "" {
			continue
		}
		role := "user"
		if evt.FromMe {
			role = "assistant"
		}
		req.Messages = append(req.Messages, llm.Message{Role: role, Content: evt.Text})
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("no text in conversation history")
	}
	return req, nil
}
