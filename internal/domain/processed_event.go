package domain

import "time"

// Action labels stored on a processed event.
const (
	ActionPaused           = "paused"
	ActionIgnoredPaused    = "ignored_paused"
	ActionAiReplied        = "ai_replied"
	ActionReplyFailed      = "reply_failed"
	ActionSendFailed       = "send_failed"
	ActionNoText           = "no_text"
	ActionDuplicateIgnored = "duplicate_ignored"
	ActionStored           = "stored"
)

// ProcessedEvent marks one (tenant, message, event-type) tuple as handled.
// The unique index is the sole serialization point for concurrent deliveries
// of the same webhook: exactly one insert wins, replays short-circuit.
// Rows are pruned after a retention window.
type ProcessedEvent struct {
	ID          int64     `json:"id,string" gorm:"primaryKey"`
	TenantID    int64     `json:"tenant_id,string" gorm:"uniqueIndex:idx_processed_tenant_msg_type"`
	MessageID   string    `json:"message_id" gorm:"uniqueIndex:idx_processed_tenant_msg_type;size:128"`
	EventType   string    `json:"event_type" gorm:"uniqueIndex:idx_processed_tenant_msg_type;size:64"`
	ActionTaken string    `json:"action_taken" gorm:"size:64"`
	ProcessedAt time.Time `json:"processed_at" gorm:"index"`
}

func (ProcessedEvent) TableName() string {
	return "processed_events"
}
