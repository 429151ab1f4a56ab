package domain

import "time"

// MessageEvent is one observed message, inbound or outbound. The external
// message id is unique per tenant, which is the primary defense against
// duplicate webhook delivery. Rows are append-only.
type MessageEvent struct {
	ID          int64      `json:"id,string" gorm:"primaryKey"`
	TenantID    int64      `json:"tenant_id,string" gorm:"uniqueIndex:idx_event_tenant_msg;index:idx_event_tenant_chat"`
	ChatID      string     `json:"chat_id" gorm:"index:idx_event_tenant_chat;size:128"`
	MessageID   string     `json:"message_id" gorm:"uniqueIndex:idx_event_tenant_msg;size:128"`
	FromMe      bool       `json:"from_me"`
	MessageType string     `json:"message_type" gorm:"size:64"`
	Text        string     `json:"text" gorm:"type:text"`
	Raw         string     `json:"-" gorm:"type:text"`
	OccurredAt  *time.Time `json:"occurred_at"`
	CreatedAt   time.Time  `json:"created_at" gorm:"index"`
}

func (MessageEvent) TableName() string {
	return "messages"
}
