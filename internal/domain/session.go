package domain

import "time"

// Pause reasons recorded on a session.
const (
	PauseReasonHumanTakeover = "human_takeover"
	PauseReasonManual        = "manual_pause"
)

// Session is the pause/resume state record for one conversation thread,
// unique per (tenant, chat). Created lazily on the first observed message
// and never deleted except through full tenant erasure.
type Session struct {
	ID            int64      `json:"id,string" gorm:"primaryKey"`
	TenantID      int64      `json:"tenant_id,string" gorm:"uniqueIndex:idx_session_tenant_chat;index:idx_session_paused_human"`
	ChatID        string     `json:"chat_id" gorm:"uniqueIndex:idx_session_tenant_chat;size:128"`
	IsPaused      bool       `json:"is_paused" gorm:"index:idx_session_paused_human"`
	PauseReason   string     `json:"pause_reason" gorm:"size:64"`
	LastMessageAt *time.Time `json:"last_message_at"`
	LastHumanAt   *time.Time `json:"last_human_at" gorm:"index:idx_session_paused_human"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Session) TableName() string {
	return "sessions"
}
