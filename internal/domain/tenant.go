package domain

import "time"

// Tenant is one isolated messaging account, routed by its unique instance
// name. The gateway credentials and reply configuration live here; the
// ingestion core treats the record as read-only.
type Tenant struct {
	ID           int64     `json:"id,string" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"size:128"`
	InstanceName string    `json:"instance_name" gorm:"uniqueIndex;size:128"`
	EvoServerURL string    `json:"evo_server_url"`
	EvoApikey    string    `json:"-"`
	SystemPrompt string    `json:"system_prompt" gorm:"type:text"`
	LlmProvider  string    `json:"llm_provider" gorm:"size:32"`
	Remark       string    `json:"remark"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Tenant) TableName() string {
	return "tenants"
}
