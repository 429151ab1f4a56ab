package ingest

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Otitodev/wa-assist/internal/domain"
	"github.com/Otitodev/wa-assist/pkg/common"
)

// TenantResolver looks up tenants by their gateway routing key.
type TenantResolver interface {
	ByInstanceName(ctx context.Context, name string) (*domain.Tenant, error)
}

// SessionRegistry handles pause/resume state for conversations.
type SessionRegistry interface {
	// GetOrCreate returns the session for (tenant, chat), creating it
	// unpaused when it does not exist. Safe under concurrent first-message
	// races: creation relies on the unique (tenant_id, chat_id) constraint.
	GetOrCreate(ctx context.Context, tenantID int64, chatID string) (*domain.Session, error)

	// Get returns the session or gorm.ErrRecordNotFound.
	Get(ctx context.Context, tenantID int64, chatID string) (*domain.Session, error)

	// RecordMessage updates last_message_at always and last_human_at only
	// for self-originated messages.
	RecordMessage(ctx context.Context, tenantID int64, chatID string, selfOriginated bool, occurredAt time.Time) error

	// Pause sets the paused flag with a reason. Idempotent.
	Pause(ctx context.Context, tenantID int64, chatID string, reason string) error

	// Resume clears the paused flag and reason. Idempotent.
	Resume(ctx context.Context, tenantID int64, chatID string) error

	// IsPaused reports the current paused flag.
	IsPaused(ctx context.Context, tenantID int64, chatID string) (bool, error)

	// ResumeIdle bulk-resumes paused sessions whose last human activity is
	// strictly before cutoff and returns how many rows changed.
	ResumeIdle(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventStore is the append-only message record.
type EventStore interface {
	// Append inserts the event, relying on the (tenant_id, message_id)
	// constraint as the second line of defense against duplicates.
	// Returns false when the row already existed.
	Append(ctx context.Context, evt *domain.MessageEvent) (bool, error)

	// RecentByChat returns the newest events for a conversation,
	// newest first.
	RecentByChat(ctx context.Context, tenantID int64, chatID string, limit int) ([]*domain.MessageEvent, error)
}

// Ledger is the idempotency guard for webhook deliveries.
type Ledger interface {
	// CheckAndRecord inserts the (tenant, message, event-type) marker.
	// Returns duplicate=true when the marker already existed; the caller
	// must then skip all side effects. The insert is the sole
	// serialization point for concurrent deliveries of the same event.
	CheckAndRecord(ctx context.Context, tenantID int64, messageID, eventType string) (duplicate bool, err error)

	// Annotate records the final action label on an existing marker.
	Annotate(ctx context.Context, tenantID int64, messageID, eventType, action string) error

	// PruneOlderThan deletes markers processed before cutoff.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// GormTenantResolver is the GORM implementation of TenantResolver.
type GormTenantResolver struct {
	db *gorm.DB
}

func NewGormTenantResolver(db *gorm.DB) *GormTenantResolver {
	return &GormTenantResolver{db: db}
}

func (r *GormTenantResolver) ByInstanceName(ctx context.Context, name string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := r.db.WithContext(ctx).Where("instance_name = ?", name).First(&tenant).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// GormSessionRegistry is the GORM implementation of SessionRegistry.
type GormSessionRegistry struct {
	db *gorm.DB
}

func NewGormSessionRegistry(db *gorm.DB) *GormSessionRegistry {
	return &GormSessionRegistry{db: db}
}

func (r *GormSessionRegistry) GetOrCreate(ctx context.Context, tenantID int64, chatID string) (*domain.Session, error) {
	sess := domain.Session{
		ID:       common.UUIDint64(),
		TenantID: tenantID,
		ChatID:   chatID,
	}
	// Upsert-on-conflict rather than insert-then-catch: a concurrent first
	// message must not surface as an error.
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "chat_id"}},
			DoNothing: true,
		}).
		Create(&sess).Error
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, tenantID, chatID)
}

func (r *GormSessionRegistry) Get(ctx context.Context, tenantID int64, chatID string) (*domain.Session, error) {
	var sess domain.Session
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND chat_id = ?", tenantID, chatID).
		First(&sess).Error
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (r *GormSessionRegistry) RecordMessage(ctx context.Context, tenantID int64, chatID string, selfOriginated bool, occurredAt time.Time) error {
	updates := map[string]interface{}{
		"last_message_at": occurredAt,
		"updated_at":      time.Now(),
	}
	if selfOriginated {
		updates["last_human_at"] = occurredAt
	}
	return r.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("tenant_id = ? AND chat_id = ?", tenantID, chatID).
		Updates(updates).Error
}

func (r *GormSessionRegistry) Pause(ctx context.Context, tenantID int64, chatID string, reason string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("tenant_id = ? AND chat_id = ?", tenantID, chatID).
		Updates(map[string]interface{}{
			"is_paused":    true,
			"pause_reason": reason,
			"updated_at":   time.Now(),
		}).Error
}

func (r *GormSessionRegistry) Resume(ctx context.Context, tenantID int64, chatID string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("tenant_id = ? AND chat_id = ?", tenantID, chatID).
		Updates(map[string]interface{}{
			"is_paused":    false,
			"pause_reason": "",
			"updated_at":   time.Now(),
		}).Error
}

func (r *GormSessionRegistry) IsPaused(ctx context.Context, tenantID int64, chatID string) (bool, error) {
	sess, err := r.Get(ctx, tenantID, chatID)
	if err != nil {
		return false, err
	}
	return sess.IsPaused, nil
}

func (r *GormSessionRegistry) ResumeIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	// Strict "<": a session exactly at the threshold stays paused.
	res := r.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("is_paused = ? AND last_human_at < ?", true, cutoff).
		Updates(map[string]interface{}{
			"is_paused":    false,
			"pause_reason": "",
			"updated_at":   time.Now(),
		})
	return res.RowsAffected, res.Error
}

// GormEventStore is the GORM implementation of EventStore.
type GormEventStore struct {
	db *gorm.DB
}

func NewGormEventStore(db *gorm.DB) *GormEventStore {
	return &GormEventStore{db: db}
}

func (r *GormEventStore) Append(ctx context.Context, evt *domain.MessageEvent) (bool, error) {
	if evt.ID == 0 {
		evt.ID = common.UUIDint64()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "message_id"}},
			DoNothing: true,
		}).
		Create(evt)
	return res.RowsAffected > 0, res.Error
}

func (r *GormEventStore) RecentByChat(ctx context.Context, tenantID int64, chatID string, limit int) ([]*domain.MessageEvent, error) {
	var events []*domain.MessageEvent
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND chat_id = ?", tenantID, chatID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// GormLedger is the GORM implementation of Ledger.
type GormLedger struct {
	db *gorm.DB
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

func (r *GormLedger) CheckAndRecord(ctx context.Context, tenantID int64, messageID, eventType string) (bool, error) {
	marker := domain.ProcessedEvent{
		ID:          common.UUIDint64(),
		TenantID:    tenantID,
		MessageID:   messageID,
		EventType:   eventType,
		ProcessedAt: time.Now(),
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "message_id"}, {Name: "event_type"}},
			DoNothing: true,
		}).
		Create(&marker)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 0, nil
}

func (r *GormLedger) Annotate(ctx context.Context, tenantID int64, messageID, eventType, action string) error {
	return r.db.WithContext(ctx).
		Model(&domain.ProcessedEvent{}).
		Where("tenant_id = ? AND message_id = ? AND event_type = ?", tenantID, messageID, eventType).
		Update("action_taken", action).Error
}

func (r *GormLedger) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("processed_at < ?", cutoff).
		Delete(&domain.ProcessedEvent{})
	return res.RowsAffected, res.Error
}
