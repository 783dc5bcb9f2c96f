package models

import "time"

// ConversationContext is the per-channel-identity memory of what was last
// discussed, keyed by (tenant, channel identity). Memory holds a JSON
// serialization of memory.ContextMemory; last-writer-wins on save.
type ConversationContext struct {
	TenantID        string `gorm:"primaryKey;size:32"`
	ChannelIdentity string `gorm:"primaryKey;size:160"` // e.g. "web:<session>" or "telegram:<chatId>"
	Memory          string `gorm:"type:text"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MessageLog directions.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// MessageLog captures every inbound and outbound channel message for audit.
type MessageLog struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	TenantID        string `gorm:"size:32;index:idx_msglog_tenant_identity"`
	Channel         string `gorm:"size:16"`
	ChannelIdentity string `gorm:"size:160;index:idx_msglog_tenant_identity"`
	Direction       string `gorm:"size:4"` // "in" or "out"
	Content         string `gorm:"type:mediumtext"`
	Intercepted     bool   `gorm:"default:false"` // handled by a fast-path intercept, no model call
	LatencyMs       int
	CreatedAt       time.Time
}

// PendingDocument is an OCR-parsed rate confirmation awaiting the sender's
// yes/no reply before it is committed as a new load.
type PendingDocument struct {
	ID              string `gorm:"primaryKey;size:32"`
	TenantID        string `gorm:"size:32;not null;index"`
	ChannelIdentity string `gorm:"size:160;index"`
	Status          string `gorm:"size:16;default:pending"` // pending, confirmed, rejected, expired
	Payload         string `gorm:"type:text"`               // JSON of docs.Document
	CreatedAt       time.Time
	ResolvedAt      *time.Time
}

// Notification is a fire-and-forget outbound notification enqueued by the
// core and drained by an external delivery worker (email, push).
type Notification struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	TenantID  string `gorm:"size:32;not null;index"`
	Kind      string `gorm:"size:32;not null"` // e.g. "load_delivered", "load_problem"
	Recipient string `gorm:"size:128"`
	Subject   string `gorm:"size:256"`
	Body      string `gorm:"type:text"`
	Sent      bool   `gorm:"default:false;index"`
	CreatedAt time.Time
}
