package models

import "time"

// Tenant is the multi-tenant isolation boundary. Every load, driver and
// conversation context row belongs to exactly one tenant.
type Tenant struct {
	ID        string `gorm:"primaryKey;size:32"`
	Name      string `gorm:"size:128;not null"`
	Timezone  string `gorm:"size:64;default:America/Chicago"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// User is a dispatcher or admin account.
type User struct {
	ID        string `gorm:"primaryKey;size:32"`
	Email     string `gorm:"size:128;uniqueIndex"`
	Name      string `gorm:"size:128"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TenantMember links a user to a tenant. Active is false after offboarding;
// identity resolution only considers active memberships.
type TenantMember struct {
	UserID    string `gorm:"primaryKey;size:32"`
	TenantID  string `gorm:"primaryKey;size:32"`
	Role      string `gorm:"size:16;default:dispatcher"`
	Active    bool   `gorm:"default:true;index"`
	CreatedAt time.Time

	User   User   `gorm:"foreignKey:UserID"`
	Tenant Tenant `gorm:"foreignKey:TenantID"`
}

// APIToken is an opaque bearer credential minted for a user.
type APIToken struct {
	Token      string `gorm:"primaryKey;size:64"`
	UserID     string `gorm:"size:32;not null;index"`
	Label      string `gorm:"size:64"`
	Revoked    bool   `gorm:"default:false;index"`
	CreatedAt  time.Time
	LastUsedAt *time.Time

	User User `gorm:"foreignKey:UserID"`
}

// ChannelLink registers a messaging-platform identity (a Telegram chat id,
// a WhatsApp number, a Slack user id) against a tenant. Unlinked senders
// are never routed to the assistant.
type ChannelLink struct {
	Channel    string `gorm:"primaryKey;size:16"`  // "telegram", "whatsapp", "slack", "discord", "web"
	ExternalID string `gorm:"primaryKey;size:128"` // chat id, phone number, platform user id
	TenantID   string `gorm:"size:32;not null;index"`
	UserID     string `gorm:"size:32"` // optional: the linked dispatcher/driver account
	DriverID   string `gorm:"size:32"` // set when the sender is a driver, not a dispatcher
	CreatedAt  time.Time

	Tenant Tenant `gorm:"foreignKey:TenantID"`
}
