// Package auth resolves bearer credentials and channel identities to an
// acting user and tenant scope.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/winmachacker-tech/atlas-command-sub005/internal/models"
	"gorm.io/gorm"
)

// Sentinel errors for identity resolution failures.
var (
	ErrUnauthenticated = errors.New("auth: unauthenticated")
	ErrNoActiveTenant  = errors.New("auth: no active tenant membership")
	ErrUnlinked        = errors.New("auth: channel identity not linked to a tenant")
)

// Identity is the resolved acting user and tenant scope. It is attached to
// every tool invocation and is never overridden by caller-supplied input.
type Identity struct {
	UserID   string
	TenantID string
	DriverID string // set when the caller is a linked driver, not a dispatcher
}

// Resolver looks up identities in the backing store.
type Resolver struct {
	db *gorm.DB
}

// NewResolver creates a Resolver.
func NewResolver(db *gorm.DB) (*Resolver, error) {
	if db == nil {
		return nil, fmt.Errorf("auth: resolver: db is required")
	}
	return &Resolver{db: db}, nil
}

// Resolve maps an opaque bearer credential to the acting user and their
// single active tenant. Pure lookup aside from the last-used timestamp.
func (r *Resolver) Resolve(bearer string) (Identity, error) {
	token := strings.TrimSpace(strings.TrimPrefix(bearer, "Bearer "))
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}

	var apiToken models.APIToken
	err := r.db.Where("token = ? AND revoked = ?", token, false).First(&apiToken).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Identity{}, ErrUnauthenticated
	}
	if err != nil {
		return Identity{}, fmt.Errorf("auth: token lookup: %w", err)
	}

	var member models.TenantMember
	err = r.db.Where("user_id = ? AND active = ?", apiToken.UserID, true).
		Order("created_at ASC").First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Identity{}, ErrNoActiveTenant
	}
	if err != nil {
		return Identity{}, fmt.Errorf("auth: membership lookup: %w", err)
	}

	now := time.Now()
	r.db.Model(&models.APIToken{}).Where("token = ?", token).Update("last_used_at", now)

	return Identity{UserID: apiToken.UserID, TenantID: member.TenantID}, nil
}

// ResolveChannel maps a messaging-platform sender to a tenant via the
// channel link table. Unregistered senders get ErrUnlinked; the adapter
// replies with an onboarding message and never reaches the assistant.
func (r *Resolver) ResolveChannel(channel, externalID string) (Identity, error) {
	if channel == "" || externalID == "" {
		return Identity{}, ErrUnlinked
	}

	var link models.ChannelLink
	err := r.db.Where("channel = ? AND external_id = ?", channel, externalID).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Identity{}, ErrUnlinked
	}
	if err != nil {
		return Identity{}, fmt.Errorf("auth: channel link lookup: %w", err)
	}

	return Identity{UserID: link.UserID, TenantID: link.TenantID, DriverID: link.DriverID}, nil
}

// LinkChannel registers a channel identity against a tenant (upsert).
func (r *Resolver) LinkChannel(channel, externalID, tenantID, userID, driverID string) error {
	if channel == "" || externalID == "" || tenantID == "" {
		return fmt.Errorf("auth: link channel: channel, external id and tenant are required")
	}
	link := models.ChannelLink{
		Channel:    channel,
		ExternalID: externalID,
		TenantID:   tenantID,
		UserID:     userID,
		DriverID:   driverID,
	}
	if err := r.db.Save(&link).Error; err != nil {
		return fmt.Errorf("auth: link channel %s:%s: %w", channel, externalID, err)
	}
	return nil
}
