// Package notify enqueues outbound notification records. Delivery is an
// external worker's job; the core only writes the rows and never blocks
// a dispatch operation on them.
package notify

import (
	"fmt"
	"time"

	"github.com/winmachacker-tech/atlas-command-sub005/internal/models"
	"gorm.io/gorm"
)

// Notification kinds.
const (
	KindLoadDelivered = "load_delivered"
	KindLoadProblem   = "load_problem"
	KindPODReceived   = "pod_received"
	KindDigest        = "digest"
)

// SendOpts holds optional parameters for enqueueing a notification.
type SendOpts struct {
	Recipient string // email address or push target, blank means tenant default
}

// Send writes a notification row for the delivery worker to drain.
func Send(db *gorm.DB, tenantID, kind, subject, body string, opts SendOpts) (*models.Notification, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("notify: tenant is required")
	}
	if kind == "" {
		return nil, fmt.Errorf("notify: kind is required")
	}
	if subject == "" {
		return nil, fmt.Errorf("notify: subject is required")
	}

	n := models.Notification{
		TenantID:  tenantID,
		Kind:      kind,
		Recipient: opts.Recipient,
		Subject:   subject,
		Body:      body,
		CreatedAt: time.Now(),
	}
	if err := db.Create(&n).Error; err != nil {
		return nil, fmt.Errorf("notify: send: %w", err)
	}
	return &n, nil
}

// Pending returns unsent notifications for a tenant, oldest first.
func Pending(db *gorm.DB, tenantID string) ([]models.Notification, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("notify: tenant is required")
	}
	var rows []models.Notification
	err := db.Where("tenant_id = ? AND sent = ?", tenantID, false).
		Order("created_at ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("notify: pending %s: %w", tenantID, err)
	}
	return rows, nil
}

// MarkSent flags a notification as delivered.
func MarkSent(db *gorm.DB, id uint) error {
	result := db.Model(&models.Notification{}).Where("id = ?", id).
		Update("sent", true)
	if result.Error != nil {
		return fmt.Errorf("notify: mark sent %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("notify: notification not found: %d", id)
	}
	return nil
}
