// Package docs manages parsed rate-confirmation documents that wait for a
// yes/no reply before becoming loads. Parsing itself happens upstream; this
// package only stores the proposal and commits or discards it.
package docs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/models"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/tools"
	"gorm.io/gorm"
)

// pendingTTL is how long a proposal stays answerable before it expires.
const pendingTTL = 24 * time.Hour

// Pending document statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusRejected  = "rejected"
	StatusExpired   = "expired"
)

// ErrNoPending is returned when a confirmation arrives with nothing to
// confirm.
var ErrNoPending = errors.New("docs: no pending document")

// Document is the parsed content of a rate confirmation.
type Document struct {
	Origin       string  `json:"origin"`
	Destination  string  `json:"destination"`
	Rate         float64 `json:"rate"`
	PickupDate   string  `json:"pickup_date,omitempty"`
	DeliveryDate string  `json:"delivery_date,omitempty"`
	Shipper      string  `json:"shipper,omitempty"`
	Equipment    string  `json:"equipment,omitempty"`
	Commodity    string  `json:"commodity,omitempty"`
}

// Service stores and resolves pending documents.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// ServiceOpts holds parameters for creating a Service.
type ServiceOpts struct {
	DB  *gorm.DB
	Now func() time.Time // defaults to time.Now
}

// NewService creates a Service.
func NewService(opts ServiceOpts) (*Service, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("docs: service: db is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{db: opts.DB, now: now}, nil
}

// Propose stores a parsed document for the channel identity and returns the
// pending record plus the confirmation question to send back. A new
// proposal supersedes any earlier pending one on the same channel.
func (s *Service) Propose(tenantID, channelIdentity string, doc Document) (*models.PendingDocument, string, error) {
	if doc.Origin == "" || doc.Destination == "" {
		return nil, "", fmt.Errorf("docs: propose: origin and destination are required")
	}
	if doc.Rate <= 0 {
		return nil, "", fmt.Errorf("docs: propose: rate must be positive")
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, "", fmt.Errorf("docs: propose: %w", err)
	}

	if err := s.db.Model(&models.PendingDocument{}).
		Where("tenant_id = ? AND channel_identity = ? AND status = ?", tenantID, channelIdentity, StatusPending).
		Update("status", StatusExpired).Error; err != nil {
		return nil, "", fmt.Errorf("docs: expire prior pending: %w", err)
	}

	row := models.PendingDocument{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		ChannelIdentity: channelIdentity,
		Status:          StatusPending,
		Payload:         string(payload),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return nil, "", fmt.Errorf("docs: store pending: %w", err)
	}
	return &row, summarize(doc), nil
}

// Confirm commits a pending document as a new load through the same tool
// path a model call would use, so validation and memory effects match.
func (s *Service) Confirm(ctx context.Context, exec *tools.Executor, docID string) (tools.Result, error) {
	row, err := s.pending(docID)
	if err != nil {
		return tools.Result{}, err
	}

	input := json.RawMessage(row.Payload)
	res := exec.Execute(ctx, tools.ToolCreateLoad, input)
	if res.IsError {
		return res, nil
	}

	s.resolve(row, StatusConfirmed)
	return res, nil
}

// Reject discards a pending document.
func (s *Service) Reject(docID string) error {
	row, err := s.pending(docID)
	if err != nil {
		return err
	}
	s.resolve(row, StatusRejected)
	return nil
}

func (s *Service) pending(docID string) (*models.PendingDocument, error) {
	var row models.PendingDocument
	err := s.db.Where("id = ? AND status = ?", docID, StatusPending).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoPending
	}
	if err != nil {
		return nil, fmt.Errorf("docs: lookup pending %s: %w", docID, err)
	}
	if s.now().Sub(row.CreatedAt) > pendingTTL {
		s.resolve(&row, StatusExpired)
		return nil, ErrNoPending
	}
	return &row, nil
}

func (s *Service) resolve(row *models.PendingDocument, status string) {
	now := s.now()
	s.db.Model(&models.PendingDocument{}).
		Where("id = ?", row.ID).
		Updates(map[string]interface{}{"status": status, "resolved_at": now})
}

// summarize renders the confirmation question sent back to the channel.
func summarize(doc Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I read a rate confirmation: %s to %s for $%.0f", doc.Origin, doc.Destination, doc.Rate)
	if doc.PickupDate != "" {
		fmt.Fprintf(&b, ", pickup %s", doc.PickupDate)
	}
	if doc.DeliveryDate != "" {
		fmt.Fprintf(&b, ", delivery %s", doc.DeliveryDate)
	}
	if doc.Shipper != "" && doc.Shipper != "TBD" {
		fmt.Fprintf(&b, ", shipper %s", doc.Shipper)
	}
	b.WriteString(". Reply yes to create this load, or no to discard it.")
	return b.String()
}
