// Package memory persists the small per-channel conversation context that
// lets the assistant resolve "that load" and "that driver" across turns.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/winmachacker-tech/atlas-command-sub005/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContextMemory is the structured memory for one (tenant, channel identity)
// pair. All fields are optional; an empty value means "nothing remembered".
type ContextMemory struct {
	LastLoadReference    string `json:"lastLoadReference,omitempty"`
	LastLoadID           string `json:"lastLoadId,omitempty"`
	LastDriverName       string `json:"lastDriverName,omitempty"`
	LastDriverID         string `json:"lastDriverId,omitempty"`
	LastDriverHOSMinutes int    `json:"lastDriverHOSMinutes,omitempty"`
	// PendingProblemReference holds a load reference awaiting a reason
	// before the problem flag can be finalized.
	PendingProblemReference string `json:"pendingProblemReference,omitempty"`
	// PendingDocumentID points at an OCR-parsed document awaiting a
	// yes/no confirmation reply.
	PendingDocumentID string `json:"pendingDocumentId,omitempty"`
}

// Empty reports whether nothing is remembered.
func (m ContextMemory) Empty() bool {
	return m == ContextMemory{}
}

// Store reads and writes ContextMemory rows. Save is last-writer-wins; a
// single channel identity processes one message at a time in practice.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("memory: store: db is required")
	}
	return &Store{db: db}, nil
}

// Load returns the memory for a channel identity, or the zero value when
// none exists. It never fails on a missing row.
func (s *Store) Load(tenantID, channelIdentity string) (ContextMemory, error) {
	var row models.ConversationContext
	err := s.db.Where("tenant_id = ? AND channel_identity = ?", tenantID, channelIdentity).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ContextMemory{}, nil
	}
	if err != nil {
		return ContextMemory{}, fmt.Errorf("memory: load %s/%s: %w", tenantID, channelIdentity, err)
	}

	var mem ContextMemory
	if row.Memory != "" {
		if err := json.Unmarshal([]byte(row.Memory), &mem); err != nil {
			// A corrupt row must not break the conversation; start fresh.
			return ContextMemory{}, nil
		}
	}
	return mem, nil
}

// Save upserts the memory for a channel identity.
func (s *Store) Save(tenantID, channelIdentity string, mem ContextMemory) error {
	if tenantID == "" || channelIdentity == "" {
		return fmt.Errorf("memory: save: tenant and channel identity are required")
	}
	data, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("memory: marshal: %w", err)
	}

	row := models.ConversationContext{
		TenantID:        tenantID,
		ChannelIdentity: channelIdentity,
		Memory:          string(data),
	}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "channel_identity"}},
		DoUpdates: clause.AssignmentColumns([]string{"memory", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("memory: save %s/%s: %w", tenantID, channelIdentity, err)
	}
	return nil
}
