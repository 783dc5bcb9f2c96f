package db

import (
	"fmt"

	"github.com/winmachacker-tech/atlas-command-sub005/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Tenant{},
		&models.User{},
		&models.TenantMember{},
		&models.APIToken{},
		&models.ChannelLink{},
		&models.Driver{},
		&models.Load{},
		&models.Assignment{},
		&models.ConversationContext{},
		&models.MessageLog{},
		&models.PendingDocument{},
		&models.Notification{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
