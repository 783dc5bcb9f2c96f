package db

import (
	"fmt"

	"github.com/winmachacker-tech/atlas-command-sub005/internal/lifecycle"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedDemo populates a demo tenant with a dispatcher account, drivers and
// a few loads for local bring-up. Idempotent: rows are upserted by key.
func SeedDemo(db *gorm.DB) error {
	rows := []interface{}{
		&models.Tenant{ID: "demo", Name: "Demo Logistics", Timezone: "America/Chicago"},
		&models.User{ID: "demo-dispatcher", Email: "dispatcher@demo.test", Name: "Dana Dispatcher"},
		&models.TenantMember{UserID: "demo-dispatcher", TenantID: "demo", Role: "dispatcher", Active: true},
		&models.APIToken{Token: "demo-token-0000000000000000000000000000000000000000000000000000", UserID: "demo-dispatcher", Label: "local demo"},
		&models.Driver{ID: "demo-d1", TenantID: "demo", Name: "John Smith", Phone: "+15550001111",
			Status: lifecycle.DriverAvailable, Location: "Dallas, TX", Truck: "TRK-101",
			DriveMinutesLeft: 600, ShiftMinutesLeft: 720, CycleMinutesLeft: 3200, DutyStatus: "off_duty"},
		&models.Driver{ID: "demo-d2", TenantID: "demo", Name: "Maria Garcia", Phone: "+15550002222",
			Status: lifecycle.DriverAvailable, Location: "Fort Worth, TX", Truck: "TRK-102",
			DriveMinutesLeft: 420, ShiftMinutesLeft: 500, CycleMinutesLeft: 2100, DutyStatus: "off_duty"},
		&models.Load{ID: "demo-l1", TenantID: "demo", ReferenceCode: "LD-2025-1001",
			Origin: "Dallas, TX", Destination: "Atlanta, GA", Rate: 2400,
			PickupDate: "2025-06-12", DeliveryDate: "2025-06-14", Shipper: "Acme Foods",
			Status: lifecycle.LoadAvailable, PODStatus: lifecycle.PODNone},
		&models.Load{ID: "demo-l2", TenantID: "demo", ReferenceCode: "LD-2025-1002",
			Origin: "Houston, TX", Destination: "Memphis, TN", Rate: 1850,
			PickupDate: "2025-06-13", DeliveryDate: "2025-06-15", Shipper: "Gulf Paper",
			Status: lifecycle.LoadAvailable, PODStatus: lifecycle.PODNone},
	}

	for _, row := range rows {
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
			return fmt.Errorf("db: seed demo: %w", err)
		}
	}
	return nil
}
