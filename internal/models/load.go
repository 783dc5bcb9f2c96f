package models

import "time"

// Load is a freight shipment with a lifecycle status and an optional
// driver assignment. AssignedDriverID/AssignedDriverName are denormalized
// from the open Assignment row for cheap board reads; they are only ever
// written by the tools executor's centralized assignment helpers so the
// two views cannot diverge.
type Load struct {
	ID            string  `gorm:"primaryKey;size:32"`
	TenantID      string  `gorm:"size:32;not null;index:idx_loads_tenant_ref"`
	ReferenceCode string  `gorm:"size:32;not null;index:idx_loads_tenant_ref"`
	Origin        string  `gorm:"size:128;not null"`
	Destination   string  `gorm:"size:128;not null"`
	Rate          float64 `gorm:"not null"`
	PickupDate    string  `gorm:"size:10"` // YYYY-MM-DD
	DeliveryDate  string  `gorm:"size:10"`
	Shipper       string  `gorm:"size:128"`
	Equipment     string  `gorm:"size:64;default:dry_van"`
	CustomerRef   string  `gorm:"size:64"`
	Commodity     string  `gorm:"size:128"`

	Status    string `gorm:"size:16;default:available;index"`
	PODStatus string `gorm:"size:16;default:none"`

	AssignedDriverID   *string `gorm:"size:32;index"`
	AssignedDriverName string  `gorm:"size:128"`

	ProblemFlag bool   `gorm:"default:false;index"`
	ProblemNote string `gorm:"type:text"`
	// PriorStatus remembers the operational status a problem load returns
	// to once the problem is resolved.
	PriorStatus string `gorm:"size:16"`

	CreatedAt       time.Time
	UpdatedAt       time.Time
	StatusChangedAt *time.Time
	DeliveredAt     *time.Time
	PODUploadedAt   *time.Time

	Tenant      Tenant       `gorm:"foreignKey:TenantID"`
	Assignments []Assignment `gorm:"foreignKey:LoadID"`
}

// Driver is a person who can be assigned to at most one load at a time.
type Driver struct {
	ID       string `gorm:"primaryKey;size:32"`
	TenantID string `gorm:"size:32;not null;index"`
	Name     string `gorm:"size:128;not null;index"`
	Phone    string `gorm:"size:32"`
	Status   string `gorm:"size:16;default:available;index"`
	Location string `gorm:"size:128"`
	Truck    string `gorm:"size:64"`

	// Hours-of-Service budgets, minutes remaining.
	DriveMinutesLeft int
	ShiftMinutesLeft int
	CycleMinutesLeft int
	DutyStatus       string `gorm:"size:16;default:off_duty"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Tenant Tenant `gorm:"foreignKey:TenantID"`
}

// Assignment links one load to one driver for an interval. Closed rows
// (UnassignedAt set) are kept as the audit trail; at most one row per load
// and per driver may be open at a time.
type Assignment struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	TenantID     string `gorm:"size:32;not null;index"`
	LoadID       string `gorm:"size:32;not null;index"`
	DriverID     string `gorm:"size:32;not null;index"`
	AssignedAt   time.Time
	UnassignedAt *time.Time `gorm:"index"`

	Load   Load   `gorm:"foreignKey:LoadID"`
	Driver Driver `gorm:"foreignKey:DriverID"`
}
