package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/winmachacker-tech/atlas-command-sub005/internal/hos"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/lifecycle"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/lookup"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/models"
	"gorm.io/gorm"
)

// driverView is the driver shape returned to the model.
type driverView struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Status           string `json:"status"`
	Location         string `json:"location,omitempty"`
	Truck            string `json:"truck,omitempty"`
	DriveMinutesLeft int    `json:"drive_minutes_left"`
	ShiftMinutesLeft int    `json:"shift_minutes_left"`
	DutyStatus       string `json:"duty_status,omitempty"`
}

func driverViewOf(d *models.Driver) driverView {
	return driverView{
		ID:               d.ID,
		Name:             d.Name,
		Status:           d.Status,
		Location:         d.Location,
		Truck:            d.Truck,
		DriveMinutesLeft: d.DriveMinutesLeft,
		ShiftMinutesLeft: d.ShiftMinutesLeft,
		DutyStatus:       d.DutyStatus,
	}
}

// resolveDriver maps a name fragment or id to one driver, or returns a
// ready Result when resolution fails.
func (e *Executor) resolveDriver(fragment string) (*models.Driver, *Result) {
	// An exact id match short-circuits the fuzzy path.
	var byID models.Driver
	if err := e.db.Where("id = ? AND tenant_id = ?", fragment, e.identity.TenantID).
		First(&byID).Error; err == nil {
		return &byID, nil
	}

	res, err := e.lookup.FindDriverByName(e.identity.TenantID, fragment)
	if err != nil {
		r := errResult("driver lookup failed: %v", err)
		return nil, &r
	}
	switch res.Kind {
	case lookup.KindUnique:
		return res.Driver, nil
	case lookup.KindAmbiguous:
		candidates := make([]lookupCandidate, 0, len(res.Candidates))
		for _, c := range res.Candidates {
			candidates = append(candidates, lookupCandidate{ID: c.ID, Name: c.Name, Status: c.Status})
		}
		r := jsonResult(map[string]interface{}{
			"ambiguous":  true,
			"entity":     "driver",
			"candidates": candidates,
			"note":       "multiple drivers match; ask the user which one they mean",
		})
		return nil, &r
	default:
		r := errResult("no driver found matching %q", fragment)
		return nil, &r
	}
}

func (e *Executor) searchDrivers(input json.RawMessage) Result {
	var params struct {
		Status   string `json:"status"`
		Location string `json:"location"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return errResult("invalid parameters: %v", err)
	}

	q := e.db.Where("tenant_id = ?", e.identity.TenantID)
	if params.Status != "" {
		q = q.Where("status = ?", strings.ToLower(params.Status))
	}
	if params.Location != "" {
		q = q.Where("lower(location) LIKE ?", "%"+strings.ToLower(params.Location)+"%")
	}

	var drivers []models.Driver
	if err := q.Order("name ASC").Limit(25).Find(&drivers).Error; err != nil {
		return errResult("search drivers: %v", err)
	}

	views := make([]driverView, 0, len(drivers))
	for i := range drivers {
		views = append(views, driverViewOf(&drivers[i]))
	}
	return jsonResult(map[string]interface{}{"drivers": views, "count": len(views)})
}

func (e *Executor) searchDriversByHOS(ctx context.Context, input json.RawMessage) Result {
	var params struct {
		PickupTime      string `json:"pickup_time"`
		MinDriveMinutes int    `json:"min_drive_minutes"`
		OriginCity      string `json:"origin_city"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return errResult("invalid parameters: %v", err)
	}
	if params.PickupTime == "" {
		return errResult("pickup_time is required")
	}
	if e.ranker == nil {
		return errResult("hours-of-service ranking is not available right now")
	}

	ranked, err := e.ranker.Rank(ctx, hos.RankRequest{
		TenantID:        e.identity.TenantID,
		PickupTime:      params.PickupTime,
		MinDriveMinutes: params.MinDriveMinutes,
		OriginCity:      params.OriginCity,
	})
	if err != nil {
		// Upstream failure becomes a structured result the model can
		// explain, not an aborted turn.
		return errResult("hours-of-service service unavailable: %v", err)
	}

	r := jsonResult(map[string]interface{}{"drivers": ranked, "count": len(ranked)})
	if len(ranked) > 0 {
		r.Memory = MemoryUpdate{
			SetDriver:  true,
			DriverName: ranked[0].Name,
			DriverID:   ranked[0].DriverID,
			DriverHOS:  ranked[0].DriveMinutesLeft,
		}
	}
	return r
}

func (e *Executor) assignDriver(input json.RawMessage) Result {
	var params struct {
		Driver        string `json:"driver"`
		LoadReference string `json:"load_reference"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return errResult("invalid parameters: %v", err)
	}
	if params.Driver == "" {
		return errResult("driver is required")
	}
	if params.LoadReference == "" {
		return errResult("load_reference is required")
	}

	driver, failed := e.resolveDriver(params.Driver)
	if failed != nil {
		return *failed
	}
	load, failed := e.resolveLoad(params.LoadReference)
	if failed != nil {
		return *failed
	}

	if lifecycle.Terminal(load.Status, load.PODStatus) {
		return errResult("load %s is already delivered and closed", load.ReferenceCode)
	}

	now := e.now()
	nextStatus := load.Status
	if load.Status == lifecycle.LoadAvailable {
		nextStatus = lifecycle.LoadDispatched
	}

	err := e.db.Transaction(func(tx *gorm.DB) error {
		// Claim the driver only if still available. The conditional update
		// is what makes concurrent assignment attempts safe.
		result := tx.Model(&models.Driver{}).
			Where("id = ? AND tenant_id = ? AND status = ?", driver.ID, e.identity.TenantID, lifecycle.DriverAvailable).
			Update("status", lifecycle.DriverAssigned)
		if result.Error != nil {
			return fmt.Errorf("claim driver: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("driver %s is already assigned elsewhere", driver.Name)
		}

		// Claim the load only if it has no current driver.
		result = tx.Model(&models.Load{}).
			Where("id = ? AND tenant_id = ? AND assigned_driver_id IS NULL", load.ID, e.identity.TenantID).
			Updates(map[string]interface{}{
				"assigned_driver_id":   driver.ID,
				"assigned_driver_name": driver.Name,
				"status":               nextStatus,
				"status_changed_at":    now,
			})
		if result.Error != nil {
			return fmt.Errorf("claim load: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("load %s already has a driver assigned", load.ReferenceCode)
		}

		assignment := models.Assignment{
			TenantID:   e.identity.TenantID,
			LoadID:     load.ID,
			DriverID:   driver.ID,
			AssignedAt: now,
		}
		if err := tx.Create(&assignment).Error; err != nil {
			return fmt.Errorf("create assignment: %w", err)
		}
		return nil
	})
	if err != nil {
		return errResult("assign %s to %s: %v", driver.Name, load.ReferenceCode, err)
	}

	driver.Status = lifecycle.DriverAssigned
	var fresh models.Load
	e.db.Where("id = ?", load.ID).First(&fresh)
	r := jsonResult(map[string]interface{}{"assigned": true, "load": viewOf(&fresh), "driver": driverViewOf(driver)})
	r.Memory = MemoryUpdate{
		SetLoad: true, LoadRef: fresh.ReferenceCode, LoadID: fresh.ID,
		SetDriver: true, DriverName: driver.Name, DriverID: driver.ID,
		DriverHOS: driver.DriveMinutesLeft,
	}
	return r
}

// CurrentLoadReference returns the reference of the load a driver is
// currently on, via the open assignment row. Empty when the driver has no
// active load. Used by the channel fast paths to resolve "delivered" from
// a linked driver without a model round trip.
func (e *Executor) CurrentLoadReference(driverID string) (string, error) {
	if driverID == "" {
		return "", nil
	}
	var assignment models.Assignment
	err := e.db.Where("tenant_id = ? AND driver_id = ? AND unassigned_at IS NULL",
		e.identity.TenantID, driverID).
		Order("assigned_at DESC").First(&assignment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("tools: current load for driver %s: %w", driverID, err)
	}

	var load models.Load
	if err := e.db.Where("id = ? AND tenant_id = ?", assignment.LoadID, e.identity.TenantID).
		First(&load).Error; err != nil {
		return "", fmt.Errorf("tools: load %s: %w", assignment.LoadID, err)
	}
	return load.ReferenceCode, nil
}
