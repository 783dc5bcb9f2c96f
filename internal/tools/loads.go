package tools

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/lifecycle"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/lookup"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/models"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/notify"
	"gorm.io/gorm"
)

// enqueueNotice records an outbound notification. Best-effort: dispatch
// operations never fail because the notification row did not write.
func (e *Executor) enqueueNotice(kind, subject, body string) {
	if _, err := notify.Send(e.db, e.identity.TenantID, kind, subject, body, notify.SendOpts{}); err != nil {
		log.Printf("tools: enqueue %s notification: %v", kind, err)
	}
}

// loadView is the load shape returned to the model.
type loadView struct {
	ID             string  `json:"id"`
	Reference      string  `json:"reference"`
	Origin         string  `json:"origin"`
	Destination    string  `json:"destination"`
	Rate           float64 `json:"rate"`
	PickupDate     string  `json:"pickup_date,omitempty"`
	DeliveryDate   string  `json:"delivery_date,omitempty"`
	Status         string  `json:"status"`
	PODStatus      string  `json:"pod_status"`
	AssignedDriver string  `json:"assigned_driver,omitempty"`
	ProblemNote    string  `json:"problem_note,omitempty"`
}

func viewOf(l *models.Load) loadView {
	return loadView{
		ID:             l.ID,
		Reference:      l.ReferenceCode,
		Origin:         l.Origin,
		Destination:    l.Destination,
		Rate:           l.Rate,
		PickupDate:     l.PickupDate,
		DeliveryDate:   l.DeliveryDate,
		Status:         l.Status,
		PODStatus:      l.PODStatus,
		AssignedDriver: l.AssignedDriverName,
		ProblemNote:    l.ProblemNote,
	}
}

// resolveLoad maps a reference fragment to one load, or returns a ready
// Result (not-found or ambiguous) when resolution fails.
func (e *Executor) resolveLoad(fragment string) (*models.Load, *Result) {
	res, err := e.lookup.FindLoadByReference(e.identity.TenantID, fragment)
	if err != nil {
		r := errResult("load lookup failed: %v", err)
		return nil, &r
	}
	switch res.Kind {
	case lookup.KindUnique:
		return res.Load, nil
	case lookup.KindAmbiguous:
		candidates := make([]lookupCandidate, 0, len(res.Candidates))
		for _, c := range res.Candidates {
			candidates = append(candidates, lookupCandidate{
				ID: c.ID, Reference: c.ReferenceCode, Status: c.Status,
			})
		}
		r := ambiguousLoadResult(candidates)
		return nil, &r
	default:
		r := errResult("no load found matching %q", fragment)
		return nil, &r
	}
}

func (e *Executor) searchLoads(input json.RawMessage) Result {
	var params struct {
		Status      string `json:"status"`
		Origin      string `json:"origin"`
		Destination string `json:"destination"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return errResult("invalid parameters: %v", err)
	}

	q := e.db.Where("tenant_id = ?", e.identity.TenantID)
	if params.Status != "" {
		q = q.Where("status = ?", strings.ToLower(params.Status))
	}
	if params.Origin != "" {
		q = q.Where("lower(origin) LIKE ?", "%"+strings.ToLower(params.Origin)+"%")
	}
	if params.Destination != "" {
		q = q.Where("lower(destination) LIKE ?", "%"+strings.ToLower(params.Destination)+"%")
	}

	var loads []models.Load
	if err := q.Order("created_at DESC").Limit(25).Find(&loads).Error; err != nil {
		return errResult("search loads: %v", err)
	}

	views := make([]loadView, 0, len(loads))
	for i := range loads {
		views = append(views, viewOf(&loads[i]))
	}
	return jsonResult(map[string]interface{}{"loads": views, "count": len(views)})
}

// GenerateReference builds a unique LD-<year>-<nnnn> reference code.
func GenerateReference(db *gorm.DB, tenantID string, now time.Time) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10000))
		if err != nil {
			return "", fmt.Errorf("tools: generate reference: %w", err)
		}
		ref := fmt.Sprintf("LD-%d-%04d", now.Year(), n.Int64())

		var count int64
		if err := db.Model(&models.Load{}).
			Where("tenant_id = ? AND reference_code = ?", tenantID, ref).
			Count(&count).Error; err != nil {
			return "", fmt.Errorf("tools: check reference: %w", err)
		}
		if count == 0 {
			return ref, nil
		}
	}
	return "", fmt.Errorf("tools: generate reference: exhausted attempts")
}

func (e *Executor) createLoad(input json.RawMessage) Result {
	var params struct {
		Origin       string  `json:"origin"`
		Destination  string  `json:"destination"`
		Rate         float64 `json:"rate"`
		PickupDate   string  `json:"pickup_date"`
		DeliveryDate string  `json:"delivery_date"`
		Shipper      string  `json:"shipper"`
		Equipment    string  `json:"equipment"`
		CustomerRef  string  `json:"customer_ref"`
		Commodity    string  `json:"commodity"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return errResult("invalid parameters: %v", err)
	}
	if params.Origin == "" || params.Destination == "" {
		return errResult("origin and destination are required")
	}
	if params.Rate <= 0 {
		return errResult("rate must be positive")
	}
	if params.Equipment == "" {
		params.Equipment = "dry_van"
	}
	if params.Shipper == "" {
		params.Shipper = "TBD"
	}

	now := e.now()
	ref, err := GenerateReference(e.db, e.identity.TenantID, now)
	if err != nil {
		return errResult("create load: %v", err)
	}

	load := models.Load{
		ID:            uuid.NewString(),
		TenantID:      e.identity.TenantID,
		ReferenceCode: ref,
		Origin:        params.Origin,
		Destination:   params.Destination,
		Rate:          params.Rate,
		PickupDate:    params.PickupDate,
		DeliveryDate:  params.DeliveryDate,
		Shipper:       params.Shipper,
		Equipment:     params.Equipment,
		CustomerRef:   params.CustomerRef,
		Commodity:     params.Commodity,
		Status:        lifecycle.LoadAvailable,
		PODStatus:     lifecycle.PODNone,
	}
	if err := e.db.Create(&load).Error; err != nil {
		return errResult("create load failed: %v", err)
	}

	r := jsonResult(map[string]interface{}{"created": true, "load": viewOf(&load)})
	r.Memory = MemoryUpdate{SetLoad: true, LoadRef: load.ReferenceCode, LoadID: load.ID}
	return r
}

func (e *Executor) updateLoad(input json.RawMessage) Result {
	var params struct {
		LoadReference string                 `json:"load_reference"`
		Updates       map[string]interface{} `json:"updates"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return errResult("invalid parameters: %v", err)
	}
	if params.LoadReference == "" {
		return errResult("load_reference is required")
	}

	load, failed := e.resolveLoad(params.LoadReference)
	if failed != nil {
		return *failed
	}

	// Whitelist of mutable fields; lifecycle fields only move through
	// their dedicated tools.
	allowed := map[string]string{
		"origin":        "origin",
		"destination":   "destination",
		"rate":          "rate",
		"pickup_date":   "pickup_date",
		"delivery_date": "delivery_date",
		"shipper":       "shipper",
		"equipment":     "equipment",
		"customer_ref":  "customer_ref",
		"commodity":     "commodity",
	}
	updates := map[string]interface{}{}
	for k, v := range params.Updates {
		if col, ok := allowed[k]; ok {
			updates[col] = v
		}
	}
	if len(updates) == 0 {
		return errResult("no updatable fields in request")
	}

	if err := e.db.Model(&models.Load{}).
		Where("id = ? AND tenant_id = ?", load.ID, e.identity.TenantID).
		Updates(updates).Error; err != nil {
		return errResult("update load %s: %v", load.ReferenceCode, err)
	}

	var fresh models.Load
	e.db.Where("id = ?", load.ID).First(&fresh)
	r := jsonResult(map[string]interface{}{"updated": true, "load": viewOf(&fresh)})
	r.Memory = MemoryUpdate{SetLoad: true, LoadRef: fresh.ReferenceCode, LoadID: fresh.ID}
	return r
}

func (e *Executor) markInTransit(input json.RawMessage) Result {
	var params struct {
		LoadReference string `json:"load_reference"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return errResult("invalid parameters: %v", err)
	}
	if params.LoadReference == "" {
		return errResult("load_reference is required")
	}

	load, failed := e.resolveLoad(params.LoadReference)
	if failed != nil {
		return *failed
	}

	memUpdate := MemoryUpdate{SetLoad: true, LoadRef: load.ReferenceCode, LoadID: load.ID}

	if load.Status == lifecycle.LoadInTransit {
		r := jsonResult(map[string]interface{}{"in_transit": true, "load": viewOf(load), "note": "already in transit"})
		r.Memory = memUpdate
		return r
	}
	if err := lifecycle.ValidateTransition(load.Status, lifecycle.LoadInTransit); err != nil {
		return errResult("cannot mark %s in transit from status %s", load.ReferenceCode, load.Status)
	}

	result := e.db.Model(&models.Load{}).
		Where("id = ? AND tenant_id = ? AND status = ?", load.ID, e.identity.TenantID, load.Status).
		Updates(map[string]interface{}{
			"status":            lifecycle.LoadInTransit,
			"status_changed_at": e.now(),
		})
	if result.Error != nil {
		return errResult("mark in transit %s: %v", load.ReferenceCode, result.Error)
	}
	if result.RowsAffected == 0 {
		return errResult("load %s changed concurrently; try again", load.ReferenceCode)
	}

	var fresh models.Load
	e.db.Where("id = ?", load.ID).First(&fresh)
	r := jsonResult(map[string]interface{}{"in_transit": true, "load": viewOf(&fresh)})
	r.Memory = memUpdate
	return r
}

func (e *Executor) markDelivered(input json.RawMessage) Result {
	var params struct {
		LoadReference string `json:"load_reference"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return errResult("invalid parameters: %v", err)
	}
	if params.LoadReference == "" {
		return errResult("load_reference is required")
	}

	load, failed := e.resolveLoad(params.LoadReference)
	if failed != nil {
		return *failed
	}

	memUpdate := MemoryUpdate{SetLoad: true, LoadRef: load.ReferenceCode, LoadID: load.ID}

	// Re-delivering an already delivered load is a no-op success.
	if load.Status == lifecycle.LoadDelivered {
		r := jsonResult(map[string]interface{}{"delivered": true, "load": viewOf(load), "note": "already delivered"})
		r.Memory = memUpdate
		return r
	}
	if err := lifecycle.ValidateTransition(load.Status, lifecycle.LoadDelivered); err != nil {
		return errResult("cannot mark %s delivered from status %s", load.ReferenceCode, load.Status)
	}

	now := e.now()
	updates := map[string]interface{}{
		"status":            lifecycle.LoadDelivered,
		"status_changed_at": now,
		"delivered_at":      now,
		"pod_status":        lifecycle.PODPending,
	}
	result := e.db.Model(&models.Load{}).
		Where("id = ? AND tenant_id = ? AND status = ?", load.ID, e.identity.TenantID, load.Status).
		Updates(updates)
	if result.Error != nil {
		return errResult("mark delivered %s: %v", load.ReferenceCode, result.Error)
	}
	if result.RowsAffected == 0 {
		return errResult("load %s changed concurrently; try again", load.ReferenceCode)
	}

	e.enqueueNotice(notify.KindLoadDelivered,
		fmt.Sprintf("Load %s delivered", load.ReferenceCode),
		fmt.Sprintf("%s to %s delivered; POD pending.", load.Origin, load.Destination))

	var fresh models.Load
	e.db.Where("id = ?", load.ID).First(&fresh)
	r := jsonResult(map[string]interface{}{"delivered": true, "load": viewOf(&fresh)})
	r.Memory = memUpdate
	return r
}

// freeDriver is the single place that releases a load's driver: it closes
// the open assignment row, clears the load's denormalized assignment
// fields, and returns the driver to available, all in one transaction.
// Callers hand it the tx so the POD update commits atomically with it.
func (e *Executor) freeDriver(tx *gorm.DB, load *models.Load, now time.Time) error {
	if load.AssignedDriverID == nil {
		return nil
	}
	driverID := *load.AssignedDriverID

	if err := tx.Model(&models.Assignment{}).
		Where("tenant_id = ? AND load_id = ? AND unassigned_at IS NULL", e.identity.TenantID, load.ID).
		Update("unassigned_at", now).Error; err != nil {
		return fmt.Errorf("close assignment: %w", err)
	}

	if err := tx.Model(&models.Load{}).
		Where("id = ? AND tenant_id = ?", load.ID, e.identity.TenantID).
		Updates(map[string]interface{}{
			"assigned_driver_id":   nil,
			"assigned_driver_name": "",
		}).Error; err != nil {
		return fmt.Errorf("clear load assignment: %w", err)
	}

	if err := tx.Model(&models.Driver{}).
		Where("id = ? AND tenant_id = ? AND status = ?", driverID, e.identity.TenantID, lifecycle.DriverAssigned).
		Update("status", lifecycle.DriverAvailable).Error; err != nil {
		return fmt.Errorf("free driver: %w", err)
	}
	return nil
}

func (e *Executor) confirmPOD(input json.RawMessage) Result {
	var params struct {
		LoadReference string `json:"load_reference"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return errResult("invalid parameters: %v", err)
	}
	if params.LoadReference == "" {
		return errResult("load_reference is required")
	}

	load, failed := e.resolveLoad(params.LoadReference)
	if failed != nil {
		return *failed
	}

	memUpdate := MemoryUpdate{SetLoad: true, LoadRef: load.ReferenceCode, LoadID: load.ID}

	// Re-confirming is a no-op success: same terminal state, no second
	// round of side effects.
	if load.PODStatus == lifecycle.PODReceived {
		r := jsonResult(map[string]interface{}{"pod_received": true, "load": viewOf(load), "note": "POD already confirmed"})
		r.Memory = memUpdate
		return r
	}

	now := e.now()
	err := e.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Load{}).
			Where("id = ? AND tenant_id = ? AND pod_status <> ?", load.ID, e.identity.TenantID, lifecycle.PODReceived).
			Updates(map[string]interface{}{
				"pod_status":      lifecycle.PODReceived,
				"pod_uploaded_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Raced with another confirmation; nothing left to do.
			return nil
		}
		return e.freeDriver(tx, load, now)
	})
	if err != nil {
		return errResult("confirm POD for %s: %v", load.ReferenceCode, err)
	}

	e.enqueueNotice(notify.KindPODReceived,
		fmt.Sprintf("POD received for load %s", load.ReferenceCode),
		fmt.Sprintf("%s to %s is fully closed.", load.Origin, load.Destination))

	var fresh models.Load
	e.db.Where("id = ?", load.ID).First(&fresh)
	r := jsonResult(map[string]interface{}{"pod_received": true, "load": viewOf(&fresh)})
	r.Memory = memUpdate
	return r
}

func (e *Executor) releaseDriver(input json.RawMessage) Result {
	var params struct {
		LoadReference string `json:"load_reference"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return errResult("invalid parameters: %v", err)
	}
	if params.LoadReference == "" {
		return errResult("load_reference is required")
	}

	load, failed := e.resolveLoad(params.LoadReference)
	if failed != nil {
		return *failed
	}

	memUpdate := MemoryUpdate{SetLoad: true, LoadRef: load.ReferenceCode, LoadID: load.ID}

	if load.AssignedDriverID == nil {
		r := jsonResult(map[string]interface{}{"released": true, "load": viewOf(load), "note": "no driver assigned"})
		r.Memory = memUpdate
		return r
	}

	// Deliberately leaves pod_status alone (stays pending): the dispatcher
	// gets the driver back before paperwork arrives.
	now := e.now()
	err := e.db.Transaction(func(tx *gorm.DB) error {
		return e.freeDriver(tx, load, now)
	})
	if err != nil {
		return errResult("release driver from %s: %v", load.ReferenceCode, err)
	}

	var fresh models.Load
	e.db.Where("id = ?", load.ID).First(&fresh)
	r := jsonResult(map[string]interface{}{"released": true, "load": viewOf(&fresh)})
	r.Memory = memUpdate
	return r
}

func (e *Executor) markProblem(input json.RawMessage) Result {
	var params struct {
		LoadReference string `json:"load_reference"`
		Reason        string `json:"reason"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return errResult("invalid parameters: %v", err)
	}
	if params.LoadReference == "" {
		return errResult("load_reference is required")
	}

	load, failed := e.resolveLoad(params.LoadReference)
	if failed != nil {
		return *failed
	}

	// No reason yet: remember which load the problem is about so the next
	// turn can supply just the reason.
	if strings.TrimSpace(params.Reason) == "" {
		r := jsonResult(map[string]interface{}{
			"needs_reason": true,
			"load":         viewOf(load),
			"note":         "ask the user what the problem is, then call mark_load_problem again with the reason",
		})
		r.Memory = MemoryUpdate{
			SetLoad: true, LoadRef: load.ReferenceCode, LoadID: load.ID,
			SetPendingProblem: true, PendingProblemRef: load.ReferenceCode,
		}
		return r
	}

	memUpdate := MemoryUpdate{
		SetLoad: true, LoadRef: load.ReferenceCode, LoadID: load.ID,
		ClearPendingProblem: true,
	}

	now := e.now()
	updates := map[string]interface{}{
		"problem_flag": true,
		"problem_note": params.Reason,
	}
	if load.Status != lifecycle.LoadProblem {
		if !lifecycle.CanFlagProblem(load.Status, load.PODStatus) {
			return errResult("load %s is closed (delivered, POD received) and cannot be flagged", load.ReferenceCode)
		}
		updates["status"] = lifecycle.LoadProblem
		updates["prior_status"] = load.Status
		updates["status_changed_at"] = now
	}

	if err := e.db.Model(&models.Load{}).
		Where("id = ? AND tenant_id = ?", load.ID, e.identity.TenantID).
		Updates(updates).Error; err != nil {
		return errResult("flag problem on %s: %v", load.ReferenceCode, err)
	}

	e.enqueueNotice(notify.KindLoadProblem,
		fmt.Sprintf("Problem on load %s", load.ReferenceCode), params.Reason)

	var fresh models.Load
	e.db.Where("id = ?", load.ID).First(&fresh)
	r := jsonResult(map[string]interface{}{"problem_flagged": true, "load": viewOf(&fresh)})
	r.Memory = memUpdate
	return r
}
