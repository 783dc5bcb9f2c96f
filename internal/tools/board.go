package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/winmachacker-tech/atlas-command-sub005/internal/models"
)

// boardRow is one load on the dispatch board, joined with its current
// driver as derived from the open assignment row.
type boardRow struct {
	Reference    string  `json:"reference"`
	Origin       string  `json:"origin"`
	Destination  string  `json:"destination"`
	Rate         float64 `json:"rate"`
	Status       string  `json:"status"`
	PODStatus    string  `json:"pod_status"`
	Driver       string  `json:"driver,omitempty"`
	DriverStatus string  `json:"driver_status,omitempty"`
	ProblemNote  string  `json:"problem_note,omitempty"`
}

// BoardSnapshot is the whole-board view plus any integrity findings.
type BoardSnapshot struct {
	Rows []boardRow `json:"loads"`
	// IntegrityIssues lists loads whose denormalized assignment disagrees
	// with the open assignment row. The board reports the divergence
	// rather than silently resolving it.
	IntegrityIssues []string `json:"integrity_issues,omitempty"`
}

// Snapshot assembles the board for a tenant. Exported so the digest job
// and the CLI board command share the exact same query as the tool.
func Snapshot(e *Executor, status, driverName string, assignedOnly bool) (*BoardSnapshot, error) {
	q := e.db.Where("tenant_id = ?", e.identity.TenantID)
	if status != "" {
		q = q.Where("status = ?", strings.ToLower(status))
	}
	if assignedOnly {
		q = q.Where("assigned_driver_id IS NOT NULL")
	}
	if driverName != "" {
		q = q.Where("lower(assigned_driver_name) LIKE ?", "%"+strings.ToLower(driverName)+"%")
	}

	var loads []models.Load
	if err := q.Order("created_at DESC").Limit(100).Find(&loads).Error; err != nil {
		return nil, fmt.Errorf("tools: board query: %w", err)
	}

	// Open assignments and driver statuses for the whole tenant, fetched
	// once and joined in memory.
	var open []models.Assignment
	if err := e.db.Where("tenant_id = ? AND unassigned_at IS NULL", e.identity.TenantID).
		Find(&open).Error; err != nil {
		return nil, fmt.Errorf("tools: open assignments: %w", err)
	}
	openByLoad := make(map[string]models.Assignment, len(open))
	for _, a := range open {
		openByLoad[a.LoadID] = a
	}

	var drivers []models.Driver
	if err := e.db.Where("tenant_id = ?", e.identity.TenantID).Find(&drivers).Error; err != nil {
		return nil, fmt.Errorf("tools: drivers: %w", err)
	}
	driverByID := make(map[string]models.Driver, len(drivers))
	for _, d := range drivers {
		driverByID[d.ID] = d
	}

	snap := &BoardSnapshot{}
	for i := range loads {
		l := &loads[i]
		row := boardRow{
			Reference:   l.ReferenceCode,
			Origin:      l.Origin,
			Destination: l.Destination,
			Rate:        l.Rate,
			Status:      l.Status,
			PODStatus:   l.PODStatus,
			Driver:      l.AssignedDriverName,
			ProblemNote: l.ProblemNote,
		}

		openRow, hasOpen := openByLoad[l.ID]
		switch {
		case l.AssignedDriverID == nil && hasOpen:
			snap.IntegrityIssues = append(snap.IntegrityIssues,
				fmt.Sprintf("load %s has an open assignment row but no denormalized driver", l.ReferenceCode))
		case l.AssignedDriverID != nil && !hasOpen:
			snap.IntegrityIssues = append(snap.IntegrityIssues,
				fmt.Sprintf("load %s has a denormalized driver but no open assignment row", l.ReferenceCode))
		case l.AssignedDriverID != nil && hasOpen && *l.AssignedDriverID != openRow.DriverID:
			snap.IntegrityIssues = append(snap.IntegrityIssues,
				fmt.Sprintf("load %s denormalized driver disagrees with open assignment row", l.ReferenceCode))
		}

		if l.AssignedDriverID != nil {
			if d, ok := driverByID[*l.AssignedDriverID]; ok {
				row.DriverStatus = d.Status
			}
		}
		snap.Rows = append(snap.Rows, row)
	}
	return snap, nil
}

func (e *Executor) boardStatus(input json.RawMessage) Result {
	var params struct {
		Status       string `json:"status"`
		AssignedOnly bool   `json:"assigned_only"`
		DriverName   string `json:"driver_name"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return errResult("invalid parameters: %v", err)
	}

	snap, err := Snapshot(e, params.Status, params.DriverName, params.AssignedOnly)
	if err != nil {
		return errResult("board status: %v", err)
	}
	return jsonResult(snap)
}
