// Package tools implements the named, schema-validated operations the
// dispatch assistant may invoke against the store.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/winmachacker-tech/atlas-command-sub005/internal/auth"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/hos"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/lookup"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/memory"
	"gorm.io/gorm"
)

// Tool names. The catalog in definitions.go must stay in sync.
const (
	ToolSearchLoads        = "search_loads"
	ToolSearchDrivers      = "search_drivers"
	ToolSearchDriversByHOS = "search_drivers_by_hours_of_service"
	ToolCreateLoad         = "create_load"
	ToolUpdateLoad         = "update_load"
	ToolAssignDriver       = "assign_driver_to_load"
	ToolMarkInTransit      = "mark_load_in_transit"
	ToolMarkDelivered      = "mark_load_delivered"
	ToolConfirmPOD         = "confirm_pod_received"
	ToolReleaseDriver      = "release_driver_without_pod"
	ToolMarkProblem        = "mark_load_problem"
	ToolGetBoardStatus     = "get_board_status"
)

// Ranker abstracts the HOS ranking service for tests.
type Ranker interface {
	Rank(ctx context.Context, req hos.RankRequest) ([]hos.RankedDriver, error)
}

// Result is the outcome of one tool execution: a JSON payload for the
// model, an error flag, and the conversation-memory effect.
type Result struct {
	Content string
	IsError bool
	Memory  MemoryUpdate
}

// MemoryUpdate describes how a tool result mutates conversation memory.
// Zero value means no change.
type MemoryUpdate struct {
	SetLoad             bool
	LoadRef             string
	LoadID              string
	SetDriver           bool
	DriverName          string
	DriverID            string
	DriverHOS           int
	SetPendingProblem   bool
	PendingProblemRef   string
	ClearPendingProblem bool
}

// Apply folds the update into a ContextMemory.
func (u MemoryUpdate) Apply(m *memory.ContextMemory) {
	if u.SetLoad {
		m.LastLoadReference = u.LoadRef
		m.LastLoadID = u.LoadID
	}
	if u.SetDriver {
		m.LastDriverName = u.DriverName
		m.LastDriverID = u.DriverID
		m.LastDriverHOSMinutes = u.DriverHOS
	}
	if u.SetPendingProblem {
		m.PendingProblemReference = u.PendingProblemRef
	}
	if u.ClearPendingProblem {
		m.PendingProblemReference = ""
	}
}

// Executor executes tools under one resolved identity. Every query it
// issues carries the identity's tenant id; callers cannot widen the scope.
type Executor struct {
	db       *gorm.DB
	identity auth.Identity
	lookup   *lookup.Service
	ranker   Ranker
	now      func() time.Time
}

// ExecutorOpts holds parameters for creating an Executor.
type ExecutorOpts struct {
	DB       *gorm.DB
	Identity auth.Identity
	Ranker   Ranker           // optional; HOS search fails gracefully without it
	Now      func() time.Time // defaults to time.Now
}

// NewExecutor creates an Executor.
func NewExecutor(opts ExecutorOpts) (*Executor, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("tools: executor: db is required")
	}
	if opts.Identity.TenantID == "" {
		return nil, fmt.Errorf("tools: executor: tenant scope is required")
	}
	svc, err := lookup.NewService(opts.DB)
	if err != nil {
		return nil, err
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Executor{
		db:       opts.DB,
		identity: opts.Identity,
		lookup:   svc,
		ranker:   opts.Ranker,
		now:      now,
	}, nil
}

// TenantID returns the executor's tenant scope.
func (e *Executor) TenantID() string { return e.identity.TenantID }

// Execute runs a tool by name with the given JSON input. Failures are
// returned as structured results for the model, never as Go errors, so a
// bad tool call can't abort the conversation turn.
func (e *Executor) Execute(ctx context.Context, name string, input json.RawMessage) Result {
	switch name {
	case ToolSearchLoads:
		return e.searchLoads(input)
	case ToolSearchDrivers:
		return e.searchDrivers(input)
	case ToolSearchDriversByHOS:
		return e.searchDriversByHOS(ctx, input)
	case ToolCreateLoad:
		return e.createLoad(input)
	case ToolUpdateLoad:
		return e.updateLoad(input)
	case ToolAssignDriver:
		return e.assignDriver(input)
	case ToolMarkInTransit:
		return e.markInTransit(input)
	case ToolMarkDelivered:
		return e.markDelivered(input)
	case ToolConfirmPOD:
		return e.confirmPOD(input)
	case ToolReleaseDriver:
		return e.releaseDriver(input)
	case ToolMarkProblem:
		return e.markProblem(input)
	case ToolGetBoardStatus:
		return e.boardStatus(input)
	default:
		return errResult("unknown tool: %s", name)
	}
}

// jsonResult marshals v as the result payload.
func jsonResult(v interface{}) Result {
	data, err := json.Marshal(v)
	if err != nil {
		return errResult("encode result: %v", err)
	}
	return Result{Content: string(data)}
}

// errResult builds a structured failure the model can explain to the user.
func errResult(format string, args ...interface{}) Result {
	return Result{Content: fmt.Sprintf(format, args...), IsError: true}
}

// ambiguousLoadResult reports multiple plausible load matches so the model
// asks a clarifying question instead of acting on a guess.
func ambiguousLoadResult(candidates []lookupCandidate) Result {
	return jsonResult(map[string]interface{}{
		"ambiguous":  true,
		"entity":     "load",
		"candidates": candidates,
		"note":       "multiple loads match; ask the user which one they mean",
	})
}

type lookupCandidate struct {
	ID        string `json:"id"`
	Reference string `json:"reference,omitempty"`
	Name      string `json:"name,omitempty"`
	Status    string `json:"status"`
}
