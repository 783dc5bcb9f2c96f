package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/auth"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/llm"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/memory"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/models"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/tools"
	"gorm.io/gorm"
)

const (
	defaultMaxRounds    = 5
	defaultBudget       = 30 * time.Second
	defaultHistoryTurns = 10
)

// CappedReply is the deterministic answer returned when the round cap is
// reached before the model produces a final answer.
const CappedReply = "I couldn't finish that request. Could you try again with a bit more detail?"

// ErrorReply is the only text surfaced to the channel on an internal
// failure. Raw error detail never reaches the user.
const ErrorReply = "Something went wrong on my end. Please try again in a moment."

// Inbound is one user message entering the loop under a resolved identity.
type Inbound struct {
	Identity        auth.Identity
	ChannelIdentity string // e.g. "telegram:8812", "web:<session>"
	UserText        string
}

// Loop drives the tool-calling cycle for inbound messages.
type Loop struct {
	db           *gorm.DB
	completer    llm.Completer
	ranker       tools.Ranker
	store        *memory.Store
	maxRounds    int
	budget       time.Duration
	historyTurns int
	now          func() time.Time
}

// LoopOpts holds parameters for creating a Loop.
type LoopOpts struct {
	DB           *gorm.DB
	Completer    llm.Completer
	Ranker       tools.Ranker  // optional
	MaxRounds    int           // defaults to 5
	Budget       time.Duration // wall-clock cap per message, defaults to 30s
	HistoryTurns int           // prior turns replayed to the model, defaults to 10
	Now          func() time.Time
}

// NewLoop creates a Loop.
func NewLoop(opts LoopOpts) (*Loop, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("orchestrator: loop: db is required")
	}
	if opts.Completer == nil {
		return nil, fmt.Errorf("orchestrator: loop: completer is required")
	}
	store, err := memory.NewStore(opts.DB)
	if err != nil {
		return nil, err
	}
	l := &Loop{
		db:           opts.DB,
		completer:    opts.Completer,
		ranker:       opts.Ranker,
		store:        store,
		maxRounds:    opts.MaxRounds,
		budget:       opts.Budget,
		historyTurns: opts.HistoryTurns,
		now:          opts.Now,
	}
	if l.maxRounds <= 0 {
		l.maxRounds = defaultMaxRounds
	}
	if l.budget <= 0 {
		l.budget = defaultBudget
	}
	if l.historyTurns <= 0 {
		l.historyTurns = defaultHistoryTurns
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l, nil
}

// Handle runs one inbound message to a terminal state and returns the reply
// text. The conversation memory is persisted on every path out, including
// the capped and error paths. The returned error is for the caller's log;
// the reply string is always safe to send to the channel.
func (l *Loop) Handle(ctx context.Context, in Inbound) (string, error) {
	if in.UserText == "" {
		return ErrorReply, fmt.Errorf("orchestrator: empty user text")
	}
	ctx, cancel := context.WithTimeout(ctx, l.budget)
	defer cancel()

	tenantID := in.Identity.TenantID
	mem, err := l.store.Load(tenantID, in.ChannelIdentity)
	if err != nil {
		// A memory read failure degrades to an empty context, not a dead turn.
		log.Printf("orchestrator: load memory %s/%s: %v", tenantID, in.ChannelIdentity, err)
		mem = memory.ContextMemory{}
	}

	exec, err := tools.NewExecutor(tools.ExecutorOpts{
		DB:       l.db,
		Identity: in.Identity,
		Ranker:   l.ranker,
		Now:      l.now,
	})
	if err != nil {
		return ErrorReply, err
	}

	system := BuildSystemPrompt(mem, tenantID, l.now())
	messages := l.history(tenantID, in.ChannelIdentity)
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(in.UserText)))
	defs := tools.Definitions()

	for round := 0; round < l.maxRounds; round++ {
		comp, err := l.completer.Complete(ctx, system, messages, defs)
		if err != nil {
			l.saveMemory(tenantID, in.ChannelIdentity, mem)
			return ErrorReply, fmt.Errorf("orchestrator: completion round %d: %w", round+1, err)
		}

		if len(comp.ToolCalls) == 0 {
			l.saveMemory(tenantID, in.ChannelIdentity, mem)
			reply := strings.TrimSpace(comp.Text)
			if reply == "" {
				reply = CappedReply
			}
			return reply, nil
		}

		var assistantBlocks []anthropic.ContentBlockParamUnion
		var resultBlocks []anthropic.ContentBlockParamUnion
		if comp.Text != "" {
			assistantBlocks = append(assistantBlocks, anthropic.NewTextBlock(comp.Text))
		}
		for _, call := range comp.ToolCalls {
			input := injectMemoryFallbacks(call.Name, call.Input, mem)
			assistantBlocks = append(assistantBlocks,
				anthropic.NewToolUseBlock(call.ID, input, call.Name))

			res := exec.Execute(ctx, call.Name, input)
			if !res.IsError {
				res.Memory.Apply(&mem)
			}
			resultBlocks = append(resultBlocks,
				anthropic.NewToolResultBlock(call.ID, res.Content, res.IsError))
		}
		messages = append(messages, anthropic.NewAssistantMessage(assistantBlocks...))
		messages = append(messages, anthropic.NewUserMessage(resultBlocks...))
	}

	// Capped is a degraded success, not an error.
	l.saveMemory(tenantID, in.ChannelIdentity, mem)
	return CappedReply, nil
}

func (l *Loop) saveMemory(tenantID, channelIdentity string, mem memory.ContextMemory) {
	if err := l.store.Save(tenantID, channelIdentity, mem); err != nil {
		log.Printf("orchestrator: save memory %s/%s: %v", tenantID, channelIdentity, err)
	}
}

// history replays the trailing window of prior non-intercepted turns for
// this channel identity as alternating user/assistant messages.
func (l *Loop) history(tenantID, channelIdentity string) []anthropic.MessageParam {
	var rows []models.MessageLog
	err := l.db.
		Where("tenant_id = ? AND channel_identity = ? AND intercepted = ?", tenantID, channelIdentity, false).
		Order("created_at DESC").
		Limit(l.historyTurns * 2).
		Find(&rows).Error
	if err != nil {
		log.Printf("orchestrator: load history %s/%s: %v", tenantID, channelIdentity, err)
		return nil
	}

	msgs := make([]anthropic.MessageParam, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if row.Content == "" {
			continue
		}
		switch row.Direction {
		case models.DirectionIn:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(row.Content)))
		case models.DirectionOut:
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(row.Content)))
		}
	}
	return msgs
}

// loadRefTools lists the tools whose load_reference parameter falls back to
// the remembered load when the model omits it ("mark that load delivered").
var loadRefTools = map[string]bool{
	tools.ToolUpdateLoad:    true,
	tools.ToolAssignDriver:  true,
	tools.ToolMarkInTransit: true,
	tools.ToolMarkDelivered: true,
	tools.ToolConfirmPOD:    true,
	tools.ToolReleaseDriver: true,
	tools.ToolMarkProblem:   true,
}

// injectMemoryFallbacks fills omitted entity references from conversation
// memory before the tool executes. Unparseable input is passed through so
// the executor reports the schema problem itself.
func injectMemoryFallbacks(name string, input json.RawMessage, mem memory.ContextMemory) json.RawMessage {
	needLoad := loadRefTools[name] && mem.LastLoadReference != ""
	needDriver := name == tools.ToolAssignDriver && mem.LastDriverName != ""
	if !needLoad && !needDriver {
		return input
	}

	params := map[string]interface{}{}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &params); err != nil {
			return input
		}
	}

	changed := false
	if needLoad {
		if v, ok := params["load_reference"].(string); !ok || v == "" {
			params["load_reference"] = mem.LastLoadReference
			changed = true
		}
	}
	if needDriver {
		if v, ok := params["driver"].(string); !ok || v == "" {
			params["driver"] = mem.LastDriverName
			changed = true
		}
	}
	if !changed {
		return input
	}

	out, err := json.Marshal(params)
	if err != nil {
		return input
	}
	return out
}
