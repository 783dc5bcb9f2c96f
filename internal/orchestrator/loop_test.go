package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/auth"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/lifecycle"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/llm"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/memory"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/models"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/tools"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openLoopTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = db.AutoMigrate(&models.Load{}, &models.Driver{}, &models.Assignment{},
		&models.ConversationContext{}, &models.MessageLog{}, &models.Notification{})
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// scriptedCompleter replays a fixed sequence of completions and records the
// requests it saw.
type scriptedCompleter struct {
	script  []llm.Completion
	err     error
	calls   int
	systems []string
	lastMsg []anthropic.MessageParam
}

func (s *scriptedCompleter) Complete(ctx context.Context, system string, messages []anthropic.MessageParam, defs []anthropic.ToolUnionParam) (llm.Completion, error) {
	s.calls++
	s.systems = append(s.systems, system)
	s.lastMsg = messages
	if s.err != nil {
		return llm.Completion{}, s.err
	}
	i := s.calls - 1
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	return s.script[i], nil
}

func newTestLoop(t *testing.T, db *gorm.DB, c llm.Completer) *Loop {
	t.Helper()
	l, err := NewLoop(LoopOpts{DB: db, Completer: c})
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	return l
}

func testInbound(text string) Inbound {
	return Inbound{
		Identity:        auth.Identity{UserID: "u1", TenantID: "t1"},
		ChannelIdentity: "web:s1",
		UserText:        text,
	}
}

func TestHandle_PlainAnswer(t *testing.T) {
	db := openLoopTestDB(t)
	c := &scriptedCompleter{script: []llm.Completion{{Text: "The board is clear."}}}
	l := newTestLoop(t, db, c)

	reply, err := l.Handle(context.Background(), testInbound("anything on the board?"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if reply != "The board is clear." {
		t.Errorf("reply = %q", reply)
	}
	if c.calls != 1 {
		t.Errorf("completion calls = %d, want 1", c.calls)
	}
}

func TestHandle_IterationCap(t *testing.T) {
	db := openLoopTestDB(t)
	// A model that never stops asking for tools must terminate at exactly
	// the configured cap with the fallback answer.
	c := &scriptedCompleter{script: []llm.Completion{{
		ToolCalls: []llm.ToolCall{{ID: "tc1", Name: tools.ToolGetBoardStatus, Input: json.RawMessage(`{}`)}},
	}}}
	l, err := NewLoop(LoopOpts{DB: db, Completer: c, MaxRounds: 3})
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}

	reply, err := l.Handle(context.Background(), testInbound("status?"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if reply != CappedReply {
		t.Errorf("reply = %q, want capped fallback", reply)
	}
	if c.calls != 3 {
		t.Errorf("completion calls = %d, want exactly 3", c.calls)
	}
}

func TestHandle_ToolEffectAndMemoryPersisted(t *testing.T) {
	db := openLoopTestDB(t)
	c := &scriptedCompleter{script: []llm.Completion{
		{ToolCalls: []llm.ToolCall{{
			ID:    "tc1",
			Name:  tools.ToolCreateLoad,
			Input: json.RawMessage(`{"origin":"Sacramento, CA","destination":"Denver, CO","rate":2200}`),
		}}},
		{Text: "Created the load."},
	}}
	l := newTestLoop(t, db, c)

	reply, err := l.Handle(context.Background(), testInbound("new load Sacramento to Denver, $2200"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if reply != "Created the load." {
		t.Errorf("reply = %q", reply)
	}

	var count int64
	db.Model(&models.Load{}).Where("tenant_id = ?", "t1").Count(&count)
	if count != 1 {
		t.Fatalf("loads = %d, want 1", count)
	}

	store, _ := memory.NewStore(db)
	mem, err := store.Load("t1", "web:s1")
	if err != nil {
		t.Fatalf("load memory: %v", err)
	}
	if mem.LastLoadReference == "" {
		t.Error("memory not persisted with created load reference")
	}
}

func TestHandle_ContextCarryOver(t *testing.T) {
	db := openLoopTestDB(t)
	driverID := "d1"
	db.Create(&models.Driver{ID: driverID, TenantID: "t1", Name: "J. Smith", Status: lifecycle.DriverAssigned})
	db.Create(&models.Load{
		ID: "l1", TenantID: "t1", ReferenceCode: "LD-2025-4404",
		Origin: "A", Destination: "B", Rate: 1,
		Status: lifecycle.LoadDispatched, PODStatus: lifecycle.PODNone,
		AssignedDriverID: &driverID, AssignedDriverName: "J. Smith",
	})
	db.Create(&models.Load{
		ID: "l2", TenantID: "t1", ReferenceCode: "LD-2025-0099",
		Origin: "C", Destination: "D", Rate: 1,
		Status: lifecycle.LoadAvailable, PODStatus: lifecycle.PODNone,
	})

	store, _ := memory.NewStore(db)
	if err := store.Save("t1", "web:s1", memory.ContextMemory{LastLoadReference: "LD-2025-4404", LastLoadID: "l1"}); err != nil {
		t.Fatalf("seed memory: %v", err)
	}

	// Model says "mark that load delivered" with no reference; memory
	// supplies LD-2025-4404.
	c := &scriptedCompleter{script: []llm.Completion{
		{ToolCalls: []llm.ToolCall{{ID: "tc1", Name: tools.ToolMarkDelivered, Input: json.RawMessage(`{}`)}}},
		{Text: "Marked delivered."},
	}}
	l := newTestLoop(t, db, c)

	if _, err := l.Handle(context.Background(), testInbound("mark that load delivered")); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	var l1, l2 models.Load
	db.Where("id = ?", "l1").First(&l1)
	db.Where("id = ?", "l2").First(&l2)
	if l1.Status != lifecycle.LoadDelivered {
		t.Errorf("LD-2025-4404 status = %s, want delivered", l1.Status)
	}
	if l2.Status != lifecycle.LoadAvailable {
		t.Errorf("LD-2025-0099 status = %s, must be untouched", l2.Status)
	}
}

func TestHandle_CompletionFailure(t *testing.T) {
	db := openLoopTestDB(t)
	c := &scriptedCompleter{err: errors.New("dial tcp: connection refused")}
	l := newTestLoop(t, db, c)

	reply, err := l.Handle(context.Background(), testInbound("hello"))
	if err == nil {
		t.Fatal("expected error for the caller's log")
	}
	if reply != ErrorReply {
		t.Errorf("reply = %q, want generic error reply", reply)
	}
	if strings.Contains(reply, "connection refused") {
		t.Error("internal error detail leaked to the user reply")
	}
}

func TestHandle_HistoryReplayed(t *testing.T) {
	db := openLoopTestDB(t)
	base := time.Now().Add(-time.Minute)
	db.Create(&models.MessageLog{TenantID: "t1", Channel: "web", ChannelIdentity: "web:s1",
		Direction: models.DirectionIn, Content: "where is load 4404?", CreatedAt: base})
	db.Create(&models.MessageLog{TenantID: "t1", Channel: "web", ChannelIdentity: "web:s1",
		Direction: models.DirectionOut, Content: "It is in transit to Denver.", CreatedAt: base.Add(time.Second)})
	// Another channel's history must not bleed in.
	db.Create(&models.MessageLog{TenantID: "t1", Channel: "telegram", ChannelIdentity: "telegram:99",
		Direction: models.DirectionIn, Content: "unrelated", CreatedAt: base})

	c := &scriptedCompleter{script: []llm.Completion{{Text: "ok"}}}
	l := newTestLoop(t, db, c)
	if _, err := l.Handle(context.Background(), testInbound("and the rate?")); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	// Two history turns plus the new user message.
	if len(c.lastMsg) != 3 {
		t.Fatalf("messages sent = %d, want 3", len(c.lastMsg))
	}
}

func TestInjectMemoryFallbacks(t *testing.T) {
	mem := memory.ContextMemory{LastLoadReference: "LD-2025-4404", LastDriverName: "J. Smith"}

	cases := []struct {
		name  string
		tool  string
		input string
		want  map[string]string
	}{
		{
			name:  "omitted load reference filled",
			tool:  tools.ToolMarkDelivered,
			input: `{}`,
			want:  map[string]string{"load_reference": "LD-2025-4404"},
		},
		{
			name:  "explicit reference wins",
			tool:  tools.ToolMarkDelivered,
			input: `{"load_reference":"LD-2025-0001"}`,
			want:  map[string]string{"load_reference": "LD-2025-0001"},
		},
		{
			name:  "assign fills both slots",
			tool:  tools.ToolAssignDriver,
			input: `{}`,
			want:  map[string]string{"load_reference": "LD-2025-4404", "driver": "J. Smith"},
		},
		{
			name:  "search untouched",
			tool:  tools.ToolSearchLoads,
			input: `{"status":"available"}`,
			want:  map[string]string{"status": "available"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := injectMemoryFallbacks(tc.tool, json.RawMessage(tc.input), mem)
			var got map[string]string
			if err := json.Unmarshal(out, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			for k, v := range tc.want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
			if len(got) != len(tc.want) {
				t.Errorf("params = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

	empty := BuildSystemPrompt(memory.ContextMemory{}, "acme", now)
	if !strings.Contains(empty, "Friday, January 10, 2025") {
		t.Error("prompt missing current date")
	}
	if !strings.Contains(empty, "acme") {
		t.Error("prompt missing tenant")
	}
	if strings.Contains(empty, "Conversation context") {
		t.Error("empty memory must not render a context section")
	}

	full := BuildSystemPrompt(memory.ContextMemory{
		LastLoadReference:       "LD-2025-4404",
		LastDriverName:          "Marcus Johnson",
		LastDriverHOSMinutes:    420,
		PendingProblemReference: "LD-2025-0007",
	}, "acme", now)
	for _, want := range []string{"LD-2025-4404", "Marcus Johnson", "420", "LD-2025-0007"} {
		if !strings.Contains(full, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	// Pure function: same inputs, same output.
	if full != BuildSystemPrompt(memory.ContextMemory{
		LastLoadReference:       "LD-2025-4404",
		LastDriverName:          "Marcus Johnson",
		LastDriverHOSMinutes:    420,
		PendingProblemReference: "LD-2025-0007",
	}, "acme", now) {
		t.Error("prompt not deterministic")
	}
}
