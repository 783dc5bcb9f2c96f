package channels

import (
	"context"
	"strings"
	"testing"

	"github.com/winmachacker-tech/atlas-command-sub005/internal/auth"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/lifecycle"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/memory"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/models"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/tools"
	"gorm.io/gorm"
)

func newInterceptExecutor(t *testing.T, db *gorm.DB) *tools.Executor {
	t.Helper()
	e, err := tools.NewExecutor(tools.ExecutorOpts{
		DB:       db,
		Identity: auth.Identity{UserID: "u1", TenantID: "t1", DriverID: "d1"},
	})
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return e
}

func TestIntercept_PickedUpUsesDriversActiveLoad(t *testing.T) {
	db := openChannelsTestDB(t)
	seedAssignedLoad(t, db, "t1", "l1", "LD-2025-4404", "d1")
	db.Model(&models.Load{}).Where("id = ?", "l1").Update("status", lifecycle.LoadDispatched)

	exec := newInterceptExecutor(t, db)
	mem := memory.ContextMemory{}
	i := NewIntercepts(nil)

	reply, handled := i.Try(context.Background(), exec, &mem, "d1", "picked up")
	if !handled {
		t.Fatal("expected handled")
	}
	if !strings.Contains(reply, "LD-2025-4404") {
		t.Errorf("reply = %q", reply)
	}

	var load models.Load
	db.Where("id = ?", "l1").First(&load)
	if load.Status != lifecycle.LoadInTransit {
		t.Errorf("status = %s, want in_transit", load.Status)
	}
	if mem.LastLoadReference != "LD-2025-4404" {
		t.Errorf("memory ref = %q", mem.LastLoadReference)
	}
}

func TestIntercept_DeliveredFallsBackToMemory(t *testing.T) {
	db := openChannelsTestDB(t)
	db.Create(&models.Load{
		ID: "l1", TenantID: "t1", ReferenceCode: "LD-2025-0007",
		Origin: "A", Destination: "B", Rate: 1,
		Status: lifecycle.LoadInTransit, PODStatus: lifecycle.PODNone,
	})

	exec := newInterceptExecutor(t, db)
	mem := memory.ContextMemory{LastLoadReference: "LD-2025-0007"}
	i := NewIntercepts(nil)

	// No driver id and no explicit reference; memory supplies the load.
	_, handled := i.Try(context.Background(), exec, &mem, "", "delivered!")
	if !handled {
		t.Fatal("expected handled via memory fallback")
	}

	var load models.Load
	db.Where("id = ?", "l1").First(&load)
	if load.Status != lifecycle.LoadDelivered {
		t.Errorf("status = %s, want delivered", load.Status)
	}
}

func TestIntercept_FailedToolFallsThrough(t *testing.T) {
	db := openChannelsTestDB(t)
	db.Create(&models.Load{
		ID: "l1", TenantID: "t1", ReferenceCode: "LD-2025-0007",
		Origin: "A", Destination: "B", Rate: 1,
		Status: lifecycle.LoadAvailable, PODStatus: lifecycle.PODNone,
	})

	exec := newInterceptExecutor(t, db)
	mem := memory.ContextMemory{LastLoadReference: "LD-2025-0007"}
	i := NewIntercepts(nil)

	// An available load can't be delivered; the message goes to the model.
	if _, handled := i.Try(context.Background(), exec, &mem, "", "delivered"); handled {
		t.Error("invalid transition should fall through to the loop")
	}
}

func TestIntercept_AtPickupIsInformational(t *testing.T) {
	db := openChannelsTestDB(t)
	exec := newInterceptExecutor(t, db)
	mem := memory.ContextMemory{}
	i := NewIntercepts(nil)

	reply, handled := i.Try(context.Background(), exec, &mem, "d1", "at pickup")
	if !handled || reply == "" {
		t.Fatalf("reply = %q handled = %v", reply, handled)
	}
}

func TestIntercept_FreeTextNotMatched(t *testing.T) {
	db := openChannelsTestDB(t)
	exec := newInterceptExecutor(t, db)
	mem := memory.ContextMemory{LastLoadReference: "LD-2025-0007"}
	i := NewIntercepts(nil)

	for _, text := range []string{
		"what loads are available?",
		"I delivered the paperwork to the office",
		"can you assign J. Smith to 4404",
	} {
		if _, handled := i.Try(context.Background(), exec, &mem, "", text); handled {
			t.Errorf("%q should not be intercepted", text)
		}
	}
}
