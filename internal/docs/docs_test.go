package docs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/winmachacker-tech/atlas-command-sub005/internal/auth"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/models"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/tools"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openDocsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.PendingDocument{}, &models.Load{}, &models.Driver{}, &models.Assignment{}, &models.Notification{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func newDocsService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	s, err := NewService(ServiceOpts{DB: db})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return s
}

func newDocsExecutor(t *testing.T, db *gorm.DB) *tools.Executor {
	t.Helper()
	e, err := tools.NewExecutor(tools.ExecutorOpts{
		DB:       db,
		Identity: auth.Identity{UserID: "u1", TenantID: "t1"},
	})
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return e
}

var testDoc = Document{
	Origin:      "Sacramento, CA",
	Destination: "Denver, CO",
	Rate:        2200,
	PickupDate:  "2025-01-10",
}

func TestProposeThenConfirm(t *testing.T) {
	db := openDocsTestDB(t)
	s := newDocsService(t, db)
	exec := newDocsExecutor(t, db)

	row, summary, err := s.Propose("t1", "telegram:8812", testDoc)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if !strings.Contains(summary, "Sacramento, CA") || !strings.Contains(summary, "Reply yes") {
		t.Errorf("summary = %q", summary)
	}

	res, err := s.Confirm(context.Background(), exec, row.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if res.IsError {
		t.Fatalf("confirm tool result: %s", res.Content)
	}

	var count int64
	db.Model(&models.Load{}).Where("tenant_id = ? AND origin = ?", "t1", "Sacramento, CA").Count(&count)
	if count != 1 {
		t.Errorf("loads created = %d, want 1", count)
	}

	var fresh models.PendingDocument
	db.Where("id = ?", row.ID).First(&fresh)
	if fresh.Status != StatusConfirmed || fresh.ResolvedAt == nil {
		t.Errorf("doc status = %s, want confirmed with resolved_at", fresh.Status)
	}

	// A second confirm finds nothing pending.
	if _, err := s.Confirm(context.Background(), exec, row.ID); err != ErrNoPending {
		t.Errorf("second confirm err = %v, want ErrNoPending", err)
	}
}

func TestReject(t *testing.T) {
	db := openDocsTestDB(t)
	s := newDocsService(t, db)

	row, _, err := s.Propose("t1", "telegram:8812", testDoc)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if err := s.Reject(row.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	var count int64
	db.Model(&models.Load{}).Count(&count)
	if count != 0 {
		t.Errorf("loads = %d, want 0 after reject", count)
	}
}

func TestProposeSupersedesEarlierPending(t *testing.T) {
	db := openDocsTestDB(t)
	s := newDocsService(t, db)

	first, _, _ := s.Propose("t1", "telegram:8812", testDoc)
	second, _, err := s.Propose("t1", "telegram:8812", testDoc)
	if err != nil {
		t.Fatalf("second Propose: %v", err)
	}

	var old models.PendingDocument
	db.Where("id = ?", first.ID).First(&old)
	if old.Status != StatusExpired {
		t.Errorf("first doc status = %s, want expired", old.Status)
	}
	var fresh models.PendingDocument
	db.Where("id = ?", second.ID).First(&fresh)
	if fresh.Status != StatusPending {
		t.Errorf("second doc status = %s, want pending", fresh.Status)
	}
}

func TestPendingExpiresAfterTTL(t *testing.T) {
	db := openDocsTestDB(t)
	current := time.Now()
	s, err := NewService(ServiceOpts{DB: db, Now: func() time.Time { return current }})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	row, _, err := s.Propose("t1", "telegram:8812", testDoc)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	current = current.Add(25 * time.Hour)
	if err := s.Reject(row.ID); err != ErrNoPending {
		t.Errorf("stale reject err = %v, want ErrNoPending", err)
	}
}

func TestProposeValidation(t *testing.T) {
	db := openDocsTestDB(t)
	s := newDocsService(t, db)

	if _, _, err := s.Propose("t1", "telegram:8812", Document{Origin: "A", Destination: "B"}); err == nil {
		t.Error("expected error for zero rate")
	}
	if _, _, err := s.Propose("t1", "telegram:8812", Document{Rate: 100}); err == nil {
		t.Error("expected error for missing cities")
	}
}
