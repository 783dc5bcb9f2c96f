package notify

import (
	"testing"

	"github.com/winmachacker-tech/atlas-command-sub005/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openNotifyTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Notification{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func TestSendAndPending(t *testing.T) {
	db := openNotifyTestDB(t)

	n, err := Send(db, "t1", KindLoadDelivered, "Load LD-1 delivered", "Dallas to Atlanta delivered.", SendOpts{})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n.ID == 0 {
		t.Fatal("expected an id after create")
	}
	if _, err := Send(db, "t2", KindLoadProblem, "Problem on LD-2", "flat tire", SendOpts{Recipient: "ops@acme.test"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	rows, err := Pending(db, "t1")
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("pending for t1 = %d, want 1", len(rows))
	}
	if rows[0].Kind != KindLoadDelivered {
		t.Errorf("kind = %q", rows[0].Kind)
	}
}

func TestSend_Validation(t *testing.T) {
	db := openNotifyTestDB(t)
	cases := []struct {
		name                  string
		tenant, kind, subject string
	}{
		{"missing tenant", "", KindLoadProblem, "s"},
		{"missing kind", "t1", "", "s"},
		{"missing subject", "t1", KindLoadProblem, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Send(db, tc.tenant, tc.kind, tc.subject, "body", SendOpts{}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestMarkSent(t *testing.T) {
	db := openNotifyTestDB(t)
	n, err := Send(db, "t1", KindPODReceived, "POD received for LD-1", "", SendOpts{})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if err := MarkSent(db, n.ID); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	rows, err := Pending(db, "t1")
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("pending after send = %d, want 0", len(rows))
	}

	if err := MarkSent(db, 9999); err == nil {
		t.Fatal("expected error for unknown id")
	}
}
