package digest

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/winmachacker-tech/atlas-command-sub005/internal/channels"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/lifecycle"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openDigestTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = db.AutoMigrate(&models.Tenant{}, &models.Load{}, &models.Driver{}, &models.Assignment{})
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

type captureAdapter struct {
	mu   sync.Mutex
	sent []channels.Outbound
	err  error
}

func (c *captureAdapter) Channel() string { return channels.ChannelSlack }

func (c *captureAdapter) Send(ctx context.Context, msg channels.Outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func seedLoad(t *testing.T, db *gorm.DB, id, tenantID, ref, status string, mutate func(*models.Load)) {
	t.Helper()
	l := models.Load{
		ID: id, TenantID: tenantID, ReferenceCode: ref,
		Origin: "Dallas, TX", Destination: "Atlanta, GA", Rate: 2000,
		Status: status, PODStatus: lifecycle.PODNone,
	}
	if mutate != nil {
		mutate(&l)
	}
	if err := db.Create(&l).Error; err != nil {
		t.Fatalf("seed load %s: %v", id, err)
	}
}

func TestBuildReport_CountsByStatus(t *testing.T) {
	db := openDigestTestDB(t)
	now := time.Date(2025, 6, 10, 7, 0, 0, 0, time.UTC)
	tenant := models.Tenant{ID: "t1", Name: "Acme Logistics"}
	if err := db.Create(&tenant).Error; err != nil {
		t.Fatalf("seed tenant: %v", err)
	}

	seedLoad(t, db, "l1", "t1", "LD-1", lifecycle.LoadAvailable, nil)
	seedLoad(t, db, "l2", "t1", "LD-2", lifecycle.LoadDispatched, nil)
	seedLoad(t, db, "l3", "t1", "LD-3", lifecycle.LoadInTransit, nil)
	seedLoad(t, db, "l4", "t1", "LD-4", lifecycle.LoadProblem, nil)
	recent := now.Add(-2 * time.Hour)
	seedLoad(t, db, "l5", "t1", "LD-5", lifecycle.LoadDelivered, func(l *models.Load) {
		l.PODStatus = lifecycle.PODPending
		l.DeliveredAt = &recent
	})
	old := now.Add(-48 * time.Hour)
	seedLoad(t, db, "l6", "t1", "LD-6", lifecycle.LoadDelivered, func(l *models.Load) {
		l.PODStatus = lifecycle.PODReceived
		l.DeliveredAt = &old
	})
	// Another tenant's board must not bleed in.
	if err := db.Create(&models.Tenant{ID: "t2", Name: "Other"}).Error; err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	seedLoad(t, db, "l7", "t2", "LD-7", lifecycle.LoadAvailable, nil)

	report, err := BuildReport(db, tenant, now)
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}
	if report.Available != 1 || report.Dispatched != 1 || report.InTransit != 1 || report.Problem != 1 {
		t.Fatalf("counts = %d/%d/%d/%d, want 1/1/1/1",
			report.Available, report.Dispatched, report.InTransit, report.Problem)
	}
	if report.DeliveredLast24h != 1 {
		t.Errorf("DeliveredLast24h = %d, want 1", report.DeliveredLast24h)
	}
	if report.PendingPODs != 1 {
		t.Errorf("PendingPODs = %d, want 1", report.PendingPODs)
	}
}

func TestFormat(t *testing.T) {
	report := &Report{
		TenantName: "Acme Logistics",
		PeriodEnd:  time.Date(2025, 6, 10, 7, 0, 0, 0, time.UTC),
		Available:  3, Dispatched: 2, InTransit: 1,
		Problem: 1, PendingPODs: 2,
		IntegrityIssues: []string{"load LD-9 has a denormalized driver but no open assignment row"},
	}
	text := Format(report)
	for _, want := range []string{
		"Acme Logistics", "Tue Jun 10",
		"3 available, 2 dispatched, 1 in transit",
		"Awaiting POD: 2",
		"Problem loads needing attention: 1",
		"Board integrity findings: 1",
		"LD-9",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("digest missing %q:\n%s", want, text)
		}
	}
}

func TestRunOnce_PostsPerTenantAndSkipsEmpty(t *testing.T) {
	db := openDigestTestDB(t)
	for _, tn := range []models.Tenant{
		{ID: "t1", Name: "Acme"}, {ID: "t2", Name: "Globex"}, {ID: "t3", Name: "Idle Co"},
	} {
		if err := db.Create(&tn).Error; err != nil {
			t.Fatalf("seed tenant: %v", err)
		}
	}
	seedLoad(t, db, "l1", "t1", "LD-1", lifecycle.LoadAvailable, nil)
	seedLoad(t, db, "l2", "t2", "LD-2", lifecycle.LoadInTransit, nil)

	adapter := &captureAdapter{}
	sched, err := NewScheduler(SchedulerOpts{
		DB: db, Adapter: adapter, ReplyTo: "C123", Cron: "0 7 * * *",
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if len(adapter.sent) != 2 {
		t.Fatalf("sent %d digests, want 2 (empty tenant skipped)", len(adapter.sent))
	}
	for _, msg := range adapter.sent {
		if msg.ReplyTo != "C123" {
			t.Errorf("posted to %q, want C123", msg.ReplyTo)
		}
	}
	bodies := adapter.sent[0].Text + "\n" + adapter.sent[1].Text
	if !strings.Contains(bodies, "Acme") || !strings.Contains(bodies, "Globex") {
		t.Fatalf("digest bodies missing a tenant:\n%s", bodies)
	}
	if strings.Contains(bodies, "Idle Co") {
		t.Fatal("empty tenant was posted")
	}
}

func TestNewScheduler_RejectsBadCron(t *testing.T) {
	db := openDigestTestDB(t)
	_, err := NewScheduler(SchedulerOpts{
		DB: db, Adapter: &captureAdapter{}, ReplyTo: "C123", Cron: "not a schedule",
	})
	if err == nil {
		t.Fatal("expected error for a bad cron expression")
	}
}

func TestNextFireDuration(t *testing.T) {
	db := openDigestTestDB(t)
	now := time.Date(2025, 6, 10, 6, 0, 0, 0, time.UTC)
	sched, err := NewScheduler(SchedulerOpts{
		DB: db, Adapter: &captureAdapter{}, ReplyTo: "C1", Cron: "0 7 * * *",
		Now: func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	if d := sched.nextFireDuration(); d != time.Hour {
		t.Fatalf("nextFireDuration = %s, want 1h", d)
	}
}
