// Package digest builds and posts the scheduled daily board summary.
// It is read-only over the same board query the board tool uses.
package digest

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/auth"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/channels"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/lifecycle"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/models"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/tools"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Report holds one tenant's board metrics for a digest period.
type Report struct {
	TenantName       string
	PeriodEnd        time.Time
	Available        int
	Dispatched       int
	InTransit        int
	Problem          int
	DeliveredLast24h int
	PendingPODs      int
	IntegrityIssues  []string
}

// empty reports whether there is nothing worth posting.
func (r *Report) empty() bool {
	return r.Available == 0 && r.Dispatched == 0 && r.InTransit == 0 &&
		r.Problem == 0 && r.DeliveredLast24h == 0 && r.PendingPODs == 0 &&
		len(r.IntegrityIssues) == 0
}

// BuildReport assembles the digest metrics for one tenant.
func BuildReport(db *gorm.DB, tenant models.Tenant, now time.Time) (*Report, error) {
	exec, err := tools.NewExecutor(tools.ExecutorOpts{
		DB:       db,
		Identity: auth.Identity{TenantID: tenant.ID},
	})
	if err != nil {
		return nil, err
	}
	snap, err := tools.Snapshot(exec, "", "", false)
	if err != nil {
		return nil, fmt.Errorf("digest: %s: %w", tenant.ID, err)
	}

	report := &Report{
		TenantName:      tenant.Name,
		PeriodEnd:       now,
		IntegrityIssues: snap.IntegrityIssues,
	}
	for _, row := range snap.Rows {
		switch row.Status {
		case lifecycle.LoadAvailable:
			report.Available++
		case lifecycle.LoadDispatched:
			report.Dispatched++
		case lifecycle.LoadInTransit:
			report.InTransit++
		case lifecycle.LoadProblem:
			report.Problem++
		}
		if row.Status == lifecycle.LoadDelivered && row.PODStatus == lifecycle.PODPending {
			report.PendingPODs++
		}
	}

	var delivered int64
	err = db.Model(&models.Load{}).
		Where("tenant_id = ? AND status = ? AND delivered_at >= ?",
			tenant.ID, lifecycle.LoadDelivered, now.Add(-24*time.Hour)).
		Count(&delivered).Error
	if err != nil {
		return nil, fmt.Errorf("digest: delivered count: %w", err)
	}
	report.DeliveredLast24h = int(delivered)
	return report, nil
}

// Format renders a report as the message body posted to the channel.
func Format(report *Report) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("Daily board digest for %s (%s)",
		report.TenantName, report.PeriodEnd.Format("Mon Jan 2")))
	lines = append(lines, fmt.Sprintf("Loads: %d available, %d dispatched, %d in transit",
		report.Available, report.Dispatched, report.InTransit))
	if report.DeliveredLast24h > 0 {
		lines = append(lines, fmt.Sprintf("Delivered in the last 24h: %d", report.DeliveredLast24h))
	}
	if report.PendingPODs > 0 {
		lines = append(lines, fmt.Sprintf("Awaiting POD: %d", report.PendingPODs))
	}
	if report.Problem > 0 {
		lines = append(lines, fmt.Sprintf("Problem loads needing attention: %d", report.Problem))
	}
	if len(report.IntegrityIssues) > 0 {
		lines = append(lines, fmt.Sprintf("Board integrity findings: %d", len(report.IntegrityIssues)))
		for _, issue := range report.IntegrityIssues {
			lines = append(lines, "  "+issue)
		}
	}
	return strings.Join(lines, "\n")
}

// Scheduler fires the digest on a cron schedule and posts one message per
// tenant through the adapter.
type Scheduler struct {
	db      *gorm.DB
	adapter channels.Adapter
	replyTo string
	expr    string
	now     func() time.Time
}

// SchedulerOpts holds parameters for creating a Scheduler.
type SchedulerOpts struct {
	DB      *gorm.DB
	Adapter channels.Adapter
	ReplyTo string // adapter destination the digest posts to
	Cron    string // 5-field cron expression
	Now     func() time.Time
}

// NewScheduler creates a Scheduler.
func NewScheduler(opts SchedulerOpts) (*Scheduler, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("digest: db is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("digest: adapter is required")
	}
	if opts.ReplyTo == "" {
		return nil, fmt.Errorf("digest: reply destination is required")
	}
	if _, err := cronParser.Parse(opts.Cron); err != nil {
		return nil, fmt.Errorf("digest: bad cron expression %q: %w", opts.Cron, err)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		db:      opts.DB,
		adapter: opts.Adapter,
		replyTo: opts.ReplyTo,
		expr:    opts.Cron,
		now:     now,
	}, nil
}

// nextFireDuration returns the duration until the schedule next fires.
func (s *Scheduler) nextFireDuration() time.Duration {
	sched, _ := cronParser.Parse(s.expr)
	d := sched.Next(s.now()).Sub(s.now())
	if d < 0 {
		return 0
	}
	return d
}

// Run blocks, posting digests on schedule until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		timer := time.NewTimer(s.nextFireDuration())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := s.RunOnce(ctx); err != nil {
				log.Printf("digest: %v", err)
			}
		}
	}
}

// RunOnce builds and posts the digest for every tenant. Tenants with an
// empty board are skipped. Posting continues past per-tenant failures.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var tenants []models.Tenant
	if err := s.db.Find(&tenants).Error; err != nil {
		return fmt.Errorf("digest: list tenants: %w", err)
	}

	var firstErr error
	for _, tenant := range tenants {
		report, err := BuildReport(s.db, tenant, s.now())
		if err != nil {
			log.Printf("digest: tenant %s: %v", tenant.ID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if report.empty() {
			continue
		}
		err = s.adapter.Send(ctx, channels.Outbound{ReplyTo: s.replyTo, Text: Format(report)})
		if err != nil {
			log.Printf("digest: send %s: %v", tenant.ID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
