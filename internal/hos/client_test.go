package hos

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestRank_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.Write([]byte(`{"drivers":[{"driver_id":"d1","name":"Marcus Johnson","drive_minutes_left":420,"score":0.91}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	drivers, err := c.Rank(context.Background(), RankRequest{
		TenantID: "t1", PickupTime: "2025-01-10T08:00:00Z", MinDriveMinutes: 300,
	})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(drivers) != 1 || drivers[0].DriverID != "d1" {
		t.Errorf("drivers = %+v, want one entry d1", drivers)
	}
	if drivers[0].DriveMinutesLeft != 420 {
		t.Errorf("DriveMinutesLeft = %d, want 420", drivers[0].DriveMinutesLeft)
	}
}

func TestRank_RetriesOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			conn, _, _ := w.(http.Hijacker).Hijack()
			conn.Close() // abort first attempt mid-flight
			return
		}
		w.Write([]byte(`{"drivers":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.Rank(context.Background(), RankRequest{TenantID: "t1"})
	if err != nil {
		t.Fatalf("Rank after retry: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestRank_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.Rank(context.Background(), RankRequest{TenantID: "t1"})
	if err == nil {
		t.Fatal("expected error for 503")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error = %q, want to mention 503", err.Error())
	}
}

func TestRank_NotConfigured(t *testing.T) {
	c := NewClient("", time.Second)
	_, err := c.Rank(context.Background(), RankRequest{TenantID: "t1"})
	if err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Errorf("error = %v, want not-configured failure", err)
	}
}
