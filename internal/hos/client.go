// Package hos calls the external Hours-of-Service ranking service used to
// pick eligible drivers for a pickup window.
package hos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RankRequest asks the ranking service for drivers with enough remaining
// drive time to cover a pickup.
type RankRequest struct {
	TenantID        string `json:"tenant_id"`
	PickupTime      string `json:"pickup_time"` // RFC 3339
	MinDriveMinutes int    `json:"min_drive_minutes"`
	OriginCity      string `json:"origin_city,omitempty"`
}

// RankedDriver is one entry in the service's ranked response.
type RankedDriver struct {
	DriverID         string  `json:"driver_id"`
	Name             string  `json:"name"`
	DriveMinutesLeft int     `json:"drive_minutes_left"`
	ShiftMinutesLeft int     `json:"shift_minutes_left"`
	CycleMinutesLeft int     `json:"cycle_minutes_left"`
	Score            float64 `json:"score"`
}

// Client calls the ranking service over HTTP. Failures are returned as
// errors for the tools executor to surface as structured tool results,
// never as panics into the orchestration loop.
type Client struct {
	url  string
	http *http.Client
}

// NewClient creates a Client. An empty url disables the service; Rank then
// fails fast with a descriptive error.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

// Rank returns drivers ranked by HOS fitness for the pickup. The call is
// read-only, so one retry on transport failure is safe.
func (c *Client) Rank(ctx context.Context, req RankRequest) ([]RankedDriver, error) {
	if c.url == "" {
		return nil, fmt.Errorf("hos: ranking service not configured")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("hos: marshal request: %w", err)
	}

	drivers, err := c.rankOnce(ctx, body)
	if err != nil {
		// Read-only call; one retry covers transient transport failures.
		drivers, err = c.rankOnce(ctx, body)
	}
	if err != nil {
		return nil, err
	}
	return drivers, nil
}

func (c *Client) rankOnce(ctx context.Context, body []byte) ([]RankedDriver, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("hos: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("hos: call ranking service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("hos: ranking service returned %d: %s", resp.StatusCode, data)
	}

	var out struct {
		Drivers []RankedDriver `json:"drivers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("hos: decode response: %w", err)
	}
	return out.Drivers, nil
}
