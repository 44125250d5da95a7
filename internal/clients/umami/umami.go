package umami

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kestrelworks/adaptlearn-backend/internal/logger"
	"github.com/kestrelworks/adaptlearn-backend/internal/types"
	"github.com/kestrelworks/adaptlearn-backend/internal/utils"
)

const requestTimeout = 10 * time.Second

// Event is one row returned by the Umami website-events API. Only the
// fields the analytics engine consumes are decoded.
type Event struct {
	ID        string    `json:"id"`
	URL       string    `json:"urlPath"`
	EventName string    `json:"eventName"`
	CreatedAt time.Time `json:"createdAt"`
}

// Window is a half-open [Start, End) fetch range. Disjoint windows may be
// fetched concurrently; the reads are commutative.
type Window struct {
	Start time.Time
	End   time.Time
}

type Client interface {
	Configured() bool
	FetchWindow(ctx context.Context, start, end time.Time) ([]Event, error)
	FetchWindows(ctx context.Context, windows []Window) ([]Event, error)
	CheckHealth(ctx context.Context) types.HealthReport
}

type client struct {
	log       *logger.Logger
	http      *http.Client
	baseURL   string
	apiKey    string
	websiteID string
}

// NewClient reads UMAMI_API_URL, UMAMI_API_KEY and UMAMI_WEBSITE_ID. Missing
// configuration is not an error: the client stays usable and every fetch
// returns an empty list. Third-party analytics is optional enrichment,
// never a hard dependency.
func NewClient(log *logger.Logger) Client {
	clientLog := log.With("client", "UmamiClient")
	baseURL := strings.TrimRight(utils.GetEnv("UMAMI_API_URL", "", log), "/")
	apiKey := utils.GetEnv("UMAMI_API_KEY", "", log)
	websiteID := utils.GetEnv("UMAMI_WEBSITE_ID", "", log)
	if baseURL == "" || apiKey == "" || websiteID == "" {
		clientLog.Warn("umami not configured, analytics enrichment disabled")
	}
	return &client{
		log:       clientLog,
		http:      &http.Client{Timeout: requestTimeout},
		baseURL:   baseURL,
		apiKey:    apiKey,
		websiteID: websiteID,
	}
}

func (c *client) Configured() bool {
	return c.baseURL != "" && c.apiKey != "" && c.websiteID != ""
}

func (c *client) FetchWindow(ctx context.Context, start, end time.Time) ([]Event, error) {
	if !c.Configured() {
		return []Event{}, nil
	}

	url := fmt.Sprintf("%s/api/websites/%s/events?startAt=%d&endAt=%d",
		c.baseURL, c.websiteID, start.UnixMilli(), end.UnixMilli())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return []Event{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("umami fetch failed", "error", err)
		return []Event{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn("umami fetch non-2xx", "status", resp.StatusCode, "body", string(body))
		return []Event{}, fmt.Errorf("umami responded %d", resp.StatusCode)
	}

	var payload struct {
		Data []Event `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.log.Warn("umami response decode failed", "error", err)
		return []Event{}, err
	}
	return payload.Data, nil
}

// FetchWindows fetches disjoint windows concurrently and merges the
// results. Order between windows carries no meaning.
func (c *client) FetchWindows(ctx context.Context, windows []Window) ([]Event, error) {
	if !c.Configured() || len(windows) == 0 {
		return []Event{}, nil
	}

	var (
		mu     sync.Mutex
		merged []Event
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range windows {
		g.Go(func() error {
			events, err := c.FetchWindow(gctx, w.Start, w.End)
			if err != nil {
				return err
			}
			mu.Lock()
			merged = append(merged, events...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return []Event{}, err
	}
	return merged, nil
}

// CheckHealth probes the events endpoint over the last hour. Missing
// configuration degrades to "warning"; a timeout or non-2xx is "critical"
// with the failure captured in details.
func (c *client) CheckHealth(ctx context.Context) types.HealthReport {
	report := types.HealthReport{
		Service:   "umami_integration",
		Timestamp: time.Now().UTC(),
		Details:   map[string]interface{}{},
	}
	if !c.Configured() {
		report.Status = types.HealthWarning
		report.Message = "umami not configured"
		return report
	}

	start := time.Now()
	_, err := c.FetchWindow(ctx, start.Add(-time.Hour), start)
	report.ResponseTimeMS = float64(time.Since(start).Milliseconds())
	if err != nil {
		report.Status = types.HealthCritical
		report.Message = "umami unreachable"
		report.Details["error"] = err.Error()
		return report
	}
	report.Status = types.HealthHealthy
	report.Message = "umami reachable"
	return report
}
