// Package civic fetches newly reported issues from a 311-style civic
// issue tracker. The API is polled, never streamed: each fetch asks for
// records created after a checkpoint timestamp.
package civic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"printdesk/internal/model"
	logx "printdesk/pkg/logx"
)

// openStatuses is the fixed set of states considered "new work". Closed
// and duplicate reports are never printed.
const openStatuses = "open,acknowledged"

// maxPageLimit caps the page size regardless of configuration; the API
// rejects larger values and a burst bigger than this should not land on
// a receipt printer in one tick anyway.
const maxPageLimit = 50

type Config struct {
	BaseURL string
	// PageLimit is the per-fetch record cap (clamped to maxPageLimit).
	PageLimit int
	// Timeout bounds one fetch round trip.
	Timeout time.Duration
	// RatePerSec caps outbound requests across all listeners.
	RatePerSec int
}

// Client talks to the external issue source.
type Client struct {
	base    string
	limit   int
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

func NewClient(cfg Config, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	limit := cfg.PageLimit
	if limit <= 0 || limit > maxPageLimit {
		limit = maxPageLimit
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 2
	}
	return &Client{
		base:    cfg.BaseURL,
		limit:   limit,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
	}
}

// Query selects one fetch window.
type Query struct {
	// RequestTypes is the opaque comma-separated category filter.
	RequestTypes string
	// After is the exclusive lower bound on creation time (UTC).
	After time.Time
}

// FetchSince returns issues created strictly after q.After, sorted
// ascending by creation time so a burst of missed reports prints in
// chronological order.
func (c *Client) FetchSince(ctx context.Context, q Query) ([]model.Issue, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(c.base + "/requests.json")
	if err != nil {
		return nil, fmt.Errorf("civic: bad base url: %w", err)
	}
	params := url.Values{}
	params.Set("status", openStatuses)
	params.Set("request_types", q.RequestTypes)
	params.Set("after", q.After.UTC().Format(model.TimeLayoutUTC))
	params.Set("limit", strconv.Itoa(c.limit))
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("civic: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("civic: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Read a little of the body for the log line, then discard.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("civic: unexpected status %s: %s", resp.Status, snippet)
	}

	var issues []model.Issue
	if err := json.NewDecoder(resp.Body).Decode(&issues); err != nil {
		return nil, fmt.Errorf("civic: decode response: %w", err)
	}

	// The server owns the exclusive bound, but a record at or before the
	// checkpoint would reprint forever, so drop those defensively.
	n := 0
	for _, is := range issues {
		if !is.CreatedAt.After(q.After) {
			c.log.Debug("dropping issue at or before checkpoint",
				logx.String("id", is.ID), logx.Time("created_at", is.CreatedAt))
			continue
		}
		issues[n] = is
		n++
	}
	issues = issues[:n]

	sort.Slice(issues, func(i, j int) bool {
		return issues[i].CreatedAt.Before(issues[j].CreatedAt)
	})
	return issues, nil
}
