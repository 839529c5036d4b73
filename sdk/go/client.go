package cleanflowsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal CleanFlow HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Profile represents an account profile.
type Profile struct {
	ID         string `json:"id"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	IsApproved bool   `json:"is_approved"`
	CreatedAt  string `json:"created_at"`
}

// Collector represents a field agent and its last known position.
type Collector struct {
	ID                 string   `json:"id"`
	AccountID          string   `json:"account_id"`
	VehicleNumber      string   `json:"vehicle_number"`
	VehicleType        string   `json:"vehicle_type,omitempty"`
	IsAvailable        bool     `json:"is_available"`
	CurrentLat         *float64 `json:"current_lat,omitempty"`
	CurrentLng         *float64 `json:"current_lng,omitempty"`
	LastLocationUpdate *string  `json:"last_location_update,omitempty"`
}

// WorkItem represents a booking or report.
type WorkItem struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	OwnerID     string  `json:"owner_id"`
	Address     string  `json:"address"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Details     string  `json:"details,omitempty"`
	CollectorID *string `json:"collector_id,omitempty"`
	Status      string  `json:"status"`
	RequestedAt string  `json:"requested_at"`
	AssignedAt  *string `json:"assigned_at,omitempty"`
	StartedAt   *string `json:"started_at,omitempty"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Signup registers a resident account.
func (c *Client) Signup(ctx context.Context, fullName, email, phone string) (Profile, error) {
	body := map[string]any{
		"full_name": fullName,
		"email":     email,
		"phone":     phone,
	}
	var resp Profile
	err := c.do(ctx, http.MethodPost, "v0/auth/signup", body, &resp)
	return resp, err
}

// CreateWorkItem creates a booking or report.
func (c *Client) CreateWorkItem(ctx context.Context, kind, address string, lat, lng float64, details string) (WorkItem, error) {
	body := map[string]any{
		"kind":    kind,
		"address": address,
		"lat":     lat,
		"lng":     lng,
		"details": details,
	}
	var resp WorkItem
	err := c.do(ctx, http.MethodPost, "v0/work-items", body, &resp)
	return resp, err
}

// ListWorkItems returns the work items visible to the caller.
func (c *Client) ListWorkItems(ctx context.Context, kind, status string) ([]WorkItem, error) {
	endpoint := "v0/work-items"
	q := url.Values{}
	if kind != "" {
		q.Set("kind", kind)
	}
	if status != "" {
		q.Set("status", status)
	}
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []WorkItem
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetWorkItem fetches one work item.
func (c *Client) GetWorkItem(ctx context.Context, id string) (WorkItem, error) {
	var resp WorkItem
	err := c.do(ctx, http.MethodGet, "v0/work-items/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Assign binds a pending work item to a collector.
func (c *Client) Assign(ctx context.Context, itemID, collectorID string) (WorkItem, error) {
	body := map[string]any{"collector_id": collectorID}
	var resp WorkItem
	err := c.do(ctx, http.MethodPost, "v0/work-items/"+url.PathEscape(itemID)+"/assign", body, &resp)
	return resp, err
}

// SetStatus advances a work item's lifecycle.
func (c *Client) SetStatus(ctx context.Context, itemID, status string) (WorkItem, error) {
	body := map[string]any{"status": status}
	var resp WorkItem
	err := c.do(ctx, http.MethodPost, "v0/work-items/"+url.PathEscape(itemID)+"/status", body, &resp)
	return resp, err
}

// ListCollectors returns collector records.
func (c *Client) ListCollectors(ctx context.Context) ([]Collector, error) {
	var resp []Collector
	err := c.do(ctx, http.MethodGet, "v0/collectors", nil, &resp)
	return resp, err
}

// ReportPosition stores a position sample for the calling collector.
func (c *Client) ReportPosition(ctx context.Context, lat, lng float64) (Collector, error) {
	body := map[string]any{"lat": lat, "lng": lng}
	var resp Collector
	err := c.do(ctx, http.MethodPost, "v0/collectors/position", body, &resp)
	return resp, err
}

// Events returns events after the cursor.
func (c *Client) Events(ctx context.Context, cursor int64, limit int) ([]Event, error) {
	endpoint := fmt.Sprintf("v0/events?cursor=%d", cursor)
	if limit > 0 {
		endpoint = fmt.Sprintf("%s&limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
