// Package remote is the typed client for the remote tea store. The
// store speaks a PostgREST-style REST dialect: tables are resources
// under /rest/v1, filters are query parameters, and upserts use the
// merge-duplicates preference so replays are idempotent.
//
// Every call is implicitly scoped to the authenticated user: the
// access token travels as a bearer header and row-level security on
// the store hides other owners' rows. The client never sends an owner
// column.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/avogel/teamap/internal/domain"
)

type Client struct {
	baseURL string
	anonKey string
	token   string
	client  *http.Client

	// retryBase is the initial fibonacci backoff delay for transient
	// failures. Shortened in tests.
	retryBase time.Duration
}

// NewClient builds a client for the store at baseURL. anonKey is the
// public client key; token is the user's session access token.
func NewClient(baseURL, anonKey, token string) *Client {
	return &Client{
		baseURL:   baseURL,
		anonKey:   anonKey,
		token:     token,
		client:    &http.Client{Timeout: 15 * time.Second},
		retryBase: 250 * time.Millisecond,
	}
}

// teaRecord mirrors the remote teas table column for column.
type teaRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	ChineseName string   `json:"chinese_name"`
	Type        string   `json:"type"`
	Province    string   `json:"province"`
	Region      string   `json:"region"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Elevation   *float64 `json:"elevation"`
	Flavor      string   `json:"flavor"`
	Description string   `json:"description"`
	Notes       string   `json:"notes"`
	Starter     bool     `json:"starter"`
	Edited      bool     `json:"edited"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type deletionRecord struct {
	StarterID string `json:"starter_id"`
}

func toRecord(tea domain.Tea) teaRecord {
	return teaRecord{
		ID:          tea.ID,
		Name:        tea.Name,
		ChineseName: tea.ChineseName,
		Type:        string(tea.Type),
		Province:    tea.Province,
		Region:      tea.Region,
		Lat:         tea.Lat,
		Lng:         tea.Lng,
		Elevation:   tea.Elevation,
		Flavor:      tea.Flavor,
		Description: tea.Description,
		Notes:       tea.Notes,
		Starter:     tea.Starter,
		Edited:      tea.Edited,
		CreatedAt:   tea.CreatedAt,
		UpdatedAt:   tea.UpdatedAt,
	}
}

func (r teaRecord) toDomain() domain.Tea {
	return domain.Tea{
		ID:          r.ID,
		Name:        r.Name,
		ChineseName: r.ChineseName,
		Type:        domain.TeaType(r.Type),
		Province:    r.Province,
		Region:      r.Region,
		Lat:         r.Lat,
		Lng:         r.Lng,
		Elevation:   r.Elevation,
		Flavor:      r.Flavor,
		Description: r.Description,
		Notes:       r.Notes,
		Starter:     r.Starter,
		Edited:      r.Edited,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// ListTeas returns the caller's saved teas in storage order.
func (c *Client) ListTeas(ctx context.Context) ([]domain.Tea, error) {
	var records []teaRecord
	err := c.do(ctx, "list teas", http.MethodGet,
		"/rest/v1/teas?select=*&order=created_at.asc,id.asc", nil, nil, &records)
	if err != nil {
		return nil, err
	}

	teas := make([]domain.Tea, 0, len(records))
	for _, r := range records {
		teas = append(teas, r.toDomain())
	}
	return teas, nil
}

// ListDeletions returns the set of starter ids the caller has hidden.
func (c *Client) ListDeletions(ctx context.Context) (map[string]bool, error) {
	var records []deletionRecord
	err := c.do(ctx, "list deletions", http.MethodGet,
		"/rest/v1/deleted_starters?select=starter_id", nil, nil, &records)
	if err != nil {
		return nil, err
	}

	deleted := make(map[string]bool, len(records))
	for _, r := range records {
		deleted[r.StarterID] = true
	}
	return deleted, nil
}

// UpsertTea creates or replaces the caller's record for tea.ID.
// Idempotent: replaying the same write is a no-op.
func (c *Client) UpsertTea(ctx context.Context, tea domain.Tea) error {
	return c.do(ctx, "upsert tea", http.MethodPost, "/rest/v1/teas",
		[]teaRecord{toRecord(tea)},
		map[string]string{"Prefer": "resolution=merge-duplicates,return=minimal"}, nil)
}

// DeleteTea removes the caller's record with the given id. Deleting a
// missing record succeeds (idempotent).
func (c *Client) DeleteTea(ctx context.Context, id string) error {
	return c.do(ctx, "delete tea", http.MethodDelete,
		"/rest/v1/teas?id=eq."+url.QueryEscape(id), nil, nil, nil)
}

// MarkDeleted records that the caller has hidden the given starter.
// Idempotent via merge-duplicates.
func (c *Client) MarkDeleted(ctx context.Context, starterID string) error {
	return c.do(ctx, "mark deleted", http.MethodPost, "/rest/v1/deleted_starters",
		[]deletionRecord{{StarterID: starterID}},
		map[string]string{"Prefer": "resolution=merge-duplicates,return=minimal"}, nil)
}

// UnmarkDeleted removes the caller's deletion marker for a starter,
// restoring the built-in record to the effective list.
func (c *Client) UnmarkDeleted(ctx context.Context, starterID string) error {
	return c.do(ctx, "unmark deleted", http.MethodDelete,
		"/rest/v1/deleted_starters?starter_id=eq."+url.QueryEscape(starterID), nil, nil, nil)
}

// do performs one store call with bounded retry on transient failures.
// Every operation the client exposes is idempotent, so a retried call
// that already succeeded server-side cannot corrupt state.
func (c *Client) do(ctx context.Context, op, method, path string, body any, headers map[string]string, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
	}

	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(c.retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.doOnce(ctx, op, method, path, payload, headers, out)
		if IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) doOnce(ctx context.Context, op, method, path string, payload []byte, headers map[string]string, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &Error{Kind: Rejected, Op: op, Detail: err.Error()}
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{Kind: Transient, Op: op, Detail: err.Error()}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if kind, failed := classify(resp.StatusCode); failed {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &Error{Kind: kind, Status: resp.StatusCode, Op: op, Detail: string(detail)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &Error{Kind: Transient, Status: resp.StatusCode, Op: op,
				Detail: fmt.Sprintf("failed to decode response: %v", err)}
		}
	}
	return nil
}

// classify maps an HTTP status to an error kind. 2xx is success.
// 5xx, 408 and 429 can heal on their own; any other 4xx means the
// request itself (or its authorization) is wrong.
func classify(status int) (Kind, bool) {
	switch {
	case status >= 200 && status < 300:
		return 0, false
	case status >= 500, status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return Transient, true
	default:
		return Rejected, true
	}
}
