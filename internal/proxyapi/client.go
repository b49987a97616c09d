// Package proxyapi talks to the external stream proxy's session registry.
package proxyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stream-router/internal/monitor"
	"stream-router/internal/routing"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20
	tokenHeader    = "X-API-Token"
)

// Client implements monitor.SessionSource over the proxy's HTTP API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient returns a Client for baseURL. token may be empty. If httpClient
// is nil one with a 10s timeout is used.
func NewClient(baseURL, token string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("proxyapi: base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("proxyapi: base url %q must be absolute", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{base: u, token: token, http: httpClient}, nil
}

type streamMetadata struct {
	Type string     `json:"type"`
	ID   flexString `json:"id"`
}

type streamPayload struct {
	StreamID            string          `json:"stream_id"`
	Metadata            *streamMetadata `json:"metadata"`
	OriginalURL         string          `json:"original_url"`
	CurrentURL          string          `json:"current_url"`
	StreamType          string          `json:"stream_type"`
	IsActive            bool            `json:"is_active"`
	ClientCount         int             `json:"client_count"`
	TotalBytesServed    int64           `json:"total_bytes_served"`
	TotalSegmentsServed int64           `json:"total_segments_served"`
	ErrorCount          int             `json:"error_count"`
	CreatedAt           flexTime        `json:"created_at"`
	HasFailover         bool            `json:"has_failover"`
}

type clientPayload struct {
	StreamID    string   `json:"stream_id"`
	IPAddress   string   `json:"ip_address"`
	BytesServed int64    `json:"bytes_served"`
	CreatedAt   flexTime `json:"created_at"`
	LastAccess  flexTime `json:"last_access"`
}

// ActiveSessions implements monitor.SessionSource.
func (c *Client) ActiveSessions(ctx context.Context) ([]monitor.Session, error) {
	var body struct {
		Streams []streamPayload `json:"streams"`
	}
	if err := c.getJSON(ctx, "/streams", &body); err != nil {
		return nil, err
	}

	out := make([]monitor.Session, 0, len(body.Streams))
	for _, s := range body.Streams {
		out = append(out, monitor.Session{
			ID:                  s.StreamID,
			Content:             s.Metadata.contentRef(),
			SourceURL:           s.OriginalURL,
			CurrentURL:          s.CurrentURL,
			Format:              s.StreamType,
			Active:              s.IsActive,
			ClientCount:         s.ClientCount,
			TotalBytesServed:    s.TotalBytesServed,
			TotalSegmentsServed: s.TotalSegmentsServed,
			ErrorCount:          s.ErrorCount,
			CreatedAt:           time.Time(s.CreatedAt),
			HasFailover:         s.HasFailover,
		})
	}
	return out, nil
}

// ActiveClients implements monitor.SessionSource.
func (c *Client) ActiveClients(ctx context.Context) ([]monitor.ClientConnection, error) {
	var body struct {
		Clients []clientPayload `json:"clients"`
	}
	if err := c.getJSON(ctx, "/clients", &body); err != nil {
		return nil, err
	}

	out := make([]monitor.ClientConnection, 0, len(body.Clients))
	for _, cl := range body.Clients {
		out = append(out, monitor.ClientConnection{
			SessionID:    cl.StreamID,
			Address:      cl.IPAddress,
			BytesServed:  cl.BytesServed,
			CreatedAt:    time.Time(cl.CreatedAt),
			LastAccessAt: time.Time(cl.LastAccess),
		})
	}
	return out, nil
}

// StopSession implements monitor.SessionSource. A 404 means the session is
// already gone and is reported as (false, nil).
func (c *Client) StopSession(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, fmt.Errorf("%w: empty session id", routing.ErrCommandFailed)
	}
	req, err := c.newRequest(ctx, http.MethodDelete, "/streams/"+url.PathEscape(sessionID))
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: stop %s: %w", routing.ErrCommandFailed, sessionID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return true, nil
	default:
		return false, fmt.Errorf("%w: stop %s: %s", routing.ErrCommandFailed, sessionID, statusError(resp))
	}
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("proxyapi GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("proxyapi GET %s: %s", path, statusError(resp))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(dst); err != nil {
		return fmt.Errorf("proxyapi GET %s: decode: %w", path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string) (*http.Request, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("proxyapi build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set(tokenHeader, c.token)
	}
	return req, nil
}

// statusError renders a non-2xx response, preferring the proxy's own
// "detail" or "error" message when it sends one.
func statusError(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Detail != "" {
			return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, body.Detail)
		}
		if body.Error != "" {
			return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, body.Error)
		}
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}

func (m *streamMetadata) contentRef() *routing.ContentRef {
	if m == nil || m.Type == "" || m.ID == "" {
		return nil
	}
	kind, err := routing.ParseContentKind(m.Type)
	if err != nil {
		// Unknown kinds still identify content; metadata lookups skip them.
		kind = routing.ContentKind(m.Type)
	}
	return &routing.ContentRef{Kind: kind, ID: string(m.ID)}
}

// flexString decodes both "42" and 42.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("proxyapi: invalid id %s", b)
	}
	*f = flexString(n.String())
	return nil
}

// flexTime decodes RFC 3339 timestamps, ISO timestamps without a zone
// (read as UTC) and unix seconds, integer or fractional.
type flexTime time.Time

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = flexTime{}
		return nil
	}
	if b[0] != '"' {
		secs, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return fmt.Errorf("proxyapi: invalid timestamp %s", b)
		}
		whole := int64(secs)
		*f = flexTime(time.Unix(whole, int64((secs-float64(whole))*1e9)).UTC())
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*f = flexTime{}
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		*f = flexTime(t)
		return nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			*f = flexTime(t)
			return nil
		}
	}
	return fmt.Errorf("proxyapi: invalid timestamp %q", s)
}
