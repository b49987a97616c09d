// Package xtream queries Xtream Codes compatible panels for account status.
package xtream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stream-router/internal/routing"
)

const defaultTimeout = 10 * time.Second

var (
	// ErrUnauthorized is returned when the panel rejects the account credentials.
	ErrUnauthorized = errors.New("xtream: account not authorized")

	// ErrMalformedResponse is returned when the panel answers without user_info.
	ErrMalformedResponse = errors.New("xtream: malformed response")
)

// Client implements routing.StatusFetcher against player_api.php.
type Client struct {
	http *http.Client
}

// NewClient returns a Client. If httpClient is nil one with a 10s timeout is used.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{http: httpClient}
}

// userInfo mirrors the user_info object. Panels disagree on whether numbers
// are JSON numbers or strings, so both are accepted.
type userInfo struct {
	Auth           *flexInt `json:"auth"`
	Status         string   `json:"status"`
	ActiveCons     flexInt  `json:"active_cons"`
	MaxConnections *flexInt `json:"max_connections"`
	ExpDate        *flexInt `json:"exp_date"`
}

type statusResponse struct {
	UserInfo *userInfo `json:"user_info"`
}

// FetchStatus implements routing.StatusFetcher.
func (c *Client) FetchStatus(ctx context.Context, p routing.Provider) (routing.ProviderStatus, error) {
	endpoint, err := statusURL(p)
	if err != nil {
		return routing.ProviderStatus{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return routing.ProviderStatus{}, fmt.Errorf("xtream build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return routing.ProviderStatus{}, fmt.Errorf("xtream fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return routing.ProviderStatus{}, fmt.Errorf("xtream fetch: HTTP %d", resp.StatusCode)
	}

	var body statusResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return routing.ProviderStatus{}, fmt.Errorf("xtream decode: %w", err)
	}
	if body.UserInfo == nil {
		return routing.ProviderStatus{}, ErrMalformedResponse
	}
	info := body.UserInfo
	if info.Auth != nil && *info.Auth == 0 {
		return routing.ProviderStatus{}, ErrUnauthorized
	}

	st := routing.ProviderStatus{ActiveConnections: int(info.ActiveCons)}
	if info.MaxConnections != nil {
		st.MaxConnections = int(*info.MaxConnections)
	}
	if info.ExpDate != nil && *info.ExpDate > 0 {
		st.ExpiresAt = time.Unix(int64(*info.ExpDate), 0).UTC()
	}
	return st, nil
}

func statusURL(p routing.Provider) (string, error) {
	if p.ServerURL == "" {
		return "", fmt.Errorf("xtream: provider %s has no server url", p.ID)
	}
	base, err := url.Parse(strings.TrimRight(p.ServerURL, "/"))
	if err != nil {
		return "", fmt.Errorf("xtream: provider %s server url: %w", p.ID, err)
	}
	base.Path += "/player_api.php"
	q := url.Values{}
	q.Set("username", p.Username)
	q.Set("password", p.Password)
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// flexInt decodes 3, "3", "" and null. Empty values decode as 0.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		b = []byte(s)
	}
	n, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("xtream: invalid number %q", b)
	}
	*f = flexInt(n)
	return nil
}
