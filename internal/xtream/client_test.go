package xtream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"stream-router/internal/routing"
)

func newPanel(t *testing.T, body string, status int) (*httptest.Server, *url.URL) {
	t.Helper()
	seen := &url.URL{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = *r.URL
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestFetchStatus_stringNumbers(t *testing.T) {
	srv, seen := newPanel(t, `{"user_info":{"auth":1,"status":"Active","active_cons":"2","max_connections":"3","exp_date":"1767225600"}}`, http.StatusOK)
	c := NewClient(nil)

	st, err := c.FetchStatus(context.Background(), routing.Provider{ID: "p1", ServerURL: srv.URL + "/", Username: "alice", Password: "s&cret"})
	if err != nil {
		t.Fatalf("FetchStatus: %v", err)
	}
	if st.ActiveConnections != 2 || st.MaxConnections != 3 {
		t.Errorf("unexpected counts: %+v", st)
	}
	if !st.ExpiresAt.Equal(time.Unix(1767225600, 0)) {
		t.Errorf("unexpected expiry: %v", st.ExpiresAt)
	}
	if seen.Path != "/player_api.php" {
		t.Errorf("unexpected path %q", seen.Path)
	}
	if got := seen.Query().Get("password"); got != "s&cret" {
		t.Errorf("password not escaped correctly, got %q", got)
	}
}

func TestFetchStatus_numericFields(t *testing.T) {
	srv, _ := newPanel(t, `{"user_info":{"auth":1,"active_cons":0,"max_connections":1,"exp_date":null}}`, http.StatusOK)

	st, err := NewClient(nil).FetchStatus(context.Background(), routing.Provider{ID: "p1", ServerURL: srv.URL})
	if err != nil {
		t.Fatalf("FetchStatus: %v", err)
	}
	if st.MaxConnections != 1 || !st.ExpiresAt.IsZero() {
		t.Errorf("unexpected status: %+v", st)
	}
}

func TestFetchStatus_missingMaxIsUnlimited(t *testing.T) {
	srv, _ := newPanel(t, `{"user_info":{"auth":1,"active_cons":"4"}}`, http.StatusOK)

	st, err := NewClient(nil).FetchStatus(context.Background(), routing.Provider{ID: "p1", ServerURL: srv.URL})
	if err != nil {
		t.Fatalf("FetchStatus: %v", err)
	}
	if st.MaxConnections != 0 {
		t.Errorf("expected unlimited, got %d", st.MaxConnections)
	}
}

func TestFetchStatus_errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		want   error
	}{
		{"unauthorized", `{"user_info":{"auth":0}}`, http.StatusOK, ErrUnauthorized},
		{"no user_info", `{"server_info":{}}`, http.StatusOK, ErrMalformedResponse},
		{"http error", `oops`, http.StatusBadGateway, nil},
		{"bad json", `{"user_info":`, http.StatusOK, nil},
		{"bad number", `{"user_info":{"active_cons":"many"}}`, http.StatusOK, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newPanel(t, tt.body, tt.status)
			_, err := NewClient(nil).FetchStatus(context.Background(), routing.Provider{ID: "p1", ServerURL: srv.URL})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestFetchStatus_noServerURL(t *testing.T) {
	_, err := NewClient(nil).FetchStatus(context.Background(), routing.Provider{ID: "p1"})
	if err == nil {
		t.Fatal("expected error for provider without server url")
	}
}

func TestFetchStatus_honoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewClient(nil).FetchStatus(ctx, routing.Provider{ID: "p1", ServerURL: srv.URL})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
