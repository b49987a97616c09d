package monitor

import (
	"time"

	"stream-router/internal/routing"
)

// Session is an active stream as reported by the stream proxy.
type Session struct {
	ID                  string
	Content             *routing.ContentRef
	SourceURL           string
	CurrentURL          string
	Format              string
	Active              bool
	ClientCount         int
	TotalBytesServed    int64
	TotalSegmentsServed int64
	ErrorCount          int
	CreatedAt           time.Time
	HasFailover         bool
}

// ClientConnection is a client attached to a session.
type ClientConnection struct {
	SessionID    string
	Address      string
	BytesServed  int64
	CreatedAt    time.Time
	LastAccessAt time.Time
}

// Metadata is display information for the content a session is playing.
type Metadata struct {
	Title string `json:"title"`
	Logo  string `json:"logo,omitempty"`
}

// ClientView is a client as shown to operators.
type ClientView struct {
	Address       string `json:"ip"`
	ConnectedAt   string `json:"connected_at"`
	Duration      string `json:"duration"`
	BytesReceived string `json:"bytes_received"`
	Active        bool   `json:"is_active"`
}

// StreamView is a session as shown to operators.
type StreamView struct {
	SessionID        string       `json:"stream_id"`
	SourceURL        string       `json:"source_url"`
	CurrentURL       string       `json:"current_url"`
	Format           string       `json:"format"`
	Status           string       `json:"status"`
	ClientCount      int          `json:"client_count"`
	BandwidthKbps    float64      `json:"bandwidth_kbps"`
	BytesTransferred string       `json:"bytes_transferred"`
	Uptime           string       `json:"uptime"`
	StartedAt        string       `json:"started_at"`
	ProcessRunning   bool         `json:"process_running"`
	Model            *Metadata    `json:"model,omitempty"`
	Clients          []ClientView `json:"clients"`
	HasFailover      bool         `json:"has_failover"`
	ErrorCount       int          `json:"error_count"`
	SegmentsServed   int64        `json:"segments_served"`
}

// GlobalStats summarises every session in a report.
type GlobalStats struct {
	TotalStreams        int     `json:"total_streams"`
	ActiveStreams       int     `json:"active_streams"`
	TotalClients        int     `json:"total_clients"`
	TotalBandwidthKbps  float64 `json:"total_bandwidth_kbps"`
	AvgClientsPerStream string  `json:"avg_clients_per_stream"`
}

// Report is a point-in-time view of the stream proxy. When the proxy could
// not be queried ConnectionError is set and Streams is empty.
type Report struct {
	Streams         []StreamView `json:"streams"`
	Global          GlobalStats  `json:"global_stats"`
	GeneratedAt     time.Time    `json:"generated_at"`
	ConnectionError string       `json:"connection_error,omitempty"`
}

// Reachable reports whether the proxy answered when the report was built.
func (r Report) Reachable() bool {
	return r.ConnectionError == ""
}

// StopResult is the outcome of a stop command.
type StopResult struct {
	SessionID string `json:"stream_id"`
	Stopped   bool   `json:"stopped"`
	Message   string `json:"message,omitempty"`
}
