package monitor

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	// ClientActiveWindow is how recently a client must have fetched data to count as active.
	ClientActiveWindow = 30 * time.Second

	sourceURLMaxLen = 50
	timestampLayout = "2006-01-02 15:04:05"
)

var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

// BuildReport joins sessions with their clients as of now. Clients are matched
// by session id; a session without clients gets an empty list. lookup may be
// nil, in which case no session is enriched.
func BuildReport(ctx context.Context, sessions []Session, clients []ClientConnection, now time.Time, lookup MetadataLookup) Report {
	bySession := make(map[string][]ClientConnection, len(sessions))
	for _, c := range clients {
		bySession[c.SessionID] = append(bySession[c.SessionID], c)
	}

	streams := make([]StreamView, 0, len(sessions))
	for _, s := range sessions {
		streams = append(streams, buildStreamView(ctx, s, bySession[s.ID], now, lookup))
	}

	return Report{
		Streams:     streams,
		Global:      globalStats(streams),
		GeneratedAt: now,
	}
}

func buildStreamView(ctx context.Context, s Session, clients []ClientConnection, now time.Time, lookup MetadataLookup) StreamView {
	status := "inactive"
	if s.Active {
		status = "active"
	}

	views := make([]ClientView, 0, len(clients))
	for _, c := range clients {
		views = append(views, ClientView{
			Address:       c.Address,
			ConnectedAt:   c.CreatedAt.Format(timestampLayout),
			Duration:      humanDuration(c.CreatedAt, now),
			BytesReceived: FormatBytes(c.BytesServed),
			Active:        IsClientActive(c, now),
		})
	}

	v := StreamView{
		SessionID:        s.ID,
		SourceURL:        truncateURL(s.SourceURL, sourceURLMaxLen),
		CurrentURL:       s.CurrentURL,
		Format:           strings.ToUpper(s.Format),
		Status:           status,
		ClientCount:      s.ClientCount,
		BandwidthKbps:    BandwidthKbps(s.TotalBytesServed, s.CreatedAt, now),
		BytesTransferred: FormatBytes(s.TotalBytesServed),
		Uptime:           humanDuration(s.CreatedAt, now),
		StartedAt:        s.CreatedAt.Format(timestampLayout),
		ProcessRunning:   s.Active && s.ClientCount > 0,
		Clients:          views,
		HasFailover:      s.HasFailover,
		ErrorCount:       s.ErrorCount,
		SegmentsServed:   s.TotalSegmentsServed,
	}

	if s.Content != nil && lookup != nil {
		if md, ok := lookup.Lookup(ctx, *s.Content); ok {
			v.Model = &md
		}
	}
	return v
}

func globalStats(streams []StreamView) GlobalStats {
	g := GlobalStats{TotalStreams: len(streams), AvgClientsPerStream: "0.00"}
	var bandwidth float64
	for _, s := range streams {
		g.TotalClients += s.ClientCount
		bandwidth += s.BandwidthKbps
		if s.Status == "active" {
			g.ActiveStreams++
		}
	}
	g.TotalBandwidthKbps = round2(bandwidth)
	if g.TotalStreams > 0 {
		g.AvgClientsPerStream = fmt.Sprintf("%.2f", float64(g.TotalClients)/float64(g.TotalStreams))
	}
	return g
}

// BandwidthKbps is the lifetime average rate of a session: total bytes over
// whole seconds elapsed since creation, rounded to two decimals. It is 0 when
// no whole second has elapsed.
func BandwidthKbps(totalBytes int64, createdAt, now time.Time) float64 {
	elapsed := int64(now.Sub(createdAt) / time.Second)
	if elapsed <= 0 {
		return 0
	}
	return round2(float64(totalBytes) * 8 / float64(elapsed) / 1000)
}

// FormatBytes renders n with 1024-based units, e.g. 1536 -> "1.5 KB".
func FormatBytes(n int64) string {
	v := float64(n)
	i := 0
	for ; v > 1024 && i < len(byteUnits)-1; i++ {
		v /= 1024
	}
	return strconv.FormatFloat(round2(v), 'f', -1, 64) + " " + byteUnits[i]
}

// IsClientActive reports whether c fetched data within ClientActiveWindow of now.
func IsClientActive(c ClientConnection, now time.Time) bool {
	return now.Sub(c.LastAccessAt) < ClientActiveWindow
}

func humanDuration(since, now time.Time) string {
	return strings.TrimSpace(humanize.RelTime(since, now, "", ""))
}

func truncateURL(u string, maxLen int) string {
	r := []rune(u)
	if len(r) <= maxLen {
		return u
	}
	return string(r[:maxLen-3]) + "..."
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
