package api

import (
	"strings"

	"stream-router/internal/routing"
)

const playlistContentType = "audio/x-mpegurl"

// BuildEntryPlaylist renders a one-entry extended M3U pointing at streamURL.
// Quotes and line breaks in the title or logo are dropped so the #EXTINF line
// stays parseable.
func BuildEntryPlaylist(item routing.ContentItem, streamURL string) string {
	title := item.CustomName
	if title == "" {
		title = item.Name
	}
	if title == "" {
		title = item.Ref.String()
	}

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXTINF:-1")
	b.WriteString(` tvg-id="` + attr(item.Ref.ID) + `"`)
	if item.LogoURL != "" {
		b.WriteString(` tvg-logo="` + attr(item.LogoURL) + `"`)
	}
	b.WriteString("," + line(title) + "\n")
	b.WriteString(line(streamURL) + "\n")
	return b.String()
}

var (
	attrReplacer = strings.NewReplacer(`"`, "", "\r", "", "\n", "")
	lineReplacer = strings.NewReplacer("\r", "", "\n", "")
)

func attr(s string) string { return attrReplacer.Replace(s) }
func line(s string) string { return lineReplacer.Replace(s) }
