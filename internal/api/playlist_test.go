package api

import (
	"testing"

	"stream-router/internal/routing"
)

func TestBuildEntryPlaylist(t *testing.T) {
	item := routing.ContentItem{
		Ref:        routing.ContentRef{Kind: routing.KindChannel, ID: "101"},
		Name:       "News",
		CustomName: "News \"HD\"\n",
		LogoURL:    "http://logo/n.png",
	}
	got := BuildEntryPlaylist(item, "http://a/live/u/p/101.ts")
	want := "#EXTM3U\n" +
		"#EXTINF:-1 tvg-id=\"101\" tvg-logo=\"http://logo/n.png\",News \"HD\"\n" +
		"http://a/live/u/p/101.ts\n"
	if got != want {
		t.Errorf("unexpected playlist:\n%q\nwant:\n%q", got, want)
	}
}

func TestBuildEntryPlaylist_fallbackTitle(t *testing.T) {
	item := routing.ContentItem{Ref: routing.ContentRef{Kind: routing.KindEpisode, ID: "7"}}
	got := BuildEntryPlaylist(item, "http://a/series/u/p/7.mkv")
	want := "#EXTM3U\n#EXTINF:-1 tvg-id=\"7\",episode:7\nhttp://a/series/u/p/7.mkv\n"
	if got != want {
		t.Errorf("unexpected playlist:\n%q\nwant:\n%q", got, want)
	}
}
