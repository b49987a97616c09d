package routing

import (
	"net/url"
	"strings"
)

// Transform returns the URL a client should play for item through pc.
// A custom URL always wins and is returned unchanged; a nil context yields
// the canonical URL, which may be empty.
func Transform(item ContentItem, pc ProviderContext) string {
	if item.CustomURL != "" {
		return item.CustomURL
	}
	if pc == nil {
		return item.URL
	}
	return pc.TransformURL(item)
}

// rewriteURL moves raw from one provider account onto another: the server
// origin is replaced when raw is hosted on from's server, and from's
// credentials are swapped for to's. In the path the user/pass pair is matched
// by position; in the query the username and password parameters are matched
// by key. Unparseable URLs are returned as is.
func rewriteURL(raw string, from, to Provider) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	if target, ok := parseServer(to.ServerURL); ok {
		src, hasSrc := parseServer(from.ServerURL)
		if !hasSrc || strings.EqualFold(src.Host, u.Host) {
			u.Scheme = target.Scheme
			u.Host = target.Host
		}
	}

	if canSwap(from, to) {
		segments := strings.Split(u.Path, "/")
		for i := 0; i+1 < len(segments); i++ {
			if segments[i] == from.Username && segments[i+1] == from.Password {
				segments[i], segments[i+1] = to.Username, to.Password
				u.Path = strings.Join(segments, "/")
				u.RawPath = ""
				break
			}
		}
		u.RawQuery = swapQueryCredentials(u.RawQuery, from, to)
	}

	return u.String()
}

func canSwap(from, to Provider) bool {
	return from.Username != "" && from.Password != "" && to.Username != "" && to.Password != ""
}

// swapQueryCredentials edits rawQuery in place so parameter order and
// encoding of untouched pairs survive.
func swapQueryCredentials(rawQuery string, from, to Provider) string {
	if rawQuery == "" {
		return rawQuery
	}
	pairs := strings.Split(rawQuery, "&")
	changed := false
	for i, pair := range pairs {
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			continue
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			continue
		}
		switch {
		case key == "username" && val == from.Username:
			pairs[i] = k + "=" + url.QueryEscape(to.Username)
		case key == "password" && val == from.Password:
			pairs[i] = k + "=" + url.QueryEscape(to.Password)
		default:
			continue
		}
		changed = true
	}
	if !changed {
		return rawQuery
	}
	return strings.Join(pairs, "&")
}

func parseServer(raw string) (*url.URL, bool) {
	if raw == "" {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, false
	}
	return u, true
}
