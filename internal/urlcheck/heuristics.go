package urlcheck

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"
)

// Heuristics are syntactic checks that reject locations which parse as URLs
// but are almost certainly truncated or not pointing at a single file.
type Heuristics struct {
	MinURLLength        int
	MinPathLength       int
	MinLastSegment      int
	RejectTrailingSlash bool
	// RequireImageHint rejects paths that have neither an image extension
	// nor an image-ish keyword. CDNs often serve extensionless paths, so it
	// is off by default.
	RequireImageHint bool
}

// DefaultHeuristics returns the completeness rules used in production.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		MinURLLength:        20,
		MinPathLength:       5,
		MinLastSegment:      3,
		RejectTrailingSlash: true,
	}
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".avif", ".tif", ".tiff"}

var imageKeywords = []string{"image", "img", "photo", "thumbnail", "media", "catalog", "product"}

// checkSyntax parses raw and requires an absolute http(s) URL with a host.
func checkSyntax(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("unparseable url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("missing host")
	}
	return u, nil
}

// check applies the completeness rules to a syntactically valid URL.
func (h Heuristics) check(raw string, u *url.URL) error {
	if len(strings.TrimSpace(raw)) < h.MinURLLength {
		return fmt.Errorf("url too short (%d chars), likely incomplete", len(raw))
	}

	host := u.Hostname()
	if net.ParseIP(host) == nil && host != "localhost" && !strings.Contains(host, ".") {
		return fmt.Errorf("host %q has no domain suffix", host)
	}

	p := u.EscapedPath()
	if len(p) < h.MinPathLength {
		return fmt.Errorf("path %q too short, likely incomplete", p)
	}
	if h.RejectTrailingSlash && strings.HasSuffix(p, "/") {
		return fmt.Errorf("path %q ends with a slash, not a file", p)
	}
	if last := path.Base(p); len(last) < h.MinLastSegment {
		return fmt.Errorf("last path segment %q too short, likely truncated", last)
	}

	if h.RequireImageHint && !hasImageHint(u) {
		return fmt.Errorf("path %q does not look like an image", p)
	}
	return nil
}

func hasImageHint(u *url.URL) bool {
	lower := strings.ToLower(u.Path)
	ext := path.Ext(lower)
	for _, e := range imageExtensions {
		if ext == e {
			return true
		}
	}
	full := lower + "?" + strings.ToLower(u.RawQuery)
	for _, k := range imageKeywords {
		if strings.Contains(full, k) {
			return true
		}
	}
	return false
}
