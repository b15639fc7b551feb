package domain

import "strings"

// DefaultEndpoints are the IndexNow receivers every submission goes to.
var DefaultEndpoints = []string{
	"https://www.bing.com/indexnow",
	"https://api.indexnow.org/indexnow",
	"https://yandex.com/indexnow",
	"https://search.seznam.cz/indexnow",
	"https://search.naver.com/indexnow",
}

// Registry is the immutable, deduplicated set of endpoints for one request.
type Registry struct {
	endpoints []string
}

// NewRegistry builds the union of defaults and every extras group, keeping
// first-seen order so defaults are always listed before extras.
func NewRegistry(defaults []string, extras ...[]string) Registry {
	seen := make(map[string]struct{}, len(defaults))
	endpoints := make([]string, 0, len(defaults))

	add := func(ep string) {
		if ep == "" {
			return
		}
		if _, dup := seen[ep]; dup {
			return
		}
		seen[ep] = struct{}{}
		endpoints = append(endpoints, ep)
	}

	for _, ep := range defaults {
		add(ep)
	}
	for _, group := range extras {
		for _, ep := range group {
			add(ep)
		}
	}

	return Registry{endpoints: endpoints}
}

// Endpoints returns a copy of the endpoint list.
func (r Registry) Endpoints() []string {
	out := make([]string, len(r.endpoints))
	copy(out, r.endpoints)
	return out
}

// Len returns the number of endpoints.
func (r Registry) Len() int { return len(r.endpoints) }

// ParseEndpointList splits a comma-separated endpoint string. Segments are
// trimmed of whitespace and surrounding quotes; empty ones are dropped.
func ParseEndpointList(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	out := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.Trim(strings.TrimSpace(part), `"'`)
		if trimmed = strings.TrimSpace(trimmed); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
