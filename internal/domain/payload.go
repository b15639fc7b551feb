package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidJSON is returned when the request body is not valid JSON.
var ErrInvalidJSON = errors.New("invalid json")

// ValidationDetail is the diagnostic attached to a rejected submission.
// It never carries secret values.
type ValidationDetail struct {
	HasKey       bool   `json:"hasKey"`
	URLCount     int    `json:"urlCount"`
	HostExpected string `json:"hostExpected"`
}

// ValidationError reports a well-formed body that cannot be submitted.
type ValidationError struct {
	Message string
	Detail  ValidationDetail
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s (hasKey=%t, urlCount=%d, hostExpected=%s)",
		e.Message, e.Detail.HasKey, e.Detail.URLCount, e.Detail.HostExpected)
}

// Site is the configured identity submissions are made for.
type Site struct {
	Host        string
	Key         string
	KeyLocation string
}

// KeyLocationFor returns explicit when set, otherwise the conventional
// https://{host}/{key}.txt, or "" when no key is configured.
func KeyLocationFor(host, key, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if key == "" {
		return ""
	}
	return fmt.Sprintf("https://%s/%s.txt", host, key)
}

// ParsePayload turns a raw request body into a Payload for site.
//
// Entries that are not absolute URLs, or whose hostname differs from the site
// host, are dropped silently. The surviving list keeps caller order and is cut
// at MaxURLsPerSubmission.
func ParsePayload(body []byte, site Site) (Payload, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return Payload{}, ErrInvalidJSON
	}

	urls := FilterURLs(extractURLList(raw), site.Host)

	if site.Key == "" || site.KeyLocation == "" || len(urls) == 0 {
		return Payload{}, &ValidationError{
			Message: "key or urlList missing",
			Detail: ValidationDetail{
				HasKey:       site.Key != "",
				URLCount:     len(urls),
				HostExpected: site.Host,
			},
		}
	}

	return Payload{
		Host:        site.Host,
		Key:         site.Key,
		KeyLocation: site.KeyLocation,
		URLList:     urls,
	}, nil
}

// extractURLList returns the urlList array of an object body, or nil when
// the field is missing or not an array.
func extractURLList(raw any) []any {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	list, ok := obj["urlList"].([]any)
	if !ok {
		return nil
	}
	return list
}

// FilterURLs keeps the entries that parse as absolute URLs on host.
func FilterURLs(entries []any, host string) []string {
	out := make([]string, 0, min(len(entries), MaxURLsPerSubmission))
	for _, entry := range entries {
		if len(out) == MaxURLsPerSubmission {
			break
		}
		s, ok := entry.(string)
		if !ok {
			continue
		}
		u, ok := parseAbsoluteURL(s)
		if !ok || !strings.EqualFold(u.Hostname(), host) {
			continue
		}
		out = append(out, u.String())
	}
	return out
}

func parseAbsoluteURL(s string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, false
	}
	// Hostnames compare case-insensitively; normalize like a browser would.
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u, true
}
