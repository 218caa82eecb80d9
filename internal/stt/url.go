package stt

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	streamPath     = "/ws/stream"
	transcribePath = "/transcribe/"
	healthPath     = "/health"
)

// StreamURL maps the service base URL to its streaming endpoint,
// http to ws and https to wss.
func StreamURL(base string) (string, error) {
	u, err := parseBase(base)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + streamPath
	return u.String(), nil
}

func endpoint(base, path string) (string, error) {
	u, err := parseBase(base)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}

func parseBase(base string) (*url.URL, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", base, err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return nil, fmt.Errorf("invalid server url %q: unsupported scheme %q", base, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q: missing host", base)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
