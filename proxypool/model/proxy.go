package model

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// Supported proxy schemes.
const (
	SchemeHTTP   = "http"
	SchemeSOCKS5 = "socks5"
)

// ProxyCandidate is one proxy entry as loaded from a source, before probing.
type ProxyCandidate struct {
	Scheme   string `json:"scheme"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Source   string `json:"source"` // which source produced it, e.g. "inline" or "file"
}

// ID identifies a candidate across sources, "host:port".
func (c ProxyCandidate) ID() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URL builds the transport descriptor (scheme + authority + credentials).
func (c ProxyCandidate) URL() *url.URL {
	scheme := c.Scheme
	if scheme == "" {
		scheme = SchemeHTTP
	}
	u := &url.URL{Scheme: scheme, Host: c.ID()}
	if c.Username != "" && c.Password != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	}
	return u
}

// LiveProxy is a candidate that answered the liveness probe. It is never
// mutated after the probe pass creates it.
type LiveProxy struct {
	Candidate ProxyCandidate
	URL       *url.URL
	Latency   time.Duration
	CheckedAt time.Time
	ExitIP    string // address reported by the IP-echo service, empty if it sent none
}

// NewLiveProxy wraps a probed candidate.
func NewLiveProxy(c ProxyCandidate, latency time.Duration, checkedAt time.Time) LiveProxy {
	return LiveProxy{Candidate: c, URL: c.URL(), Latency: latency, CheckedAt: checkedAt}
}

// String returns the proxy URL with the password redacted.
func (p LiveProxy) String() string {
	if p.URL == nil {
		return ""
	}
	return p.URL.Redacted()
}

func (p LiveProxy) ID() string {
	return p.Candidate.ID()
}

func (c ProxyCandidate) String() string {
	return fmt.Sprintf("%s://%s", c.URL().Scheme, c.ID())
}
