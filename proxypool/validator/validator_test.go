package validator

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing_harvester/proxypool/model"
)

// candidateFor turns a test server address into an http proxy candidate.
func candidateFor(t *testing.T, rawURL string) model.ProxyCandidate {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return model.ProxyCandidate{Scheme: model.SchemeHTTP, Host: host, Port: port}
}

// closedPort returns a local port nothing listens on.
func closedPort(t *testing.T) model.ProxyCandidate {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return model.ProxyCandidate{Scheme: model.SchemeHTTP, Host: "127.0.0.1", Port: port}
}

func TestProbe_OnlyLiveProxiesKept(t *testing.T) {
	var proxied atomic.Int32
	alive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// An HTTP proxy receives the absolute probe URL.
		if r.URL.IsAbs() {
			proxied.Add(1)
		}
		assert.Equal(t, "probe-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"origin":"203.0.113.7"}`))
	}))
	defer alive.Close()

	forbidden := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer forbidden.Close()

	headers := http.Header{}
	headers.Set("User-Agent", "probe-agent")
	v := NewValidator("http://probe.test/ip", 2*time.Second, 4, headers)

	candidates := []model.ProxyCandidate{
		closedPort(t),
		candidateFor(t, alive.URL),
		candidateFor(t, forbidden.URL),
	}
	live := v.Probe(context.Background(), candidates)

	require.Len(t, live, 1)
	assert.Equal(t, candidates[1].ID(), live[0].ID())
	assert.Equal(t, int32(1), proxied.Load())
	assert.False(t, live[0].CheckedAt.IsZero())
	assert.Equal(t, "203.0.113.7", live[0].ExitIP)
}

func TestProbe_LiveWithoutEchoBody(t *testing.T) {
	plain := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer plain.Close()

	v := NewValidator("http://probe.test/ip", 2*time.Second, 1, nil)
	live := v.Probe(context.Background(), []model.ProxyCandidate{candidateFor(t, plain.URL)})

	require.Len(t, live, 1)
	assert.Empty(t, live[0].ExitIP)
}

func TestProbe_Timeout(t *testing.T) {
	block := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(block)

	v := NewValidator("http://probe.test/ip", 200*time.Millisecond, 1, nil)
	live := v.Probe(context.Background(), []model.ProxyCandidate{candidateFor(t, slow.URL)})
	assert.Empty(t, live)
}

func TestProbe_Empty(t *testing.T) {
	v := NewValidator("", 0, 0, nil)
	assert.Empty(t, v.Probe(context.Background(), nil))
	assert.Equal(t, DefaultProbeURL, v.probeURL)
	assert.Equal(t, DefaultConcurrency, v.concurrency)
}
