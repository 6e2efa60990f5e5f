// Package transport builds http.Transports that route through a proxy.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"

	"listing_harvester/internal/shared"
	"listing_harvester/proxypool/model"
)

// New returns a transport dialing through proxyURL. HTTP proxies go through
// http.ProxyURL; SOCKS5 proxies are dialed with golang.org/x/net/proxy.
// A nil proxyURL yields a direct transport. When traffic is set every
// connection is counted into it.
func New(proxyURL *url.URL, timeout time.Duration, traffic *shared.Traffic) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}
	t := &http.Transport{
		DialContext:           countedDial(dialer.DialContext, traffic),
		TLSClientConfig:       &tls.Config{},
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout / 2,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if proxyURL == nil {
		return t, nil
	}

	switch proxyURL.Scheme {
	case model.SchemeHTTP, "https":
		t.Proxy = http.ProxyURL(proxyURL)
	case model.SchemeSOCKS5:
		var auth *proxy.Auth
		if proxyURL.User != nil {
			pass, _ := proxyURL.User.Password()
			auth = &proxy.Auth{User: proxyURL.User.Username(), Password: pass}
		}
		socks, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, dialer)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		cd, ok := socks.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("SOCKS5 dialer for %s does not support contexts", proxyURL.Host)
		}
		t.DialContext = countedDial(cd.DialContext, traffic)
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", proxyURL.Scheme)
	}
	return t, nil
}

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

func countedDial(dial dialFunc, traffic *shared.Traffic) dialFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		return shared.NewCountedConn(conn, traffic), nil
	}
}
