package fetcher

import (
	"context"
	"fmt"
	"net"

	utls "github.com/refraction-networking/utls"

	"listing_harvester/internal/shared"
)

// chromeTLSDialer returns a DialTLSContext that sends a Chrome ClientHello.
// ALPN is pinned to http/1.1 because net/http cannot speak h2 over a custom
// TLS connection.
func chromeTLSDialer(dialer *net.Dialer, traffic *shared.Traffic) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		spec, err := utls.UTLSIdToSpec(utls.HelloChrome_120)
		if err != nil {
			return nil, fmt.Errorf("building chrome hello spec: %w", err)
		}
		for _, ext := range spec.Extensions {
			if alpn, ok := ext.(*utls.ALPNExtension); ok {
				alpn.AlpnProtocols = []string{"http/1.1"}
			}
		}

		raw, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		raw = shared.NewCountedConn(raw, traffic)

		conn := utls.UClient(raw, &utls.Config{ServerName: host}, utls.HelloCustom)
		if err := conn.ApplyPreset(&spec); err != nil {
			raw.Close()
			return nil, fmt.Errorf("applying chrome hello: %w", err)
		}
		if err := conn.HandshakeContext(ctx); err != nil {
			raw.Close()
			return nil, err
		}
		return conn, nil
	}
}
