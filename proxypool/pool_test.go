package proxypool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing_harvester/proxypool/model"
)

// mockProber marks every candidate whose port is even as live.
type mockProber struct {
	calls int
}

func (m *mockProber) Probe(_ context.Context, candidates []model.ProxyCandidate) []model.LiveProxy {
	m.calls++
	var live []model.LiveProxy
	for _, c := range candidates {
		if c.Port%2 == 0 {
			live = append(live, model.NewLiveProxy(c, time.Millisecond, time.Now()))
		}
	}
	return live
}

type mockSource struct {
	name       string
	candidates []model.ProxyCandidate
	err        error
}

func (m *mockSource) Fetch(context.Context) ([]model.ProxyCandidate, error) {
	return m.candidates, m.err
}
func (m *mockSource) Name() string { return m.name }

type mockReport struct {
	saved []model.LiveProxy
}

func (m *mockReport) Load() ([]model.ProxyCandidate, error) { return nil, nil }
func (m *mockReport) SaveReport(live []model.LiveProxy) error {
	m.saved = live
	return nil
}

func candidate(host string, port int) model.ProxyCandidate {
	return model.ProxyCandidate{Scheme: model.SchemeHTTP, Host: host, Port: port}
}

func TestPool_LoadDeduplicates(t *testing.T) {
	a := &mockSource{name: "a", candidates: []model.ProxyCandidate{candidate("1.1.1.1", 80), candidate("2.2.2.2", 80)}}
	b := &mockSource{name: "b", candidates: []model.ProxyCandidate{candidate("1.1.1.1", 80), candidate("3.3.3.3", 80)}}
	broken := &mockSource{name: "broken", err: errors.New("unreachable")}

	p := New(&mockProber{}, nil, a, broken)
	p.AddSource(b)

	got, err := p.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "1.1.1.1:80", got[0].ID())
	assert.Equal(t, "2.2.2.2:80", got[1].ID())
	assert.Equal(t, "3.3.3.3:80", got[2].ID())
}

func TestPool_LoadAllSourcesFailed(t *testing.T) {
	p := New(&mockProber{}, nil, &mockSource{name: "broken", err: errors.New("boom")})
	_, err := p.Load(context.Background())
	assert.EqualError(t, err, "boom")
}

func TestPool_RoundRobin(t *testing.T) {
	report := &mockReport{}
	p := New(&mockProber{}, report)

	err := p.Probe(context.Background(), []model.ProxyCandidate{
		candidate("1.1.1.1", 80),
		candidate("2.2.2.2", 81), // dead
		candidate("3.3.3.3", 82),
		candidate("4.4.4.4", 84),
	})
	require.NoError(t, err)
	require.Equal(t, 3, p.Size())
	assert.Len(t, report.saved, 3)

	var order []string
	for i := 0; i < 7; i++ {
		proxy, err := p.Next()
		require.NoError(t, err)
		order = append(order, proxy.ID())
	}
	assert.Equal(t, []string{
		"1.1.1.1:80", "3.3.3.3:82", "4.4.4.4:84",
		"1.1.1.1:80", "3.3.3.3:82", "4.4.4.4:84",
		"1.1.1.1:80",
	}, order)
}

func TestPool_ConcurrentNextIsFair(t *testing.T) {
	p := New(&mockProber{}, nil)
	require.NoError(t, p.Probe(context.Background(), []model.ProxyCandidate{
		candidate("1.1.1.1", 80), candidate("2.2.2.2", 80), candidate("3.3.3.3", 80), candidate("4.4.4.4", 80),
	}))

	const perWorker = 100
	var mu sync.Mutex
	counts := make(map[string]int)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				proxy, err := p.Next()
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				counts[proxy.ID()]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, counts, 4)
	for id, n := range counts {
		assert.Equal(t, 8*perWorker/4, n, id)
	}
}

func TestPool_Exhausted(t *testing.T) {
	p := New(&mockProber{}, nil)

	_, err := p.Next()
	assert.ErrorIs(t, err, ErrPoolExhausted)

	err = p.Probe(context.Background(), []model.ProxyCandidate{candidate("1.1.1.1", 81)})
	assert.ErrorIs(t, err, ErrPoolExhausted)
	assert.Equal(t, 0, p.Size())
	assert.Empty(t, p.Live())
}
