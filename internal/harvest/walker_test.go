package harvest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing_harvester/internal/shared/config"
)

var testPair = config.Pair{Keyword: "coffee%20shops", Location: "paris"}

func TestWalk_FollowsPagesUntilNoNext(t *testing.T) {
	mf := newMockFetcher()
	mf.bodies[testEndpoints.SearchURL("paris", "coffee%20shops", 1)] = resultPage(true, "/business/10/a", "/business/11/b")
	mf.bodies[testEndpoints.SearchURL("paris", "coffee%20shops", 2)] = resultPage(true, "/business/11/b", "/business/12/c")
	mf.bodies[testEndpoints.SearchURL("paris", "coffee%20shops", 3)] = resultPage(false, "/business/13/d")

	var events []ProgressEvent
	rc := NewRunContext("run-1", func(ev ProgressEvent) { events = append(events, ev) })

	res := NewWalker(mf, testEndpoints, 3).Walk(context.Background(), rc, testPair)

	assert.Equal(t, []int{10, 11, 12, 13}, res.IDs)
	assert.Equal(t, 3, res.Pages)
	assert.False(t, res.Aborted)
	assert.Equal(t, []string{
		"https://search.test/search/worldwide/paris/coffee%20shops/?page=1",
		"https://search.test/search/worldwide/paris/coffee%20shops/?page=2",
		"https://search.test/search/worldwide/paris/coffee%20shops/?page=3",
	}, mf.Calls())

	snap := rc.State.Snapshot()
	assert.Equal(t, int64(4), snap.Identifiers)
	assert.Equal(t, int64(3), snap.PagesWalked)
	require.Len(t, events, 3)
	assert.Equal(t, StageWalk, events[2].Stage)
	assert.Equal(t, 3, events[2].Page)
	assert.Equal(t, "run-1", events[2].RunID)
}

func TestWalk_LastPageIdentifiersKept(t *testing.T) {
	mf := newMockFetcher()
	mf.bodies[testEndpoints.SearchURL("paris", "coffee%20shops", 1)] = resultPage(false, "/business/7/only")

	res := NewWalker(mf, testEndpoints, 3).Walk(context.Background(), NewRunContext("r", nil), testPair)
	assert.Equal(t, []int{7}, res.IDs)
	assert.Len(t, mf.Calls(), 1)
}

func TestWalk_SkipsMalformedAnchors(t *testing.T) {
	mf := newMockFetcher()
	mf.bodies[testEndpoints.SearchURL("paris", "coffee%20shops", 1)] = resultPage(false,
		"/business/abc/x", "/business", "/business/-3/neg", "/business/0/zero", "/business/42/ok?ref=1")

	res := NewWalker(mf, testEndpoints, 3).Walk(context.Background(), NewRunContext("r", nil), testPair)
	assert.Equal(t, []int{42}, res.IDs)
}

func TestWalk_TransientFailureRetriesSamePage(t *testing.T) {
	mf := newMockFetcher()
	page1 := testEndpoints.SearchURL("paris", "coffee%20shops", 1)
	page2 := testEndpoints.SearchURL("paris", "coffee%20shops", 2)
	mf.bodies[page1] = resultPage(true, "/business/1/a")
	mf.bodies[page2] = resultPage(false, "/business/2/b")
	mf.fail[page2] = 2

	res := NewWalker(mf, testEndpoints, 3).Walk(context.Background(), NewRunContext("r", nil), testPair)

	assert.Equal(t, []int{1, 2}, res.IDs)
	assert.Equal(t, 2, res.Failures)
	assert.False(t, res.Aborted)
	assert.Equal(t, []string{page1, page2, page2, page2}, mf.Calls())
}

func TestWalk_FailureBudgetEndsPair(t *testing.T) {
	mf := newMockFetcher()
	page1 := testEndpoints.SearchURL("paris", "coffee%20shops", 1)
	page2 := testEndpoints.SearchURL("paris", "coffee%20shops", 2)
	mf.bodies[page1] = resultPage(true, "/business/1/a", "/business/2/b")
	mf.fail[page2] = -1

	res := NewWalker(mf, testEndpoints, 3).Walk(context.Background(), NewRunContext("r", nil), testPair)

	// Identifiers gathered before the budget ran out are kept.
	assert.Equal(t, []int{1, 2}, res.IDs)
	assert.True(t, res.Aborted)
	assert.Equal(t, 4, res.Failures)
	assert.Len(t, mf.Calls(), 5)
}

func TestWalk_StopRequested(t *testing.T) {
	mf := newMockFetcher()
	rc := NewRunContext("r", nil)
	mf.bodies[testEndpoints.SearchURL("paris", "coffee%20shops", 1)] = resultPage(true, "/business/1/a")
	mf.bodies[testEndpoints.SearchURL("paris", "coffee%20shops", 2)] = resultPage(true, "/business/2/b")
	mf.onFetch = func(string) { rc.Stop() }

	res := NewWalker(mf, testEndpoints, 3).Walk(context.Background(), rc, testPair)

	assert.Equal(t, []int{1}, res.IDs)
	assert.True(t, res.Aborted)
	assert.Len(t, mf.Calls(), 1)
}

func TestTotalCount(t *testing.T) {
	mf := newMockFetcher()
	mf.bodies[testEndpoints.SearchURL("paris", "coffee%20shops", 1)] =
		`<html><body><span class="font-bold">Results</span><span class="font-bold">1,234</span></body></html>`

	w := NewWalker(mf, testEndpoints, 0)
	assert.Equal(t, 1234, w.TotalCount(context.Background(), testPair))
	assert.Equal(t, 0, w.TotalCount(context.Background(), config.Pair{Keyword: "x", Location: "y"}))
}

func TestParsePage(t *testing.T) {
	res, err := ParsePage([]byte(resultPage(true, "/business/5/x", "/business/6/y")))
	require.NoError(t, err)
	assert.Equal(t, []int{5, 6}, res.IDs)
	assert.True(t, res.HasNext)

	res, err = ParsePage([]byte(`<html><body><a href="/business/9/z">not a listing</a></body></html>`))
	require.NoError(t, err)
	assert.Empty(t, res.IDs)
	assert.False(t, res.HasNext)
}

func TestIdentifierFromHref(t *testing.T) {
	tests := []struct {
		href    string
		id      int
		wantErr bool
	}{
		{href: "/business/12345/acme-bakery", id: 12345},
		{href: "/business/77", id: 77},
		{href: "/business/88/x#reviews", id: 88},
		{href: "/business/", wantErr: true},
		{href: "business", wantErr: true},
		{href: "/business/12a/x", wantErr: true},
		{href: "/business/0/x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			id, err := IdentifierFromHref(tt.href)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestEndpoints(t *testing.T) {
	e := Endpoints{SearchBase: "https://search.test/", APIBase: "https://api.test"}
	assert.Equal(t, "https://search.test/search/worldwide/new%20york/pizza/?page=2", e.SearchURL("new%20york", "pizza", 2))
	assert.Equal(t, "https://api.test/app/api/v1/business/99/fetch", e.DetailURL(99))
}
