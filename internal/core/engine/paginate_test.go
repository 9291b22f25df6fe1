package engine

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/namelens/ascgate/internal/core"
)

// fakeDoer serves canned pages keyed by the "cursor" query parameter.
type fakeDoer struct {
	mu       sync.Mutex
	pages    map[string]string
	requests []Request
	err      error
}

func (d *fakeDoer) Execute(ctx context.Context, req Request) (*Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)
	if d.err != nil {
		return nil, d.err
	}
	body, ok := d.pages[req.Query.Get("cursor")]
	if !ok {
		return nil, core.NewFailure(core.KindNotFound, "no such page")
	}
	return &Response{Status: 200, Body: []byte(body)}, nil
}

func twoPageFixture() *fakeDoer {
	return &fakeDoer{pages: map[string]string{
		"":   `{"data":[{"type":"apps","id":"1"},{"type":"apps","id":"2"}],"links":{"self":"https://api.example.com/v1/apps","next":"https://api.example.com/v1/apps?cursor=AB&limit=2"}}`,
		"AB": `{"data":[{"type":"apps","id":"3"}],"links":{"self":"https://api.example.com/v1/apps?cursor=AB"}}`,
	}}
}

func ids(t *testing.T, items []json.RawMessage) []string {
	t.Helper()
	out := make([]string, 0, len(items))
	for _, raw := range items {
		var res core.Resource
		require.NoError(t, json.Unmarshal(raw, &res))
		out = append(out, res.ID)
	}
	return out
}

func TestPaginatorWalksAllPages(t *testing.T) {
	doer := twoPageFixture()
	p := NewPaginator(doer)

	items, err := p.Collect(context.Background(), Request{Path: "/apps", Query: url.Values{"limit": {"2"}, "fields[apps]": {"name"}}}, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2", "3"}, ids(t, items))
	require.Len(t, doer.requests, 2)

	second := doer.requests[1]
	require.Equal(t, "/apps", second.Path)
	require.Equal(t, "AB", second.Query.Get("cursor"))
	require.Equal(t, "name", second.Query.Get("fields[apps]"))
	require.Equal(t, "GET", second.Method)
}

func TestPaginatorStopsAtCapWithoutFetchingMore(t *testing.T) {
	doer := twoPageFixture()
	p := NewPaginator(doer)

	items, err := p.Collect(context.Background(), Request{Path: "/apps"}, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2"}, ids(t, items))
	require.Len(t, doer.requests, 1)
}

func TestPaginatorStopsWhenCallerBreaks(t *testing.T) {
	doer := twoPageFixture()
	p := NewPaginator(doer)

	count := 0
	for _, err := range p.All(context.Background(), Request{Path: "/apps"}, 0) {
		require.NoError(t, err)
		count++
		break
	}
	require.Equal(t, 1, count)
	require.Len(t, doer.requests, 1)
}

func TestPaginatorSurfacesFetchFailure(t *testing.T) {
	doer := &fakeDoer{err: core.NewFailure(core.KindForbidden, "forbidden")}
	p := NewPaginator(doer)

	items, err := p.Collect(context.Background(), Request{Path: "/apps"}, 0)
	require.Error(t, err)
	require.Equal(t, core.KindForbidden, core.KindOf(err))
	require.Empty(t, items)
}

func TestPaginatorNextLinkDoesNotMutateOriginalQuery(t *testing.T) {
	original := Request{Path: "/apps", Query: url.Values{"limit": {"2"}}, RequestID: "first-page"}
	next, err := nextRequest(original, "/v1/apps?cursor=XYZ&limit=5")
	require.NoError(t, err)
	require.Equal(t, "/apps", next.Path)
	require.Empty(t, next.RequestID)
	require.Equal(t, "5", next.Query.Get("limit"))
	require.Equal(t, "XYZ", next.Query.Get("cursor"))
	require.Equal(t, "2", original.Query.Get("limit"))
	require.Empty(t, original.Query.Get("cursor"))
}
