package fetchctx

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ib-77/fetchpipe/pkg/pipeline"
	"github.com/ib-77/fetchpipe/pkg/query"
)

type mockRouter struct {
	pushed    []Location
	resolveFn func(desc RouteDescriptor) (ResolvedRoute, error)
}

func (m *mockRouter) Push(ctx context.Context, loc Location) error {
	m.pushed = append(m.pushed, loc)
	return nil
}

func (m *mockRouter) Resolve(desc RouteDescriptor) (ResolvedRoute, error) {
	if m.resolveFn != nil {
		return m.resolveFn(desc)
	}
	return ResolvedRoute{Route: Route{FullPath: desc.Path}}, nil
}

type mockNavigator struct {
	urls     []string
	statuses []int
	err      error
}

func (m *mockNavigator) Replace(ctx context.Context, url string, status int) error {
	if m.err != nil {
		return m.err
	}
	m.urls = append(m.urls, url)
	m.statuses = append(m.statuses, status)
	return nil
}

func newContext(client bool) (*Context, *mockRouter, *mockNavigator) {
	router := &mockRouter{}
	nav := &mockNavigator{}
	f := &Factory{
		Router:    router,
		Store:     NewMemoryStore("Mozilla/5.0"),
		Navigator: nav,
		Client:    client,
	}
	return f.New(Route{Path: "/home", FullPath: "/home?x=1", Query: query.Values{"x": "1"}}), router, nav
}

func TestFactory_New(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore("Googlebot/2.1")
	f := &Factory{Store: store}

	c := f.New(Route{Path: "/p/1", Params: map[string]string{"id": "1"}, Query: query.Values{"tab": "info"}})
	other := f.New(Route{Path: "/p/2"})

	assert.Equal(t, "1", c.Params["id"])
	assert.Equal(t, "info", c.Query["tab"])
	assert.Equal(t, "Googlebot/2.1", c.UserAgent())
	assert.NotSame(t, c, other)
	assert.Same(t, c.Store.State(), other.Store.State())
}

func TestContext_UserAgentWithoutStore(t *testing.T) {
	t.Parallel()

	c := (&Factory{}).New(Route{})
	assert.Equal(t, "", c.UserAgent())
}

func TestRedirect_InternalPathPushes(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"/foo", "./foo", "../foo"} {
		c, router, nav := newContext(true)

		err := c.Redirect(context.Background(), RedirectOptions{Path: path, Query: query.Values{"a": "1"}})

		require.NoError(t, err, path)
		require.Len(t, router.pushed, 1, path)
		assert.Equal(t, Location{Path: path, Query: query.Values{"a": "1"}, Status: 302}, router.pushed[0])
		assert.Empty(t, nav.urls, "internal redirect must not navigate: %s", path)
	}
}

func TestRedirect_ExternalOnClientNavigatesAndAborts(t *testing.T) {
	t.Parallel()

	c, router, nav := newContext(true)

	err := c.Redirect(context.Background(), RedirectOptions{
		Status: 301,
		Path:   "https://x.com/landing/",
		Query:  query.Values{"ref": "app"},
	})

	assert.ErrorIs(t, err, ErrRedirect)
	assert.True(t, pipeline.IsAbort(err))
	assert.Equal(t, "ERR_REDIRECT", err.Error())
	assert.Equal(t, []string{"https://x.com/landing?ref=app"}, nav.urls)
	assert.Equal(t, []int{301}, nav.statuses)
	assert.Empty(t, router.pushed)
}

func TestRedirect_ProtocolRelativeIsExternal(t *testing.T) {
	t.Parallel()

	c, router, nav := newContext(true)

	err := c.Redirect(context.Background(), RedirectOptions{Path: "//cdn.example.com/a"})

	assert.ErrorIs(t, err, ErrRedirect)
	assert.Equal(t, []string{"//cdn.example.com/a"}, nav.urls)
	assert.Empty(t, router.pushed)
}

func TestRedirect_ExternalOutsideClientIsNoop(t *testing.T) {
	t.Parallel()

	c, router, nav := newContext(false)

	err := c.Redirect(context.Background(), RedirectOptions{Path: "https://x.com"})

	assert.NoError(t, err)
	assert.Empty(t, nav.urls)
	assert.Empty(t, router.pushed)
}

func TestRedirect_ResolvesRouteDescriptor(t *testing.T) {
	t.Parallel()

	c, router, _ := newContext(true)
	router.resolveFn = func(desc RouteDescriptor) (ResolvedRoute, error) {
		return ResolvedRoute{Route: Route{FullPath: "/users/" + desc.Params["id"]}}, nil
	}

	err := c.Redirect(context.Background(), RedirectOptions{
		Route: &RouteDescriptor{Name: "user", Params: map[string]string{"id": "42"}},
	})

	require.NoError(t, err)
	require.Len(t, router.pushed, 1)
	assert.Equal(t, "/users/42", router.pushed[0].Path)
}

func TestRedirect_ResolveError(t *testing.T) {
	t.Parallel()

	c, router, _ := newContext(true)
	missing := errors.New("no such route")
	router.resolveFn = func(RouteDescriptor) (ResolvedRoute, error) { return ResolvedRoute{}, missing }

	err := c.Redirect(context.Background(), RedirectOptions{Route: &RouteDescriptor{Name: "ghost"}})

	assert.ErrorIs(t, err, missing)
	assert.Empty(t, router.pushed)
}

func TestRedirect_EmptyTargetIsNoop(t *testing.T) {
	t.Parallel()

	c, router, nav := newContext(true)

	assert.NoError(t, c.Redirect(context.Background(), RedirectOptions{}))
	assert.Empty(t, router.pushed)
	assert.Empty(t, nav.urls)
}

func TestRedirect_NavigatorFailure(t *testing.T) {
	t.Parallel()

	c, _, nav := newContext(true)
	nav.err = errors.New("headers already sent")

	err := c.Redirect(context.Background(), RedirectOptions{Path: "https://x.com"})

	assert.ErrorIs(t, err, nav.err)
	assert.False(t, errors.Is(err, ErrRedirect))
}

func TestRedirect_MissingCapabilities(t *testing.T) {
	t.Parallel()

	c := (&Factory{Client: true}).New(Route{})

	assert.ErrorIs(t, c.Redirect(context.Background(), RedirectOptions{Path: "/in"}), ErrNoRouter)
	assert.ErrorIs(t, c.Redirect(context.Background(), RedirectOptions{Path: "https://out"}), ErrNoNavigator)
}

func TestReportError(t *testing.T) {
	t.Parallel()

	var got []error
	f := &Factory{Error: func(ctx context.Context, err error) { got = append(got, err) }}
	c := f.New(Route{})

	boom := errors.New("boom")
	c.ReportError(context.Background(), boom)
	c.ReportError(context.Background(), ErrRedirect)
	c.ReportError(context.Background(), nil)

	assert.Equal(t, []error{boom}, got)
}

func TestIsInternalPath(t *testing.T) {
	t.Parallel()

	assert.True(t, IsInternalPath("/"))
	assert.True(t, IsInternalPath("/a/b"))
	assert.True(t, IsInternalPath("./a"))
	assert.True(t, IsInternalPath("../a"))
	assert.False(t, IsInternalPath("//a.com"))
	assert.False(t, IsInternalPath("https://a.com"))
	assert.False(t, IsInternalPath(".../a"))
	assert.False(t, IsInternalPath("a/b"))
}

func TestState_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	st := NewState("ua")
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.Set("k", i)
			_, _ = st.Get("k")
			_ = st.Snapshot()
		}()
	}
	wg.Wait()

	_, ok := st.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "ua", st.UserAgent())
}
