package fetchctx

import (
	"context"

	"github.com/ib-77/fetchpipe/pkg/query"
)

// Route is the current route a context is built for.
type Route struct {
	Name     string
	Path     string
	FullPath string
	Params   map[string]string
	Query    query.Values
}

// RouteDescriptor names a route to resolve into a path, by name or by path.
type RouteDescriptor struct {
	Name   string
	Path   string
	Params map[string]string
	Query  query.Values
}

type ResolvedRoute struct {
	Route Route
}

// Location is an in-app navigation target.
type Location struct {
	Path   string
	Query  query.Values
	Status int
}

// Router performs in-app navigation and route resolution.
type Router interface {
	Push(ctx context.Context, loc Location) error
	Resolve(desc RouteDescriptor) (ResolvedRoute, error)
}

// Navigator replaces the current location with an external URL. Hosts that
// cannot carry a status (a browser location replace) ignore it.
type Navigator interface {
	Replace(ctx context.Context, url string, status int) error
}

// ErrorFunc reports an error to the user-facing error surface of the host.
type ErrorFunc func(ctx context.Context, err error)

type Store interface {
	State() *State
}
