// Package fetchctx builds the execution context handed to every job of a
// stage run: route data, shared state, and the navigation capabilities
// (in-app push, external redirect, error reporting) of the host.
package fetchctx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ib-77/fetchpipe/internal/logger"
	"github.com/ib-77/fetchpipe/pkg/pipeline"
	"github.com/ib-77/fetchpipe/pkg/query"
)

const DefaultRedirectStatus = http.StatusFound

var (
	// ErrRedirect is returned by Redirect after an external navigation was
	// issued. The engine treats it as a Cancel, never as a job failure.
	ErrRedirect = pipeline.Abort("ERR_REDIRECT")

	ErrNoRouter    = errors.New("fetchctx: no router configured")
	ErrNoNavigator = errors.New("fetchctx: no navigator configured")
)

// Factory holds the host handles that outlive a single trigger. New builds a
// fresh Context from them for each mount, idle callback or request.
type Factory struct {
	Router    Router
	Store     Store
	Navigator Navigator
	Error     ErrorFunc
	// Client reports whether external redirects perform a real navigation.
	Client bool
	Logger *slog.Logger
}

func (f *Factory) New(route Route) *Context {
	l := f.Logger
	if l == nil {
		l = slog.Default()
	}
	return &Context{
		Route:     route,
		Params:    route.Params,
		Query:     route.Query,
		Store:     f.Store,
		Router:    f.Router,
		report:    f.Error,
		navigator: f.Navigator,
		client:    f.Client,
		logger:    l,
	}
}

// Context is the execution context passed to jobs. One instance is shared
// by every job of a run, nested stages included.
type Context struct {
	Route  Route
	Params map[string]string
	Query  query.Values
	Store  Store
	Router Router

	report    ErrorFunc
	navigator Navigator
	client    bool
	logger    *slog.Logger
}

// UserAgent returns the requester user agent kept in the store state.
func (c *Context) UserAgent() string {
	if c.Store == nil {
		return ""
	}
	st := c.Store.State()
	if st == nil {
		return ""
	}
	return st.UserAgent()
}

// ReportError hands err to the host error surface. Redirect aborts are not
// errors and are dropped.
func (c *Context) ReportError(ctx context.Context, err error) {
	if err == nil || errors.Is(err, ErrRedirect) {
		return
	}
	if c.report == nil {
		c.logger.ErrorContext(ctx, "unreported pipeline error", "error", err)
		return
	}
	c.report(ctx, err)
}

// LogContext tags ctx with the route this context was built for.
func (c *Context) LogContext(ctx context.Context) context.Context {
	full := c.Route.FullPath
	if full == "" {
		full = c.Route.Path
	}
	return logger.WithLogFields(ctx, logger.LogFields{Route: logger.Ptr(full)})
}

type RedirectOptions struct {
	Status int // 0 means DefaultRedirectStatus
	Path   string
	Route  *RouteDescriptor // resolved through the Router, takes precedence over Path
	Query  query.Values
}

// Redirect navigates to opts. Internal paths ("./x", "../x", "/x") are pushed
// through the Router. Anything else is treated as an external URL: the query
// is merged into it and, on a client, the Navigator replaces the location and
// ErrRedirect is returned so the calling job stops the stage chain.
func (c *Context) Redirect(ctx context.Context, opts RedirectOptions) error {
	path := opts.Path
	if opts.Route != nil {
		if c.Router == nil {
			return ErrNoRouter
		}
		resolved, err := c.Router.Resolve(*opts.Route)
		if err != nil {
			return fmt.Errorf("resolving redirect route: %w", err)
		}
		path = resolved.Route.FullPath
	}
	if path == "" {
		return nil
	}

	status := opts.Status
	if status == 0 {
		status = DefaultRedirectStatus
	}

	if IsInternalPath(path) {
		if c.Router == nil {
			return ErrNoRouter
		}
		c.logger.DebugContext(ctx, "redirect in app", "path", path, "status", status)
		return c.Router.Push(ctx, Location{Path: path, Query: opts.Query, Status: status})
	}

	target := query.FormatURL(path, opts.Query)
	if !c.client {
		c.logger.DebugContext(ctx, "external redirect skipped outside client", "url", target)
		return nil
	}
	if c.navigator == nil {
		return ErrNoNavigator
	}
	if err := c.navigator.Replace(ctx, target, status); err != nil {
		return fmt.Errorf("replacing location: %w", err)
	}

	c.logger.InfoContext(ctx, "redirect issued", "url", target, "status", status)
	return ErrRedirect
}

// IsInternalPath reports whether path stays inside the app: "./", "../" or a
// single leading "/".
func IsInternalPath(path string) bool {
	return strings.HasPrefix(path, "./") ||
		strings.HasPrefix(path, "../") ||
		(strings.HasPrefix(path, "/") && !strings.HasPrefix(path, "//"))
}
