package ssr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/ib-77/fetchpipe/pkg/fetchctx"
	"github.com/ib-77/fetchpipe/pkg/query"
)

var (
	ErrRouteNotFound     = errors.New("route not found")
	ErrMissingParam      = errors.New("missing route param")
	ErrAlreadyRedirected = errors.New("response already redirected")
	ErrBadRedirectStatus = errors.New("redirect status must be 3xx")
)

// Routes maps route names to gin path patterns, e.g. "article" -> "/articles/:id".
type Routes map[string]string

// Resolve expands desc into a concrete path. A named descriptor is looked up
// in r, otherwise desc.Path is used as the pattern.
func (r Routes) Resolve(desc fetchctx.RouteDescriptor) (fetchctx.ResolvedRoute, error) {
	pattern := desc.Path
	if desc.Name != "" {
		p, ok := r[desc.Name]
		if !ok {
			return fetchctx.ResolvedRoute{}, fmt.Errorf("%w: %q", ErrRouteNotFound, desc.Name)
		}
		pattern = p
	}
	if pattern == "" {
		return fetchctx.ResolvedRoute{}, fmt.Errorf("%w: empty descriptor", ErrRouteNotFound)
	}

	segments := strings.Split(pattern, "/")
	for i, seg := range segments {
		if seg == "" || (seg[0] != ':' && seg[0] != '*') {
			continue
		}
		name := seg[1:]
		v, ok := desc.Params[name]
		if !ok {
			return fetchctx.ResolvedRoute{}, fmt.Errorf("%w: %q in %s", ErrMissingParam, name, pattern)
		}
		segments[i] = strings.TrimPrefix(v, "/")
	}
	path := strings.Join(segments, "/")

	return fetchctx.ResolvedRoute{Route: fetchctx.Route{
		Name:     desc.Name,
		Path:     path,
		FullPath: query.FormatURL(path, desc.Query),
		Params:   desc.Params,
		Query:    desc.Query,
	}}, nil
}

// ginNavigation answers both in-app pushes and external replaces with an
// HTTP redirect on the current response. Only the first one is written.
type ginNavigation struct {
	mu         sync.Mutex
	c          *gin.Context
	routes     Routes
	redirected bool
}

func (n *ginNavigation) Push(ctx context.Context, loc fetchctx.Location) error {
	return n.redirect(loc.Status, query.FormatURL(loc.Path, loc.Query))
}

func (n *ginNavigation) Resolve(desc fetchctx.RouteDescriptor) (fetchctx.ResolvedRoute, error) {
	return n.routes.Resolve(desc)
}

func (n *ginNavigation) Replace(ctx context.Context, url string, status int) error {
	return n.redirect(status, url)
}

func (n *ginNavigation) redirect(status int, location string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.redirected || n.c.Writer.Written() {
		return ErrAlreadyRedirected
	}
	if status < http.StatusMultipleChoices || status > http.StatusPermanentRedirect {
		return fmt.Errorf("%w: got %d", ErrBadRedirectStatus, status)
	}
	n.redirected = true
	n.c.Redirect(status, location)
	n.c.Abort()
	return nil
}

// claim reserves the response for the handler. It fails when a redirect was
// already written; afterwards late redirects from running jobs are refused.
func (n *ginNavigation) claim() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.redirected {
		return false
	}
	n.redirected = true
	return true
}
