// Package ssr serves pipeline data over HTTP: every request runs the
// adaptive fetch for the matched route and renders the resulting state.
package ssr

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ib-77/fetchpipe/pkg/crawler"
	"github.com/ib-77/fetchpipe/pkg/fetchctx"
	"github.com/ib-77/fetchpipe/pkg/pipeline"
	"github.com/ib-77/fetchpipe/pkg/query"
)

type HandlerConfig struct {
	Routes  Routes
	Timeout time.Duration
	// IsSpider overrides the default crawler detection.
	IsSpider crawler.SpiderFunc
	Logger   *slog.Logger
}

type Handler struct {
	runner  pipeline.StageRunner[*fetchctx.Context]
	adapter *crawler.Adapter
	routes  Routes
	timeout time.Duration
	logger  *slog.Logger
}

func NewHandler(runner pipeline.StageRunner[*fetchctx.Context], cfg HandlerConfig) *Handler {
	l := cfg.Logger
	if l == nil {
		l = slog.Default()
	}
	return &Handler{
		runner:  runner,
		adapter: crawler.New(cfg.IsSpider, l),
		routes:  cfg.Routes,
		timeout: cfg.Timeout,
		logger:  l,
	}
}

type renderResponse struct {
	Stage string         `json:"stage"`
	Route string         `json:"route"`
	State map[string]any `json:"state"`
}

// Render runs seoFetch or minFetch for the request and writes the store
// state as JSON, unless a job already answered with a redirect.
func (h *Handler) Render(c *gin.Context) {
	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	nav := &ginNavigation{c: c, routes: h.routes}
	reporter := &errorCollector{logger: h.logger}
	factory := &fetchctx.Factory{
		Router:    nav,
		Navigator: nav,
		Store:     fetchctx.NewMemoryStore(c.Request.UserAgent()),
		Error:     reporter.report,
		Client:    true,
		Logger:    h.logger,
	}

	fc := factory.New(routeFromGin(c))
	ctx = fc.LogContext(ctx)
	stage := h.adapter.Stage(fc)

	res := h.adapter.Fetch(ctx, h.runner, fc)

	if !nav.claim() {
		h.logger.DebugContext(ctx, "response answered by redirect", "stage", stage)
		return
	}

	switch {
	case res.IsSuccess():
		c.JSON(http.StatusOK, renderResponse{
			Stage: stage,
			Route: fc.Route.FullPath,
			State: fc.Store.State().Snapshot(),
		})
	case res.IsCancel():
		status := http.StatusServiceUnavailable
		if errors.Is(res.Err(), context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		h.logger.WarnContext(ctx, "fetch cancelled", "stage", stage, "reason", res.Err())
		c.JSON(status, gin.H{"error": "fetch cancelled"})
	default:
		fc.ReportError(ctx, res.Err())
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "fetch failed",
			"stage":  stage,
			"errors": reporter.messages(),
		})
	}
}

func routeFromGin(c *gin.Context) fetchctx.Route {
	params := make(map[string]string, len(c.Params))
	for _, p := range c.Params {
		params[p.Key] = p.Value
	}
	return fetchctx.Route{
		Name:     c.FullPath(),
		Path:     c.Request.URL.Path,
		FullPath: c.Request.URL.RequestURI(),
		Params:   params,
		Query:    queryValues(c.Request.URL.Query()),
	}
}

// queryValues keeps single values as strings and repeated keys as slices.
func queryValues(v url.Values) query.Values {
	out := make(query.Values, len(v))
	for k, vals := range v {
		if len(vals) == 1 {
			out[k] = vals[0]
			continue
		}
		out[k] = append([]string(nil), vals...)
	}
	return out
}

type errorCollector struct {
	mu     sync.Mutex
	errs   []error
	logger *slog.Logger
}

func (e *errorCollector) report(ctx context.Context, err error) {
	e.mu.Lock()
	e.errs = append(e.errs, err)
	e.mu.Unlock()
	e.logger.ErrorContext(ctx, "pipeline error reported", "error", err)
}

func (e *errorCollector) messages() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.errs))
	for _, err := range e.errs {
		out = append(out, err.Error())
	}
	return out
}
