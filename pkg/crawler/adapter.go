// Package crawler picks the fetch stage for a request depending on whether
// the requester is a search engine crawler.
package crawler

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/ib-77/fetchpipe/pkg/fetchctx"
	"github.com/ib-77/fetchpipe/pkg/pipeline"
)

const (
	StageSEOFetch = "seoFetch"
	StageMinFetch = "minFetch"
)

// SpiderFunc classifies a user agent as a crawler.
type SpiderFunc func(userAgent string) bool

var spiderPattern = regexp.MustCompile(`(?i)(bot|spider|crawl|slurp|mediapartners|facebookexternalhit|embedly|quora link preview|outbrain|pinterest|vkshare|w3c_validator|whatsapp|lighthouse|headlesschrome)`)

// IsSpider is the default SpiderFunc, a token match against common crawler
// and link-preview user agents.
func IsSpider(userAgent string) bool {
	return userAgent != "" && spiderPattern.MatchString(userAgent)
}

type Adapter struct {
	isSpider SpiderFunc
	logger   *slog.Logger
}

func New(isSpider SpiderFunc, l *slog.Logger) *Adapter {
	if isSpider == nil {
		isSpider = IsSpider
	}
	if l == nil {
		l = slog.Default()
	}
	return &Adapter{isSpider: isSpider, logger: l}
}

// Stage returns the stage Fetch would run for c.
func (a *Adapter) Stage(c *fetchctx.Context) string {
	if a.isSpider(c.UserAgent()) {
		return StageSEOFetch
	}
	return StageMinFetch
}

// Fetch runs exactly one of seoFetch or minFetch against c.
func (a *Adapter) Fetch(ctx context.Context, runner pipeline.StageRunner[*fetchctx.Context], c *fetchctx.Context) pipeline.Result[[]any] {
	stage := a.Stage(c)
	a.logger.DebugContext(ctx, "adaptive fetch", "stage", stage, "user_agent", c.UserAgent())
	return runner.RunStageJobs(ctx, c, stage)
}

// AdaptiveFetch is Fetch with a one-off adapter.
func AdaptiveFetch(ctx context.Context, runner pipeline.StageRunner[*fetchctx.Context], c *fetchctx.Context, isSpider SpiderFunc) pipeline.Result[[]any] {
	return New(isSpider, nil).Fetch(ctx, runner, c)
}
