package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ib-77/fetchpipe/internal/ssr"
	"github.com/ib-77/fetchpipe/pkg/crawler"
	"github.com/ib-77/fetchpipe/pkg/fetchctx"
	"github.com/ib-77/fetchpipe/pkg/lifecycle"
	"github.com/ib-77/fetchpipe/pkg/pipeline"
	"github.com/ib-77/fetchpipe/pkg/query"
)

var routes = ssr.Routes{
	"home":    "/",
	"article": "/articles/:id",
	"legacy":  "/posts/:id",
	"login":   "/login",
}

func tasks() map[string]pipeline.Task[*fetchctx.Context] {
	return map[string]pipeline.Task[*fetchctx.Context]{
		"loadSession": func(ctx context.Context, c *fetchctx.Context) (any, error) {
			c.Store.State().Set("session", map[string]any{"anonymous": true})
			return nil, nil
		},
		"loadArticle": func(ctx context.Context, c *fetchctx.Context) (any, error) {
			id := c.Params["id"]
			if id == "" {
				return nil, nil
			}
			article := map[string]any{"id": id, "title": "Article " + id}
			c.Store.State().Set("article", article)
			return article, nil
		},
		"loadComments": func(ctx context.Context, c *fetchctx.Context) (any, error) {
			select {
			case <-time.After(5 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			c.Store.State().Set("comments", []string{"first", "second"})
			return 2, nil
		},
		"redirectLegacy": func(ctx context.Context, c *fetchctx.Context) (any, error) {
			if c.Route.Name != routes["legacy"] {
				return nil, nil
			}
			return nil, c.Redirect(ctx, fetchctx.RedirectOptions{
				Status: 301,
				Route:  &fetchctx.RouteDescriptor{Name: "article", Params: c.Params},
				Query:  query.Values{"from": "legacy"},
			})
		},
		"trackView": func(ctx context.Context, c *fetchctx.Context) (any, error) {
			c.Store.State().Set("viewedAt", time.Now().UTC().Format(time.RFC3339))
			return nil, nil
		},
	}
}

// defaultStages is used when no stage file is configured.
func defaultStages() map[string]pipeline.Stage {
	return map[string]pipeline.Stage{
		"content": pipeline.ParallelStage(pipeline.Job("loadArticle"), pipeline.Job("loadComments")),
		crawler.StageSEOFetch: pipeline.SerialStage(
			pipeline.Job("redirectLegacy"),
			pipeline.StageRef("content"),
		),
		crawler.StageMinFetch: pipeline.SerialStage(
			pipeline.Job("redirectLegacy"),
			pipeline.Job("loadArticle"),
		),
		lifecycle.StageMounted: pipeline.SerialStage(pipeline.Job("loadSession")),
		lifecycle.StageIdle:    pipeline.ParallelStage(pipeline.Job("trackView")),
	}
}

func describe(stages map[string]pipeline.Stage) []string {
	out := make([]string, 0, len(stages))
	for name, s := range stages {
		out = append(out, fmt.Sprintf("%s(%s,%d)", name, s.Type, len(s.Jobs)))
	}
	return out
}
