package ssr_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ib-77/fetchpipe/internal/ssr"
	"github.com/ib-77/fetchpipe/pkg/crawler"
	"github.com/ib-77/fetchpipe/pkg/fetchctx"
	"github.com/ib-77/fetchpipe/pkg/pipeline"
	"github.com/ib-77/fetchpipe/pkg/query"
)

const (
	googlebot = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
	firefox   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0"
)

type renderBody struct {
	Stage  string         `json:"stage"`
	Route  string         `json:"route"`
	State  map[string]any `json:"state"`
	Error  string         `json:"error"`
	Errors []string       `json:"errors"`
}

var _ = Describe("Handler", func() {
	var (
		router   *gin.Engine
		tasks    map[string]pipeline.Task[*fetchctx.Context]
		stages   map[string]pipeline.Stage
		timeout  time.Duration
		routes   ssr.Routes
		serve    func(path, ua string) (*httptest.ResponseRecorder, renderBody)
		setState func(key string, v any) pipeline.Task[*fetchctx.Context]
	)

	setState = func(key string, v any) pipeline.Task[*fetchctx.Context] {
		return func(ctx context.Context, c *fetchctx.Context) (any, error) {
			c.Store.State().Set(key, v)
			return v, nil
		}
	}

	BeforeEach(func() {
		timeout = time.Second
		routes = ssr.Routes{
			"article": "/articles/:id",
			"login":   "/login",
			"home":    "/",
		}
		tasks = map[string]pipeline.Task[*fetchctx.Context]{
			"article": func(ctx context.Context, c *fetchctx.Context) (any, error) {
				c.Store.State().Set("articleId", c.Params["id"])
				c.Store.State().Set("tab", c.Query["tab"])
				return nil, nil
			},
			"comments": setState("comments", 3),
			"summary":  setState("summary", true),
		}
		stages = map[string]pipeline.Stage{
			crawler.StageSEOFetch: pipeline.ParallelStage(pipeline.Job("article"), pipeline.Job("comments")),
			crawler.StageMinFetch: pipeline.SerialStage(pipeline.Job("summary")),
		}

		serve = func(path, ua string) (*httptest.ResponseRecorder, renderBody) {
			engine := pipeline.New(pipeline.Config[*fetchctx.Context]{Pipelines: tasks, Stages: stages})
			h := ssr.NewHandler(engine, ssr.HandlerConfig{Routes: routes, Timeout: timeout})

			router = gin.New()
			router.Use(ssr.Recovery(), ssr.Logger())
			ssr.SetupRoutes(router, h)

			req := httptest.NewRequest(http.MethodGet, path, nil)
			req.Header.Set("User-Agent", ua)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			var body renderBody
			if w.Header().Get("Content-Type") != "" && w.Body.Len() > 0 && w.Code != http.StatusFound && w.Code != http.StatusMovedPermanently {
				Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
			}
			return w, body
		}
	})

	It("runs seoFetch for crawlers with route params and query", func() {
		w, body := serve("/articles/42?tab=info", googlebot)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(body.Stage).To(Equal(crawler.StageSEOFetch))
		Expect(body.Route).To(Equal("/articles/42?tab=info"))
		Expect(body.State).To(HaveKeyWithValue("articleId", "42"))
		Expect(body.State).To(HaveKeyWithValue("tab", "info"))
		Expect(body.State).To(HaveKeyWithValue("comments", BeNumerically("==", 3)))
		Expect(body.State).NotTo(HaveKey("summary"))
	})

	It("runs minFetch for browsers", func() {
		w, body := serve("/articles/42", firefox)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(body.Stage).To(Equal(crawler.StageMinFetch))
		Expect(body.State).To(Equal(map[string]any{"summary": true}))
	})

	It("answers with the redirect issued by an external redirect", func() {
		tasks["summary"] = func(ctx context.Context, c *fetchctx.Context) (any, error) {
			return nil, c.Redirect(ctx, fetchctx.RedirectOptions{
				Status: http.StatusMovedPermanently,
				Path:   "https://login.example.com/",
				Query:  query.Values{"next": "home"},
			})
		}
		stages[crawler.StageMinFetch] = pipeline.SerialStage(pipeline.Job("summary"), pipeline.Job("comments"))

		w, _ := serve("/", firefox)

		Expect(w.Code).To(Equal(http.StatusMovedPermanently))
		Expect(w.Header().Get("Location")).To(Equal("https://login.example.com?next=home"))
	})

	It("answers with the redirect issued by an in-app push", func() {
		tasks["summary"] = func(ctx context.Context, c *fetchctx.Context) (any, error) {
			return nil, c.Redirect(ctx, fetchctx.RedirectOptions{
				Route: &fetchctx.RouteDescriptor{Name: "login", Query: query.Values{"from": "home"}},
			})
		}

		w, _ := serve("/", firefox)

		Expect(w.Code).To(Equal(http.StatusFound))
		Expect(w.Header().Get("Location")).To(Equal("/login?from=home"))
	})

	It("renders 500 when a job fails", func() {
		tasks["summary"] = func(ctx context.Context, c *fetchctx.Context) (any, error) {
			return nil, errors.New("upstream unavailable")
		}

		w, body := serve("/", firefox)

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(body.Error).To(Equal("fetch failed"))
		Expect(body.Errors).To(ConsistOf("upstream unavailable"))
	})

	It("renders 500 when a job is not registered", func() {
		stages[crawler.StageMinFetch] = pipeline.SerialStage(pipeline.Job("ghost"))

		w, body := serve("/", firefox)

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(body.Errors).To(HaveLen(1))
		Expect(body.Errors[0]).To(ContainSubstring("ghost"))
	})

	It("renders 504 when the request times out", func() {
		timeout = 20 * time.Millisecond
		tasks["summary"] = func(ctx context.Context, c *fetchctx.Context) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}

		w, _ := serve("/", firefox)

		Expect(w.Code).To(Equal(http.StatusGatewayTimeout))
	})

	It("renders 500 when a job hits its own upstream timeout", func() {
		tasks["summary"] = func(ctx context.Context, c *fetchctx.Context) (any, error) {
			callCtx, cancel := context.WithTimeout(ctx, time.Millisecond)
			defer cancel()
			<-callCtx.Done()
			return nil, callCtx.Err()
		}

		w, body := serve("/", firefox)

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(body.Errors).To(ConsistOf(context.DeadlineExceeded.Error()))
	})

	It("recovers panicking jobs as failures", func() {
		tasks["summary"] = func(ctx context.Context, c *fetchctx.Context) (any, error) {
			panic("nil map")
		}

		w, body := serve("/", firefox)

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(body.Errors[0]).To(ContainSubstring("panicked"))
	})

	It("serves the health check", func() {
		w, _ := serve("/health", firefox)
		Expect(w.Code).To(Equal(http.StatusOK))
	})
})

var _ = Describe("Routes", func() {
	routes := ssr.Routes{
		"article": "/articles/:id",
		"file":    "/files/*path",
	}

	It("resolves named routes with params and query", func() {
		res, err := routes.Resolve(fetchctx.RouteDescriptor{
			Name:   "article",
			Params: map[string]string{"id": "42"},
			Query:  query.Values{"ref": "home"},
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Route.Path).To(Equal("/articles/42"))
		Expect(res.Route.FullPath).To(Equal("/articles/42?ref=home"))
	})

	It("resolves catch-all params", func() {
		res, err := routes.Resolve(fetchctx.RouteDescriptor{
			Name:   "file",
			Params: map[string]string{"path": "/docs/readme.md"},
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Route.FullPath).To(Equal("/files/docs/readme.md"))
	})

	It("uses the descriptor path when no name is given", func() {
		res, err := routes.Resolve(fetchctx.RouteDescriptor{Path: "/users/:id", Params: map[string]string{"id": "7"}})

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Route.FullPath).To(Equal("/users/7"))
	})

	It("fails for unknown names and missing params", func() {
		_, err := routes.Resolve(fetchctx.RouteDescriptor{Name: "ghost"})
		Expect(err).To(MatchError(ssr.ErrRouteNotFound))

		_, err = routes.Resolve(fetchctx.RouteDescriptor{Name: "article"})
		Expect(err).To(MatchError(ssr.ErrMissingParam))
	})
})
