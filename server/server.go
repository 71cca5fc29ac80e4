// Package server 提供推荐服务的 HTTP 接口。
//
//	POST /recommendations?user_id=..&k=..         预计算推荐
//	POST /recommendations_online?user_id=..&k=..  在线推荐
//	GET  /healthz
//	GET  /metrics
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/logging"
)

// Precomputed 是预计算推荐表（table.Store）。
type Precomputed interface {
	Get(userID int64, k int) []int64
	Sizes() (users, defaultItems int)
}

// OnlineRecommender 是在线推荐（recommend.Online）。
type OnlineRecommender interface {
	Recommend(ctx context.Context, userID int64, k int) ([]int64, error)
}

// Options 构建 Server 的依赖。
type Options struct {
	Precomputed Precomputed
	Online      OnlineRecommender

	// DefaultK 请求未带 k 时的返回数量，<= 0 时使用 100
	DefaultK int

	// Collectors 额外注册到 /metrics 的 collector，例如 table.Counters
	Collectors []prometheus.Collector
}

// Server 持有路由与依赖。
type Server struct {
	precomputed Precomputed
	online      OnlineRecommender
	defaultK    int
	gatherer    prometheus.Gatherer
	logger      zerolog.Logger
}

// New 创建 Server。Collectors 注册失败（例如重复注册）时返回错误。
func New(opts Options) (*Server, error) {
	defaultK := opts.DefaultK
	if defaultK <= 0 {
		defaultK = (&core.DefaultRecallConfig{}).DefaultTopK()
	}

	reg := prometheus.NewRegistry()
	for _, c := range opts.Collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return &Server{
		precomputed: opts.Precomputed,
		online:      opts.Online,
		defaultK:    defaultK,
		gatherer:    prometheus.Gatherers{prometheus.DefaultGatherer, reg},
		logger:      logging.With().Str("component", "server").Logger(),
	}, nil
}

// Handler 返回配置好中间件与路由的 http.Handler。
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(prometheusMetrics)

	r.Post("/recommendations", s.handlePrecomputed)
	r.Post("/recommendations_online", s.handleOnline)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return r
}
