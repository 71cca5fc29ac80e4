package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rushteam/recserve/config"
	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/filter"
	"github.com/rushteam/recserve/logging"
	"github.com/rushteam/recserve/pipeline"
	"github.com/rushteam/recserve/recall"
	"github.com/rushteam/recserve/recommend"
	"github.com/rushteam/recserve/server"
	"github.com/rushteam/recserve/store"
	"github.com/rushteam/recserve/table"
	"github.com/rushteam/recserve/table/duckdb"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load recommendation tables and serve HTTP",
	Long: `Load the personal and default recommendation tables, then serve:

  POST /recommendations?user_id=..&k=..
  POST /recommendations_online?user_id=..&k=..
  GET  /healthz
  GET  /metrics

Configuration is read from --config (or RECSERVE_CONFIG) and RECSERVE_* environment variables.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("config", "c", "", "path to YAML config file")
}

func runServe(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg)
}

// serve 加载数据、组装依赖并阻塞到 ctx 结束。任一表加载失败时不会开始监听。
func serve(ctx context.Context, cfg *config.Config) error {
	reader, err := duckdb.Open(ctx)
	if err != nil {
		return fmt.Errorf("open duckdb: %w", err)
	}
	defer reader.Close()

	tbl, err := loadTables(ctx, reader, cfg.Tables)
	if err != nil {
		return err
	}

	cache, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
	}

	events := recall.NewEventsClient(cfg.Events.URL, cfg.Events.Timeout)
	var similar recall.SimilaritySource = recall.NewSimilarityClient(cfg.Similarity.URL, cfg.Similarity.Timeout)
	if cache != nil {
		similar = recall.NewCachedSimilarity(similar, cache, cfg.Cache.TTL)
	}

	p, err := buildPipeline(cfg, events, similar)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Options{
		Precomputed: tbl,
		Online:      recommend.NewOnline(p),
		DefaultK:    cfg.Online.DefaultK,
		Collectors:  []prometheus.Collector{tbl.Counters()},
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", cfg.Server.Addr).Str("version", version).Msg("recserve listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logging.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	err = httpSrv.Shutdown(shutdownCtx)

	tbl.Stats()
	return err
}

func loadTables(ctx context.Context, reader table.Reader, cfg config.TablesConfig) (*table.Store, error) {
	tbl := table.NewStore(reader)
	if err := tbl.Load(ctx, table.KindPersonal, cfg.Personal.Path, cfg.Personal.Columns); err != nil {
		return nil, err
	}
	if err := tbl.Load(ctx, table.KindDefault, cfg.Default.Path, cfg.Default.Columns); err != nil {
		return nil, err
	}
	return tbl, nil
}

// openCache 按配置创建相似物品缓存，backend 为 none 时返回 nil。
func openCache(ctx context.Context, cfg config.CacheConfig) (core.Store, error) {
	switch cfg.Backend {
	case config.CacheMemory:
		return store.NewMemoryStore(), nil
	case config.CacheRedis:
		rs, err := store.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		return rs, nil
	default:
		return nil, nil
	}
}

// buildPipeline 优先使用 online.pipeline_file，否则组装默认 Pipeline。
func buildPipeline(cfg *config.Config, events recall.EventSource, similar recall.SimilaritySource) (*pipeline.Pipeline, error) {
	if cfg.Online.PipelineFile != "" {
		pc, err := pipeline.LoadFromYAML(cfg.Online.PipelineFile)
		if err != nil {
			return nil, fmt.Errorf("load pipeline %s: %w", cfg.Online.PipelineFile, err)
		}
		p, err := pc.BuildPipeline(config.NewFactory(cfg.Deps(events, similar)))
		if err != nil {
			return nil, fmt.Errorf("build pipeline %s: %w", cfg.Online.PipelineFile, err)
		}
		return p, nil
	}

	fanout := &recall.SimilarFanout{
		Events:        events,
		Similar:       similar,
		EventsK:       cfg.Events.EventsK,
		SimilarK:      cfg.Similarity.SimilarK,
		MaxConcurrent: cfg.Similarity.MaxConcurrent,
		FailurePolicy: cfg.FailurePolicy(),
	}

	var filters []filter.Filter
	if cfg.Online.FilterExpr != "" {
		f, err := filter.NewExprFilter(cfg.Online.FilterExpr)
		if err != nil {
			return nil, fmt.Errorf("online.filter_expr: %w", err)
		}
		filters = append(filters, f)
	}
	return recommend.NewDefaultPipeline(fanout, filters...), nil
}
