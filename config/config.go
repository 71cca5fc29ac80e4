// Package config 加载服务配置，并提供在线 Pipeline 的 Node 工厂。
//
// 配置按以下优先级叠加（后者覆盖前者）：
//
//  1. 内置默认值
//  2. YAML 配置文件（参数指定，或 RECSERVE_CONFIG 环境变量）
//  3. RECSERVE_ 前缀的环境变量，例如 RECSERVE_SERVER_ADDR -> server.addr
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/logging"
	"github.com/rushteam/recserve/recall"
	"github.com/rushteam/recserve/table"
)

const (
	// EnvPrefix 环境变量前缀
	EnvPrefix = "RECSERVE_"
	// ConfigPathEnvVar 指定配置文件路径的环境变量
	ConfigPathEnvVar = "RECSERVE_CONFIG"
)

// 缓存后端
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Log        LogConfig        `koanf:"log"`
	Tables     TablesConfig     `koanf:"tables"`
	Events     EventsConfig     `koanf:"events"`
	Similarity SimilarityConfig `koanf:"similarity"`
	Cache      CacheConfig      `koanf:"cache"`
	Online     OnlineConfig     `koanf:"online"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json / console
}

// TableConfig 描述一张预计算推荐表的位置与列。
type TableConfig struct {
	Path    string   `koanf:"path"`
	Columns []string `koanf:"columns"`
}

type TablesConfig struct {
	Personal TableConfig `koanf:"personal"`
	Default  TableConfig `koanf:"default"`
}

type EventsConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
	EventsK int           `koanf:"events_k"`
}

type SimilarityConfig struct {
	URL           string        `koanf:"url"`
	Timeout       time.Duration `koanf:"timeout"`
	SimilarK      int           `koanf:"similar_k"`
	FailurePolicy string        `koanf:"failure_policy"` // skip / strict
	MaxConcurrent int           `koanf:"max_concurrent"`
}

type RedisConfig struct {
	Addr string `koanf:"addr"`
	DB   int    `koanf:"db"`
}

type CacheConfig struct {
	Backend string      `koanf:"backend"` // none / memory / redis
	TTL     int         `koanf:"ttl"`     // 秒
	Redis   RedisConfig `koanf:"redis"`
}

type OnlineConfig struct {
	// FilterExpr 可选的 CEL 表达式，只保留表达式为 true 的候选
	FilterExpr string `koanf:"filter_expr"`
	// PipelineFile 可选的 Pipeline YAML，设置后替代默认 Pipeline
	PipelineFile string `koanf:"pipeline_file"`
	// DefaultK 请求未带 k 时的返回数量
	DefaultK int `koanf:"default_k"`
}

// Default 返回内置默认配置。
func Default() *Config {
	defaults := &core.DefaultRecallConfig{}
	return &Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Tables: TablesConfig{
			Personal: TableConfig{
				Path:    "final_recommendations_feat.parquet",
				Columns: []string{table.ColumnUserID, table.ColumnItemID, table.ColumnRank},
			},
			Default: TableConfig{
				Path:    "top_recs.parquet",
				Columns: []string{table.ColumnItemID, table.ColumnRank},
			},
		},
		Events: EventsConfig{
			URL:     "http://127.0.0.1:8020",
			Timeout: defaults.DefaultTimeout(),
			EventsK: defaults.DefaultEventsK(),
		},
		Similarity: SimilarityConfig{
			URL:           "http://127.0.0.1:8010",
			Timeout:       defaults.DefaultTimeout(),
			SimilarK:      defaults.DefaultSimilarK(),
			FailurePolicy: string(recall.PolicySkip),
		},
		Cache: CacheConfig{
			Backend: CacheNone,
			TTL:     300,
			Redis:   RedisConfig{Addr: "127.0.0.1:6379"},
		},
		Online: OnlineConfig{DefaultK: defaults.DefaultTopK()},
	}
}

// sliceConfigPaths 环境变量中以逗号分隔的切片字段
var sliceConfigPaths = []string{
	"tables.personal.columns",
	"tables.default.columns",
}

// Load 加载配置。path 为空时读取 RECSERVE_CONFIG，两者都为空则只用默认值与环境变量。
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: 默认值
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	// Layer 2: 配置文件
	if path == "" {
		path = os.Getenv(ConfigPathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
		logging.Debug().Str("path", path).Msg("config file loaded")
	}

	// Layer 3: 环境变量。已知 key 由默认值展开得到：
	// RECSERVE_CACHE_REDIS_ADDR -> cache.redis.addr
	envKeys := make(map[string]string, len(k.Keys()))
	for _, key := range k.Keys() {
		envKeys[strings.ReplaceAll(key, ".", "_")] = key
	}
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return envKeys[strings.ToLower(strings.TrimPrefix(s, EnvPrefix))]
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// processSliceFields 把环境变量传入的逗号分隔字符串转换为切片。
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

// Validate 检查配置是否完整、取值是否合法，返回所有问题的合并错误。
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "disabled", "off":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}

	if c.Tables.Personal.Path == "" {
		errs = append(errs, errors.New("tables.personal.path is required"))
	}
	if c.Tables.Default.Path == "" {
		errs = append(errs, errors.New("tables.default.path is required"))
	}

	if c.Events.URL == "" {
		errs = append(errs, errors.New("events.url is required"))
	}
	if c.Events.Timeout <= 0 {
		errs = append(errs, errors.New("events.timeout must be positive"))
	}
	if c.Events.EventsK <= 0 {
		errs = append(errs, errors.New("events.events_k must be positive"))
	}

	if c.Similarity.URL == "" {
		errs = append(errs, errors.New("similarity.url is required"))
	}
	if c.Similarity.Timeout <= 0 {
		errs = append(errs, errors.New("similarity.timeout must be positive"))
	}
	if c.Similarity.SimilarK <= 0 {
		errs = append(errs, errors.New("similarity.similar_k must be positive"))
	}
	if c.Similarity.MaxConcurrent < 0 {
		errs = append(errs, errors.New("similarity.max_concurrent must be >= 0"))
	}
	if _, err := recall.ParseFailurePolicy(c.Similarity.FailurePolicy); err != nil {
		errs = append(errs, err)
	}

	switch c.Cache.Backend {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			errs = append(errs, errors.New("cache.redis.addr is required for redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend must be none, memory or redis, got %q", c.Cache.Backend))
	}

	if c.Online.DefaultK <= 0 {
		errs = append(errs, errors.New("online.default_k must be positive"))
	}

	return errors.Join(errs...)
}

// FailurePolicy 返回解析后的相似物品失败策略（Validate 之后调用）。
func (c *Config) FailurePolicy() recall.FailurePolicy {
	p, _ := recall.ParseFailurePolicy(c.Similarity.FailurePolicy)
	return p
}

// Deps 根据配置填充 Node 工厂依赖的默认值。
func (c *Config) Deps(events recall.EventSource, similar recall.SimilaritySource) Deps {
	return Deps{
		Events:        events,
		Similar:       similar,
		EventsK:       c.Events.EventsK,
		SimilarK:      c.Similarity.SimilarK,
		MaxConcurrent: c.Similarity.MaxConcurrent,
		FailurePolicy: c.FailurePolicy(),
	}
}
