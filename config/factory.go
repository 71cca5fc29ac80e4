package config

import (
	"errors"
	"fmt"

	"github.com/rushteam/recserve/filter"
	"github.com/rushteam/recserve/pipeline"
	"github.com/rushteam/recserve/pkg/conv"
	"github.com/rushteam/recserve/recall"
	"github.com/rushteam/recserve/rerank"
)

// Deps 是构建在线 Node 时需要注入的运行时依赖与默认值。
type Deps struct {
	Events  recall.EventSource
	Similar recall.SimilaritySource

	EventsK       int
	SimilarK      int
	MaxConcurrent int
	FailurePolicy recall.FailurePolicy
}

// NewFactory 返回注册了所有在线 Node 的工厂：
// recall.similar_fanout / filter / filter.expr / rerank.score_sort / rerank.dedup / rerank.topn。
func NewFactory(deps Deps) *pipeline.NodeFactory {
	factory := pipeline.NewNodeFactory()

	// Recall
	factory.Register("recall.similar_fanout", func(cfg map[string]any) (pipeline.Node, error) {
		return buildSimilarFanout(deps, cfg)
	})

	// Filter
	factory.Register("filter", buildFilterNode)
	factory.Register("filter.expr", buildExprFilterNode)

	// ReRank
	factory.Register("rerank.score_sort", func(map[string]any) (pipeline.Node, error) {
		return &rerank.ScoreSortNode{}, nil
	})
	factory.Register("rerank.dedup", func(map[string]any) (pipeline.Node, error) {
		return &rerank.DedupNode{}, nil
	})
	factory.Register("rerank.topn", buildTopNNode)

	return factory
}

func buildSimilarFanout(deps Deps, cfg map[string]any) (pipeline.Node, error) {
	if deps.Events == nil || deps.Similar == nil {
		return nil, errors.New("recall.similar_fanout requires events and similarity sources")
	}

	policy := deps.FailurePolicy
	if s := conv.ConfigGet[string](cfg, "failure_policy", ""); s != "" {
		p, err := recall.ParseFailurePolicy(s)
		if err != nil {
			return nil, err
		}
		policy = p
	}

	return &recall.SimilarFanout{
		Events:        deps.Events,
		Similar:       deps.Similar,
		EventsK:       int(conv.ConfigGetInt64(cfg, "events_k", int64(deps.EventsK))),
		SimilarK:      int(conv.ConfigGetInt64(cfg, "similar_k", int64(deps.SimilarK))),
		MaxConcurrent: int(conv.ConfigGetInt64(cfg, "max_concurrent", int64(deps.MaxConcurrent))),
		FailurePolicy: policy,
	}, nil
}

func buildExprFilterNode(cfg map[string]any) (pipeline.Node, error) {
	src := conv.ConfigGet[string](cfg, "expr", "")
	if src == "" {
		return nil, errors.New("filter.expr: expr is required")
	}
	f, err := filter.NewExprFilter(src)
	if err != nil {
		return nil, err
	}
	return &filter.FilterNode{Filters: []filter.Filter{f}}, nil
}

func buildFilterNode(cfg map[string]any) (pipeline.Node, error) {
	filtersConfig, ok := cfg["filters"].([]any)
	if !ok {
		return nil, errors.New("filters not found or invalid")
	}

	filters := make([]filter.Filter, 0, len(filtersConfig))
	for _, fc := range filtersConfig {
		filterMap, ok := fc.(map[string]any)
		if !ok {
			continue
		}
		switch filterType := conv.ConfigGet[string](filterMap, "type", ""); filterType {
		case "blacklist":
			filters = append(filters, filter.NewBlacklistFilter(conv.SliceAnyToInt64(filterMap["item_ids"])))
		case "expr":
			f, err := filter.NewExprFilter(conv.ConfigGet[string](filterMap, "expr", ""))
			if err != nil {
				return nil, err
			}
			filters = append(filters, f)
		default:
			return nil, fmt.Errorf("unknown filter type: %s", filterType)
		}
	}

	return &filter.FilterNode{Filters: filters}, nil
}

func buildTopNNode(cfg map[string]any) (pipeline.Node, error) {
	n := conv.ConfigGetInt64(cfg, "n", 0)
	if n < 0 {
		return nil, fmt.Errorf("rerank.topn: n must be >= 0, got %d", n)
	}
	return &rerank.TopNNode{N: int(n)}, nil
}
