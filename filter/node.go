package filter

import (
	"context"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/logging"
	"github.com/rushteam/recserve/pipeline"
)

// FilterNode 组合多个过滤器，任意一个返回 true 该物品即被过滤。
// 过滤器自身出错时记录日志并保留该物品，不中断请求。
type FilterNode struct {
	Filters []Filter
}

func (n *FilterNode) Name() string        { return "filter.node" }
func (n *FilterNode) Kind() pipeline.Kind { return pipeline.KindFilter }

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	out := make([]*core.Item, 0, len(items))
	filtered := 0

	for _, item := range items {
		if item == nil {
			continue
		}

		drop := false
		for _, f := range n.Filters {
			ok, err := f.ShouldFilter(ctx, rctx, item)
			if err != nil {
				logging.Warn().Err(err).Str("filter", f.Name()).Int64("item_id", item.ID).Msg("filter error, item kept")
				continue
			}
			if ok {
				drop = true
				break
			}
		}

		if drop {
			filtered++
			continue
		}
		out = append(out, item)
	}

	if filtered > 0 {
		logging.Debug().Int("filtered", filtered).Int("kept", len(out)).Msg("filter node")
	}
	return out, nil
}
