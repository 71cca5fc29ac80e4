package rerank

import (
	"context"
	"slices"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/pipeline"
)

// ScoreSortNode 按 Score 降序稳定排序。
// 分数相同时保持输入顺序：先处理的事件、同一次返回中靠前的物品排在前面。
type ScoreSortNode struct{}

func (n *ScoreSortNode) Name() string        { return "rerank.score_sort" }
func (n *ScoreSortNode) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *ScoreSortNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b *core.Item) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	return out, nil
}
