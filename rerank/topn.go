package rerank

import (
	"context"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/pipeline"
)

// TopNNode 截取前 N 个物品，通常是 Pipeline 的最后一个节点。
//
//   - N > 0：固定截断到 N
//   - N == 0：使用请求的 rctx.K
//   - 最终数量 <= 0 时返回空列表
type TopNNode struct {
	N int
}

func (n *TopNNode) Name() string        { return "rerank.topn" }
func (n *TopNNode) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *TopNNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	limit := n.N
	if limit == 0 && rctx != nil {
		limit = rctx.K
	}
	if limit <= 0 {
		return []*core.Item{}, nil
	}
	if len(items) <= limit {
		return items, nil
	}
	return items[:limit], nil
}
