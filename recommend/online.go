// Package recommend 把在线推荐 Pipeline 包装成按用户返回物品 ID 的接口。
package recommend

import (
	"context"
	"errors"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/filter"
	"github.com/rushteam/recserve/pipeline"
	"github.com/rushteam/recserve/recall"
	"github.com/rushteam/recserve/rerank"
)

// Online 执行在线推荐：最近事件 -> 相似物品 -> 按分数排序 -> 去重 -> 截断。
type Online struct {
	Pipeline *pipeline.Pipeline
}

// NewOnline 使用给定 Pipeline 创建在线推荐器。
func NewOnline(p *pipeline.Pipeline) *Online {
	return &Online{Pipeline: p}
}

// NewDefaultPipeline 组装默认的在线 Pipeline。filters 为空时不插入过滤节点。
//
//	SimilarFanout -> [FilterNode] -> ScoreSortNode -> DedupNode -> TopNNode
func NewDefaultPipeline(fanout *recall.SimilarFanout, filters ...filter.Filter) *pipeline.Pipeline {
	nodes := []pipeline.Node{fanout}
	if len(filters) > 0 {
		nodes = append(nodes, &filter.FilterNode{Filters: filters})
	}
	nodes = append(nodes,
		&rerank.ScoreSortNode{},
		&rerank.DedupNode{},
		&rerank.TopNNode{},
	)
	return &pipeline.Pipeline{Name: "online", Nodes: nodes}
}

// Recommend 返回用户的前 k 个在线推荐物品 ID。
// k <= 0 直接返回空列表，不调用任何上游；事件服务失败时返回错误。
func (o *Online) Recommend(ctx context.Context, userID int64, k int) ([]int64, error) {
	if k <= 0 {
		return []int64{}, nil
	}
	if o.Pipeline == nil {
		return nil, errors.New("recommend: pipeline is nil")
	}

	rctx := &core.RecommendContext{UserID: userID, K: k}
	items, err := o.Pipeline.Run(ctx, rctx, nil)
	if err != nil {
		return nil, err
	}

	// 自定义 Pipeline 可能没有 rerank.dedup，这里保证结果不重复
	ids := rerank.DedupIDs(core.IDs(items))
	if len(ids) > k {
		ids = ids[:k]
	}
	return ids, nil
}
