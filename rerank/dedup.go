package rerank

import (
	"context"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/pipeline"
)

// DedupIDs 单次从左到右扫描，保留每个 ID 第一次出现的位置，丢弃后续重复。
// 保持原有相对顺序；nil 或空输入返回空切片。
func DedupIDs[T comparable](ids []T) []T {
	return dedupBy(ids, func(id T) T { return id }, nil)
}

// dedupBy 按 key 保留第一次出现的元素；onDup 不为 nil 时以 (保留的, 丢弃的) 回调。
func dedupBy[T any, K comparable](xs []T, key func(T) K, onDup func(kept, dup T)) []T {
	seen := make(map[K]int, len(xs))
	out := make([]T, 0, len(xs))
	for _, x := range xs {
		k := key(x)
		if i, ok := seen[k]; ok {
			if onDup != nil {
				onDup(out[i], x)
			}
			continue
		}
		seen[k] = len(out)
		out = append(out, x)
	}
	return out
}

// DedupNode 按 Item.ID 去重，保留第一次出现的 Item，
// 被丢弃的重复项的 Label 合并到保留项上（例如 event_item 记录所有来源事件）。
// 放在 ScoreSortNode 之后时，保留的就是每个物品分数最高的那一次。
type DedupNode struct{}

func (n *DedupNode) Name() string        { return "rerank.dedup" }
func (n *DedupNode) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *DedupNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	nonNil := make([]*core.Item, 0, len(items))
	for _, it := range items {
		if it != nil {
			nonNil = append(nonNil, it)
		}
	}
	return dedupBy(nonNil,
		func(it *core.Item) int64 { return it.ID },
		func(kept, dup *core.Item) {
			for k, v := range dup.Labels {
				kept.PutLabel(k, v)
			}
		},
	), nil
}
