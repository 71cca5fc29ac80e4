package core

import "github.com/rushteam/recserve/pkg/utils"

// RecommendContext 承载单次请求的用户与参数，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	UserID int64

	// K 是本次请求期望返回的物品数量
	K int

	// Labels 是请求级标签，例如 recall 阶段记录的降级信息
	Labels map[string]utils.Label
}

// PutLabel 写入请求级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取请求级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
