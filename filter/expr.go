package filter

import (
	"context"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/pkg/dsl"
)

// ExprFilter 用 CEL 表达式描述要 **保留** 的物品，表达式为 false 的物品被过滤。
//
//	f, _ := filter.NewExprFilter(`item.score >= 0.2`)
type ExprFilter struct {
	expr *dsl.Expr
}

// NewExprFilter 编译表达式，表达式无效时返回错误。
func NewExprFilter(src string) (*ExprFilter, error) {
	expr, err := dsl.Compile(src)
	if err != nil {
		return nil, err
	}
	return &ExprFilter{expr: expr}, nil
}

func (f *ExprFilter) Name() string {
	return "filter.expr"
}

func (f *ExprFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	keep, err := f.expr.Match(item, rctx)
	if err != nil {
		return false, err
	}
	return !keep, nil
}
