package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/logging"
)

// Pipeline 把推荐逻辑拆成顺序执行的 Node 链。
type Pipeline struct {
	Name  string
	Nodes []Node
}

// Run 依次执行各 Node，任一 Node 出错即中止；错误带上出错的 Node 名称。
func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node.Name(), err)
		}

		logging.Debug().
			Str("pipeline", p.Name).
			Str("node", node.Name()).
			Str("kind", string(node.Kind())).
			Int("in", len(cur)).
			Int("out", len(next)).
			Dur("took", time.Since(start)).
			Msg("node done")
		cur = next
	}
	return cur, nil
}
