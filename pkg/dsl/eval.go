package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/recserve/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.DynType),
			cel.Variable("label", cel.DynType),
			cel.Variable("rctx", cel.DynType),
			cel.CrossTypeNumericComparisons(true),
		)
	})
	return celEnv, celEnvErr
}

// Expr 是编译后的候选物品表达式，使用 CEL (Common Expression Language)。
// 编译一次，可在多个请求、多个 goroutine 中并发求值。
//
// 可用变量：
//   - item.id / item.score / item.labels
//   - label.<key>：Label 的 value，例如 label.recall_source == "similar"
//   - rctx.user_id / rctx.k
//
// 示例：
//   - `item.score >= 0.2`
//   - `label.event_index == "0" || item.score > 0.8`
//   - `item.id != rctx.user_id`
type Expr struct {
	src string
	prg cel.Program
}

// Compile 编译表达式；表达式必须返回 bool。
func Compile(src string) (*Expr, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(src)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", src, issues.Err())
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("compile %q: expression must return bool, got %s", src, t)
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", src, err)
	}
	return &Expr{src: src, prg: prg}, nil
}

// String 返回表达式原文。
func (e *Expr) String() string { return e.src }

// Match 对单个候选物品求值。
// 访问不存在的 label 会报错，表达式中应先用 `"key" in label` 判断存在性。
func (e *Expr) Match(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	out, _, err := e.prg.Eval(buildInput(item, rctx))
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", e.src, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("eval %q: expression must return bool, got %T", e.src, out.Value())
	}
	return result, nil
}

func buildInput(item *core.Item, rctx *core.RecommendContext) map[string]any {
	labels := make(map[string]any)
	labelAccessor := make(map[string]any)
	if item != nil {
		for k, v := range item.Labels {
			labels[k] = map[string]any{
				"value":  v.Value,
				"source": v.Source,
			}
			labelAccessor[k] = v.Value
		}
	}

	itemMap := map[string]any{
		"labels": labels,
	}
	if item != nil {
		itemMap["id"] = item.ID
		itemMap["score"] = item.Score
	}

	rctxMap := map[string]any{}
	if rctx != nil {
		rctxMap["user_id"] = rctx.UserID
		rctxMap["k"] = int64(rctx.K)
	}

	return map[string]any{
		"item":  itemMap,
		"label": labelAccessor,
		"rctx":  rctxMap,
	}
}
