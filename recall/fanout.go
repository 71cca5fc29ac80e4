package recall

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/logging"
	"github.com/rushteam/recserve/metrics"
	"github.com/rushteam/recserve/pipeline"
	"github.com/rushteam/recserve/pkg/utils"
)

// FailurePolicy 决定单个相似物品调用失败时的处理方式。
type FailurePolicy string

const (
	// PolicySkip 跳过失败的事件，继续使用其余事件的结果（默认）
	PolicySkip FailurePolicy = "skip"
	// PolicyStrict 任意一次调用失败则整个请求失败
	PolicyStrict FailurePolicy = "strict"
)

// ParseFailurePolicy 解析配置中的策略，空字符串返回 PolicySkip。
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", PolicySkip:
		return PolicySkip, nil
	case PolicyStrict:
		return PolicyStrict, nil
	default:
		return "", fmt.Errorf("unknown similarity failure policy %q (want skip or strict)", s)
	}
}

// Item 上记录召回来源的 label key
const (
	LabelRecallSource = "recall_source"
	LabelEventItem    = "event_item"
	LabelEventIndex   = "event_index"
)

// SimilarFanout 是在线链路的 Recall Node：
// 读取用户最近 EventsK 个事件，对每个事件并发请求 SimilarK 个相似物品，
// 按事件顺序拼接所有 (item, score) 作为候选。
//
// 事件服务失败直接返回错误；相似物品服务失败按 FailurePolicy 处理，
// 失败不会被当成“该事件没有相似物品”静默吞掉。PolicySkip 下如果所有事件都失败，
// 返回 UNAVAILABLE 错误。
type SimilarFanout struct {
	Events  EventSource
	Similar SimilaritySource

	EventsK  int
	SimilarK int

	// MaxConcurrent 同时进行的相似物品调用数，0 表示不限制
	MaxConcurrent int
	FailurePolicy FailurePolicy
}

func (n *SimilarFanout) Name() string        { return "recall.similar_fanout" }
func (n *SimilarFanout) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *SimilarFanout) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	if n.Events == nil || n.Similar == nil {
		return nil, errors.New("similar_fanout: events and similarity sources are required")
	}
	defaults := &core.DefaultRecallConfig{}
	eventsK, similarK := n.EventsK, n.SimilarK
	if eventsK <= 0 {
		eventsK = defaults.DefaultEventsK()
	}
	if similarK <= 0 {
		similarK = defaults.DefaultSimilarK()
	}

	events, err := n.Events.RecentEvents(ctx, rctx.UserID, eventsK)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return []*core.Item{}, nil
	}

	// 每个事件一个槽位，保证拼接顺序与事件顺序一致
	slots := make([][]*core.Item, len(events))
	failed := make([]error, len(events))

	eg, egCtx := errgroup.WithContext(ctx)
	if n.MaxConcurrent > 0 {
		eg.SetLimit(n.MaxConcurrent)
	}
	strict := n.FailurePolicy == PolicyStrict

	for i, eventID := range events {
		eg.Go(func() error {
			res, err := n.Similar.SimilarItems(egCtx, eventID, similarK)
			if err != nil {
				failed[i] = err
				if strict {
					return fmt.Errorf("similar items for %d: %w", eventID, err)
				}
				return nil
			}

			items := make([]*core.Item, 0, res.Len())
			for j, id := range res.ItemIDs {
				it := core.NewItem(id)
				it.Score = res.Scores[j]
				it.PutLabel(LabelRecallSource, utils.Label{Value: "similar", Source: "recall"})
				it.PutLabel(LabelEventItem, utils.Label{Value: strconv.FormatInt(eventID, 10), Source: "recall"})
				it.PutLabel(LabelEventIndex, utils.Label{Value: strconv.Itoa(i), Source: "recall"})
				items = append(items, it)
			}
			slots[i] = items
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		// 请求方取消不算上游失败
		if !errors.Is(err, context.Canceled) {
			metrics.SimilarityFailures.WithLabelValues(string(PolicyStrict)).Inc()
		}
		return nil, err
	}

	var (
		out      []*core.Item
		skipped  int
		firstErr error
	)
	for i := range events {
		if failed[i] != nil {
			skipped++
			if firstErr == nil {
				firstErr = failed[i]
			}
			metrics.SimilarityFailures.WithLabelValues(string(PolicySkip)).Inc()
			logging.Warn().
				Err(failed[i]).
				Int64("user_id", rctx.UserID).
				Int64("event_item", events[i]).
				Msg("similar items lookup failed, skipping event")
			continue
		}
		out = append(out, slots[i]...)
	}
	// 所有事件都失败时没有任何候选，不能当成“没有相似物品”返回空结果
	if skipped == len(events) {
		if errors.Is(firstErr, context.Canceled) {
			return nil, firstErr
		}
		return nil, core.WrapDomainError(core.ModuleUpstream, core.ErrorCodeUnavailable, firstErr,
			"similarity: all %d lookups failed", skipped)
	}
	if skipped > 0 {
		rctx.PutLabel("similarity_skipped", utils.Label{Value: strconv.Itoa(skipped), Source: "recall"})
	}
	if out == nil {
		out = []*core.Item{}
	}
	return out, nil
}
