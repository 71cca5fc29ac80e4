package recall

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/logging"
	"github.com/rushteam/recserve/metrics"
)

// BreakerSettings 熔断器参数，零值使用默认值。
type BreakerSettings struct {
	// MaxRequests half-open 状态下允许通过的请求数，默认 3
	MaxRequests uint32
	// Interval closed 状态下计数清零周期，默认 1 分钟
	Interval time.Duration
	// Timeout open 状态持续多久后进入 half-open，默认 30 秒
	Timeout time.Duration
	// MinRequests 触发熔断前的最少请求数，默认 10
	MinRequests uint32
	// FailureRatio 失败率阈值，默认 0.6
	FailureRatio float64
}

func (s BreakerSettings) withDefaults() BreakerSettings {
	if s.MaxRequests == 0 {
		s.MaxRequests = 3
	}
	if s.Interval == 0 {
		s.Interval = time.Minute
	}
	if s.Timeout == 0 {
		s.Timeout = 30 * time.Second
	}
	if s.MinRequests == 0 {
		s.MinRequests = 10
	}
	if s.FailureRatio == 0 {
		s.FailureRatio = 0.6
	}
	return s
}

// Breaker 包装 gobreaker，为一个上游服务提供熔断保护，并把结果写入指标。
type Breaker[T any] struct {
	name string
	cb   *gobreaker.CircuitBreaker[T]
}

// NewBreaker 创建以 name 命名的熔断器（name 同时作为指标 label）。
func NewBreaker[T any](name string, settings BreakerSettings) *Breaker[T] {
	s := settings.withDefaults()
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= s.FailureRatio {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_ratio", ratio).
					Msg("opening circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
		// 请求方取消（客户端断开）不算上游失败
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Breaker[T]{name: name, cb: cb}
}

// Execute 在熔断保护下执行 fn。熔断打开时返回 UNAVAILABLE 错误，不调用 fn。
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	start := time.Now()
	result, err := b.cb.Execute(fn)
	metrics.UpstreamDuration.WithLabelValues(b.name).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.UpstreamRequests.WithLabelValues(b.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.UpstreamRequests.WithLabelValues(b.name, "rejected").Inc()
		var zero T
		return zero, core.WrapDomainError(core.ModuleUpstream, core.ErrorCodeUnavailable, err, "%s: circuit open", b.name)
	default:
		metrics.UpstreamRequests.WithLabelValues(b.name, "failure").Inc()
	}
	return result, err
}

// State 返回当前熔断状态。
func (b *Breaker[T]) State() gobreaker.State {
	return b.cb.State()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
