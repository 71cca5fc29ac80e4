package core

import "time"

// RecallConfig 为在线召回提供默认值，零值字段回落到这里。
type RecallConfig interface {
	// DefaultEventsK 返回默认读取的最近事件数
	DefaultEventsK() int

	// DefaultSimilarK 返回每个事件默认读取的相似物品数
	DefaultSimilarK() int

	// DefaultTopK 返回请求未指定 k 时的返回数量
	DefaultTopK() int

	// DefaultTimeout 返回单次上游调用的默认超时
	DefaultTimeout() time.Duration
}

// DefaultRecallConfig 是默认的召回配置实现。
type DefaultRecallConfig struct{}

func (c *DefaultRecallConfig) DefaultEventsK() int {
	return 3
}

func (c *DefaultRecallConfig) DefaultSimilarK() int {
	return 3
}

func (c *DefaultRecallConfig) DefaultTopK() int {
	return 100
}

func (c *DefaultRecallConfig) DefaultTimeout() time.Duration {
	return 2 * time.Second
}
