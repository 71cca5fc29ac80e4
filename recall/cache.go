package recall

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/logging"
	"github.com/rushteam/recserve/metrics"
)

// CachedSimilarity 在 SimilaritySource 前加一层 core.Store 缓存。
// 只缓存成功的结果；缓存读写失败只记日志，不影响主链路。
//
//	sim := recall.NewCachedSimilarity(client, store.NewMemoryStore(), 300)
type CachedSimilarity struct {
	Source SimilaritySource
	Store  core.Store
	// TTL 缓存秒数，<= 0 表示不过期
	TTL int
	// KeyPrefix 缓存 key 前缀，默认 "recserve:sim:"
	KeyPrefix string
}

// NewCachedSimilarity 创建带缓存的相似物品源。
func NewCachedSimilarity(src SimilaritySource, s core.Store, ttl int) *CachedSimilarity {
	return &CachedSimilarity{Source: src, Store: s, TTL: ttl}
}

func (c *CachedSimilarity) key(itemID int64, k int) string {
	prefix := c.KeyPrefix
	if prefix == "" {
		prefix = "recserve:sim:"
	}
	return fmt.Sprintf("%s%d:%d", prefix, itemID, k)
}

func (c *CachedSimilarity) SimilarItems(ctx context.Context, itemID int64, k int) (*SimilarItems, error) {
	backend := c.Store.Name()
	key := c.key(itemID, k)

	data, err := c.Store.Get(ctx, key)
	switch {
	case err == nil:
		var cached SimilarItems
		if jerr := json.Unmarshal(data, &cached); jerr == nil && len(cached.ItemIDs) == len(cached.Scores) {
			metrics.CacheRequests.WithLabelValues(backend, "hit").Inc()
			return &cached, nil
		}
		// 缓存内容损坏：删除后当作未命中
		metrics.CacheRequests.WithLabelValues(backend, "error").Inc()
		if derr := c.Store.Delete(ctx, key); derr != nil {
			logging.Warn().Err(derr).Str("key", key).Msg("similarity cache delete failed")
		}
	case core.IsStoreNotFound(err):
		metrics.CacheRequests.WithLabelValues(backend, "miss").Inc()
	default:
		metrics.CacheRequests.WithLabelValues(backend, "error").Inc()
		logging.Warn().Err(err).Str("key", key).Msg("similarity cache get failed")
	}

	res, err := c.Source.SimilarItems(ctx, itemID, k)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(res); err == nil {
		if err := c.Store.Set(ctx, key, data, c.TTL); err != nil {
			logging.Warn().Err(err).Str("key", key).Msg("similarity cache set failed")
		}
	}
	return res, nil
}

var _ SimilaritySource = (*CachedSimilarity)(nil)
