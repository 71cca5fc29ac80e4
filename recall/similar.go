package recall

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rushteam/recserve/core"
)

// SimilarItems 是相似物品服务的返回：两个等长的并行数组，按下标对应。
type SimilarItems struct {
	ItemIDs []int64   `json:"item_id_2"`
	Scores  []float64 `json:"score"`
}

// Len 返回物品数。
func (s *SimilarItems) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ItemIDs)
}

// SimilaritySource 返回与 itemID 相似的物品及分数。
type SimilaritySource interface {
	SimilarItems(ctx context.Context, itemID int64, k int) (*SimilarItems, error)
}

// SimilarityClient 调用相似物品服务 POST {URL}/similar_items?item_id=..&k=..，
// 响应 {"item_id_2": [...], "score": [...]}。
type SimilarityClient struct {
	rpc     rpcClient
	breaker *Breaker[*SimilarItems]
}

// NewSimilarityClient 创建相似物品服务客户端，timeout 为单次调用超时。
func NewSimilarityClient(baseURL string, timeout time.Duration) *SimilarityClient {
	return NewSimilarityClientWithHTTP(baseURL, timeout, nil, BreakerSettings{})
}

// NewSimilarityClientWithHTTP 使用自定义 *http.Client 与熔断参数。
func NewSimilarityClientWithHTTP(baseURL string, timeout time.Duration, client *http.Client, bs BreakerSettings) *SimilarityClient {
	return &SimilarityClient{
		rpc:     newRPCClient("similarity", baseURL, timeout, client),
		breaker: NewBreaker[*SimilarItems]("similarity", bs),
	}
}

// SimilarItems 返回最多 k 个相似物品。
// 失败时返回 nil 和错误，调用方不能把失败当成“没有相似物品”。
// 两个数组长度不一致时视为上游响应异常（INVALID_INPUT）。
func (c *SimilarityClient) SimilarItems(ctx context.Context, itemID int64, k int) (*SimilarItems, error) {
	return c.breaker.Execute(func() (*SimilarItems, error) {
		params := url.Values{}
		params.Set("item_id", strconv.FormatInt(itemID, 10))
		params.Set("k", strconv.Itoa(k))

		var resp SimilarItems
		if err := c.rpc.post(ctx, "/similar_items", params, &resp); err != nil {
			return nil, err
		}
		if len(resp.ItemIDs) != len(resp.Scores) {
			return nil, core.NewDomainError(core.ModuleUpstream, core.ErrorCodeInvalidInput,
				"similarity: item_id_2 and score length mismatch for item "+strconv.FormatInt(itemID, 10))
		}
		return &resp, nil
	})
}

var _ SimilaritySource = (*SimilarityClient)(nil)
