package recall

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// EventSource 返回用户最近交互过的物品（通常最近的在前）。
type EventSource interface {
	RecentEvents(ctx context.Context, userID int64, k int) ([]int64, error)
}

// EventsClient 调用事件服务 POST {URL}/get?user_id=..&k=..，响应 {"events": [...]}。
//
//	events := recall.NewEventsClient("http://127.0.0.1:8020", 2*time.Second)
//	ids, err := events.RecentEvents(ctx, 42, 3)
type EventsClient struct {
	rpc     rpcClient
	breaker *Breaker[[]int64]
}

type eventsResponse struct {
	Events []int64 `json:"events"`
}

// NewEventsClient 创建事件服务客户端，timeout 为单次调用超时。
func NewEventsClient(baseURL string, timeout time.Duration) *EventsClient {
	return NewEventsClientWithHTTP(baseURL, timeout, nil, BreakerSettings{})
}

// NewEventsClientWithHTTP 使用自定义 *http.Client 与熔断参数。
func NewEventsClientWithHTTP(baseURL string, timeout time.Duration, client *http.Client, bs BreakerSettings) *EventsClient {
	return &EventsClient{
		rpc:     newRPCClient("events", baseURL, timeout, client),
		breaker: NewBreaker[[]int64]("events", bs),
	}
}

// RecentEvents 返回最多 k 个最近事件。
// 用户没有事件时返回空切片；服务不可达或返回非 2xx 时返回 UNAVAILABLE 错误。
func (c *EventsClient) RecentEvents(ctx context.Context, userID int64, k int) ([]int64, error) {
	return c.breaker.Execute(func() ([]int64, error) {
		params := url.Values{}
		params.Set("user_id", strconv.FormatInt(userID, 10))
		params.Set("k", strconv.Itoa(k))

		var resp eventsResponse
		if err := c.rpc.post(ctx, "/get", params, &resp); err != nil {
			return nil, err
		}
		if resp.Events == nil {
			return []int64{}, nil
		}
		return resp.Events, nil
	})
}

var _ EventSource = (*EventsClient)(nil)
