package recall

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/recserve/core"
)

// maxErrorBody 非 2xx 响应最多读取的 body 字节数（用于错误信息）
const maxErrorBody = 512

// rpcClient 是上游 HTTP 服务的公共调用逻辑。
//
// 上游约定：POST {BaseURL}{path}?k=v，参数放在 query string，
// 请求头 Content-Type: application/json / Accept: text/plain，响应为 JSON。
type rpcClient struct {
	name    string
	baseURL string
	timeout time.Duration
	client  *http.Client
}

func newRPCClient(name, baseURL string, timeout time.Duration, client *http.Client) rpcClient {
	if timeout <= 0 {
		timeout = (&core.DefaultRecallConfig{}).DefaultTimeout()
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return rpcClient{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  client,
	}
}

// post 调用上游并把 JSON 响应解码到 out。
// 网络错误、超时、非 2xx 返回 UNAVAILABLE；响应无法解码返回 INVALID_INPUT。
// 调用方取消时返回的错误满足 errors.Is(err, context.Canceled)。
func (c *rpcClient) post(ctx context.Context, path string, params url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return core.WrapDomainError(core.ModuleUpstream, core.ErrorCodeInternalError, err, "%s: create request", c.name)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("%s: %w", c.name, err)
		}
		return core.WrapDomainError(core.ModuleUpstream, core.ErrorCodeUnavailable, err, "%s: call failed", c.name)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			DomainError: core.DomainError{
				Module:  core.ModuleUpstream,
				Code:    core.ErrorCodeUnavailable,
				Message: fmt.Sprintf("%s: status=%d, body=%s", c.name, resp.StatusCode, strings.TrimSpace(string(body))),
			},
			StatusCode: resp.StatusCode,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return core.WrapDomainError(core.ModuleUpstream, core.ErrorCodeInvalidInput, err, "%s: decode response", c.name)
	}
	return nil
}

// StatusError 表示上游返回了非 2xx 状态码。
type StatusError struct {
	core.DomainError
	StatusCode int
}

func (e *StatusError) Unwrap() error {
	return &e.DomainError
}
