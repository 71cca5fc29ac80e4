package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/recall"
	"github.com/rushteam/recserve/recommend"
	"github.com/rushteam/recserve/table"
)

type memReader map[string][]table.Row

func (m memReader) Read(_ context.Context, path string, _ []string) ([]table.Row, error) {
	rows, ok := m[path]
	if !ok {
		return nil, errors.New("no such file: " + path)
	}
	return rows, nil
}

func newTableStore(t *testing.T) *table.Store {
	t.Helper()
	s := table.NewStore(memReader{
		"p": {{UserID: 1, ItemID: 10}, {UserID: 1, ItemID: 11}, {UserID: 1, ItemID: 12}},
		"d": {{ItemID: 100}, {ItemID: 101}},
	})
	ctx := context.Background()
	if err := s.Load(ctx, table.KindPersonal, "p", []string{table.ColumnUserID, table.ColumnItemID}); err != nil {
		t.Fatal(err)
	}
	if err := s.Load(ctx, table.KindDefault, "d", []string{table.ColumnItemID}); err != nil {
		t.Fatal(err)
	}
	return s
}

type onlineFunc func(ctx context.Context, userID int64, k int) ([]int64, error)

func (f onlineFunc) Recommend(ctx context.Context, userID int64, k int) ([]int64, error) {
	return f(ctx, userID, k)
}

func newTestServer(t *testing.T, online OnlineRecommender) (*httptest.Server, *table.Store) {
	t.Helper()
	tbl := newTableStore(t)
	srv, err := New(Options{
		Precomputed: tbl,
		Online:      online,
	})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tbl
}

func post(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, body
}

func decodeRecs(t *testing.T, body []byte) []int64 {
	t.Helper()
	var out struct {
		Recs []int64 `json:"recs"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("解析响应失败: %v, body=%s", err, body)
	}
	return out.Recs
}

func TestPrecomputed(t *testing.T) {
	ts, tbl := newTestServer(t, nil)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		want       []int64
	}{
		{name: "personal", query: "user_id=1&k=2", wantStatus: 200, want: []int64{10, 11}},
		{name: "default k", query: "user_id=1", wantStatus: 200, want: []int64{10, 11, 12}},
		{name: "fallback", query: "user_id=9&k=1", wantStatus: 200, want: []int64{100}},
		{name: "k zero", query: "user_id=1&k=0", wantStatus: 200, want: []int64{}},
		{name: "missing user", query: "k=2", wantStatus: 400},
		{name: "bad user", query: "user_id=abc", wantStatus: 400},
		{name: "bad k", query: "user_id=1&k=x", wantStatus: 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := post(t, ts.URL+"/recommendations?"+tt.query)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body=%s", status, tt.wantStatus, body)
			}
			if tt.wantStatus != 200 {
				if !strings.Contains(string(body), core.ErrorCodeInvalidInput) {
					t.Errorf("错误响应应包含错误码: %s", body)
				}
				return
			}
			if got := decodeRecs(t, body); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("recs = %v, want %v", got, tt.want)
			}
		})
	}

	snap := tbl.Counters().Snapshot()
	if snap.Personal != 3 || snap.Default != 1 {
		t.Errorf("计数器 = %+v", snap)
	}
}

func TestPrecomputed_EmptyIsArray(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	_, body := post(t, ts.URL+"/recommendations?user_id=1&k=0")
	if !strings.Contains(string(body), `"recs":[]`) {
		t.Errorf("recs 应为空数组而不是 null: %s", body)
	}
}

func TestPrecomputed_MethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/recommendations?user_id=1")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET 应返回 405，实际 %d", resp.StatusCode)
	}
}

func TestOnline_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "unavailable", err: core.NewDomainError(core.ModuleUpstream, core.ErrorCodeUnavailable, "down"), wantStatus: 503},
		{name: "bad upstream response", err: core.NewDomainError(core.ModuleUpstream, core.ErrorCodeInvalidInput, "bad json"), wantStatus: 502},
		{name: "wrapped unavailable", err: fmt.Errorf("recall.similar_fanout: %w", core.NewDomainError(core.ModuleUpstream, core.ErrorCodeUnavailable, "x")), wantStatus: 503},
		{name: "other", err: errors.New("boom"), wantStatus: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, _ := newTestServer(t, onlineFunc(func(context.Context, int64, int) ([]int64, error) {
				return nil, tt.err
			}))
			status, body := post(t, ts.URL+"/recommendations_online?user_id=1")
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d, body=%s", status, tt.wantStatus, body)
			}
			if !strings.Contains(string(body), `"error"`) {
				t.Errorf("错误响应格式不符: %s", body)
			}
		})
	}
}

func TestOnline_DefaultK(t *testing.T) {
	var gotK int
	ts, _ := newTestServer(t, onlineFunc(func(_ context.Context, _ int64, k int) ([]int64, error) {
		gotK = k
		return nil, nil
	}))
	status, body := post(t, ts.URL+"/recommendations_online?user_id=1")
	if status != 200 || gotK != 100 {
		t.Errorf("status=%d k=%d", status, gotK)
	}
	if !strings.Contains(string(body), `"recs":[]`) {
		t.Errorf("nil 结果应编码为空数组: %s", body)
	}
}

// 端到端：真实的 HTTP 上游 + 默认 Pipeline
func TestOnline_EndToEnd(t *testing.T) {
	events := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"events":[1,2]}`))
	}))
	defer events.Close()
	similar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("item_id") {
		case "1":
			_, _ = w.Write([]byte(`{"item_id_2":[101,102],"score":[0.9,0.5]}`))
		case "2":
			_, _ = w.Write([]byte(`{"item_id_2":[102,103],"score":[0.8,0.3]}`))
		default:
			_, _ = w.Write([]byte(`{"item_id_2":[],"score":[]}`))
		}
	}))
	defer similar.Close()

	fanout := &recall.SimilarFanout{
		Events:  recall.NewEventsClient(events.URL, time.Second),
		Similar: recall.NewSimilarityClient(similar.URL, time.Second),
	}
	ts, _ := newTestServer(t, recommend.NewOnline(recommend.NewDefaultPipeline(fanout)))

	status, body := post(t, ts.URL+"/recommendations_online?user_id=7")
	if status != 200 {
		t.Fatalf("status = %d, body=%s", status, body)
	}
	if got, want := decodeRecs(t, body), []int64{101, 102, 103}; !reflect.DeepEqual(got, want) {
		t.Errorf("recs = %v, want %v", got, want)
	}

	_, body = post(t, ts.URL+"/recommendations_online?user_id=7&k=2")
	if got, want := decodeRecs(t, body), []int64{101, 102}; !reflect.DeepEqual(got, want) {
		t.Errorf("k=2 recs = %v, want %v", got, want)
	}
}

func TestOnline_EventsFailureIs503(t *testing.T) {
	events := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer events.Close()

	fanout := &recall.SimilarFanout{
		Events:  recall.NewEventsClient(events.URL, time.Second),
		Similar: recall.NewSimilarityClient("http://127.0.0.1:1", time.Second),
	}
	ts, _ := newTestServer(t, recommend.NewOnline(recommend.NewDefaultPipeline(fanout)))

	status, body := post(t, ts.URL+"/recommendations_online?user_id=7")
	if status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503, body=%s", status, body)
	}
	if !strings.Contains(string(body), core.ErrorCodeUnavailable) {
		t.Errorf("错误码应为 UNAVAILABLE: %s", body)
	}
}

func TestOnline_SimilarityOutageIs503(t *testing.T) {
	events := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"events":[1,2,3]}`))
	}))
	defer events.Close()
	similar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer similar.Close()

	fanout := &recall.SimilarFanout{
		Events:  recall.NewEventsClient(events.URL, time.Second),
		Similar: recall.NewSimilarityClient(similar.URL, time.Second),
	}
	ts, _ := newTestServer(t, recommend.NewOnline(recommend.NewDefaultPipeline(fanout)))

	status, body := post(t, ts.URL+"/recommendations_online?user_id=7")
	if status != http.StatusServiceUnavailable {
		t.Errorf("相似物品服务全部失败应返回 503，实际 %d, body=%s", status, body)
	}
	if strings.Contains(string(body), `"recs"`) {
		t.Errorf("失败响应不应包含 recs: %s", body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	tbl := newTableStore(t)
	srv, err := New(Options{Precomputed: tbl, Collectors: []prometheus.Collector{tbl.Counters()}})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	tbl.Get(1, 1)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if want := `{"status":"ok","personal_users":1,"default_items":2}`; strings.TrimSpace(string(body)) != want {
		t.Errorf("healthz = %s, want %s", body, want)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `recserve_requests_served_total{source="personal"} 1`) {
		t.Errorf("/metrics 缺少请求计数:\n%s", body)
	}
}
