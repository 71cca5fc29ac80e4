package recall

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rushteam/recserve/core"
)

func TestEventsClient_RecentEvents(t *testing.T) {
	var gotMethod, gotPath, gotUser, gotK, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		gotUser, gotK = r.URL.Query().Get("user_id"), r.URL.Query().Get("k")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"events":[7,3,9]}`))
	}))
	defer srv.Close()

	c := NewEventsClient(srv.URL+"/", time.Second)
	got, err := c.RecentEvents(context.Background(), 42, 3)
	if err != nil {
		t.Fatalf("RecentEvents 失败: %v", err)
	}
	if want := []int64{7, 3, 9}; !reflect.DeepEqual(got, want) {
		t.Errorf("RecentEvents = %v, want %v", got, want)
	}
	if gotMethod != http.MethodPost || gotPath != "/get" || gotUser != "42" || gotK != "3" {
		t.Errorf("请求不符: %s %s user_id=%s k=%s", gotMethod, gotPath, gotUser, gotK)
	}
	if gotAccept != "text/plain" {
		t.Errorf("Accept = %q", gotAccept)
	}
}

func TestEventsClient_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"events":null}`))
	}))
	defer srv.Close()

	got, err := NewEventsClient(srv.URL, time.Second).RecentEvents(context.Background(), 1, 3)
	if err != nil {
		t.Fatalf("RecentEvents 失败: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("期望空切片，实际 %v", got)
	}
}

func TestEventsClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantCode string
	}{
		{
			name: "status 500",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			wantCode: core.ErrorCodeUnavailable,
		},
		{
			name: "bad json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"events":"oops"`))
			},
			wantCode: core.ErrorCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewEventsClient(srv.URL, time.Second).RecentEvents(context.Background(), 1, 3)
			de := core.GetDomainError(err)
			if de == nil {
				t.Fatalf("期望 DomainError，实际 %v", err)
			}
			if de.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", de.Code, tt.wantCode)
			}
		})
	}
}

func TestEventsClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewEventsClient(srv.URL, time.Second).RecentEvents(context.Background(), 1, 3)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("期望 StatusError(503)，实际 %v", err)
	}
	if !core.IsUnavailable(err) {
		t.Errorf("非 2xx 应为 UNAVAILABLE: %v", err)
	}
}

func TestEventsClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewEventsClient(url, time.Second).RecentEvents(context.Background(), 1, 3)
	if !core.IsUnavailable(err) {
		t.Errorf("连接失败应为 UNAVAILABLE: %v", err)
	}
}

func TestEventsClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewEventsClient(srv.URL, 50*time.Millisecond).RecentEvents(context.Background(), 1, 3)
	if !core.IsUnavailable(err) {
		t.Errorf("超时应为 UNAVAILABLE: %v", err)
	}
}

func TestEventsClient_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewEventsClientWithHTTP(srv.URL, time.Second, nil, BreakerSettings{MinRequests: 2, Timeout: time.Minute})
	for i := 0; i < 2; i++ {
		_, _ = c.RecentEvents(context.Background(), 1, 3)
	}
	_, err := c.RecentEvents(context.Background(), 1, 3)
	if !core.IsUnavailable(err) {
		t.Errorf("熔断打开后应为 UNAVAILABLE: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("熔断打开后不应再调用上游，实际调用 %d 次", n)
	}
}

func TestSimilarityClient_SimilarItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/similar_items" || r.URL.Query().Get("item_id") != "5" || r.URL.Query().Get("k") != "2" {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"item_id_2":[11,12],"score":[0.9,0.5]}`))
	}))
	defer srv.Close()

	got, err := NewSimilarityClient(srv.URL, time.Second).SimilarItems(context.Background(), 5, 2)
	if err != nil {
		t.Fatalf("SimilarItems 失败: %v", err)
	}
	if !reflect.DeepEqual(got.ItemIDs, []int64{11, 12}) || !reflect.DeepEqual(got.Scores, []float64{0.9, 0.5}) {
		t.Errorf("SimilarItems = %+v", got)
	}
}

func TestSimilarityClient_LengthMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"item_id_2":[11,12],"score":[0.9]}`))
	}))
	defer srv.Close()

	got, err := NewSimilarityClient(srv.URL, time.Second).SimilarItems(context.Background(), 5, 2)
	if err == nil || got != nil {
		t.Fatalf("长度不一致应返回错误，实际 %+v, %v", got, err)
	}
	if !core.IsInvalidInput(err) {
		t.Errorf("期望 INVALID_INPUT: %v", err)
	}
}
