package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/rushteam/recserve/core"
)

type recsResponse struct {
	Recs []int64 `json:"recs"`
}

type healthResponse struct {
	Status        string `json:"status"`
	PersonalUsers int    `json:"personal_users"`
	DefaultItems  int    `json:"default_items"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// handlePrecomputed POST /recommendations
// 查表不会失败：数据异常时 table.Store 记录日志并返回空列表。
func (s *Server) handlePrecomputed(w http.ResponseWriter, r *http.Request) {
	userID, k, err := s.parseParams(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, recsResponse{Recs: nonNil(s.precomputed.Get(userID, k))})
}

// handleOnline POST /recommendations_online
func (s *Server) handleOnline(w http.ResponseWriter, r *http.Request) {
	userID, k, err := s.parseParams(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	recs, err := s.online.Recommend(r.Context(), userID, k)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, recsResponse{Recs: nonNil(recs)})
}

// handleHealth GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	users, items := s.precomputed.Sizes()
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", PersonalUsers: users, DefaultItems: items})
}

// parseParams 解析 query 中的 user_id（必填）与 k（默认 DefaultK）。
func (s *Server) parseParams(r *http.Request) (int64, int, error) {
	q := r.URL.Query()

	raw := q.Get("user_id")
	if raw == "" {
		return 0, 0, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "user_id is required")
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, 0, core.WrapDomainError(core.ModuleService, core.ErrorCodeInvalidInput, err, "user_id must be an integer, got %q", raw)
	}

	k := s.defaultK
	if raw := q.Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, core.WrapDomainError(core.ModuleService, core.ErrorCodeInvalidInput, err, "k must be an integer, got %q", raw)
		}
		k = n
	}
	return userID, k, nil
}

// statusFor 把在线链路错误映射为 HTTP 状态码：
// 上游不可用 503，上游响应异常 502，请求方取消 499，其余 500。
func statusFor(err error) int {
	de := core.GetDomainError(err)
	switch {
	case errors.Is(err, context.Canceled):
		return 499
	case de == nil:
		return http.StatusInternalServerError
	case de.Code == core.ErrorCodeUnavailable:
		return http.StatusServiceUnavailable
	case de.Module == core.ModuleUpstream:
		return http.StatusBadGateway
	case de.Code == core.ErrorCodeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	code := core.ErrorCodeInternalError
	if de := core.GetDomainError(err); de != nil {
		code = de.Code
	}
	if status >= 500 {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = fmt.Sprintf("internal error (request %s)", chimiddleware.GetReqID(r.Context()))
	}
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: msg}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
