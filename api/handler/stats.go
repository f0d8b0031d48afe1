package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/weeklytasks/api/transport"
	"github.com/fastygo/weeklytasks/pkg/httpcontext"
	statsUC "github.com/fastygo/weeklytasks/usecase/stats"
	taskUC "github.com/fastygo/weeklytasks/usecase/task"
)

type StatsHandler struct {
	baseHandler
	stats *statsUC.UseCase
	tasks *taskUC.UseCase
}

func NewStatsHandler(stats *statsUC.UseCase, tasks *taskUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		baseHandler: newBaseHandler(adapter, logger),
		stats:       stats,
		tasks:       tasks,
	}
}

// @Summary Stored snapshot for a week (defaults to the current week)
// @Tags stats
// @Router /api/v1/chats/{chat}/stats [get]
func (h *StatsHandler) Get(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	week, err := weekFrom(ctx, h.stats.CurrentWeek())
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	stat, err := h.stats.GetStats(stdCtx, userID, pathParam(ctx, "chat"), week)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(stat, weekMeta(week)))
}

// @Summary Live counts for the current week
// @Tags stats
// @Router /api/v1/chats/{chat}/summary [get]
func (h *StatsHandler) Summary(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	summary, err := h.tasks.CurrentSummary(stdCtx, userID, pathParam(ctx, "chat"))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(summary, weekMeta(summary.Week)))
}

// @Summary Snapshot history, newest week first
// @Tags stats
// @Router /api/v1/chats/{chat}/history [get]
func (h *StatsHandler) History(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	history, err := h.stats.GetHistory(stdCtx, userID, pathParam(ctx, "chat"))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, history)
}

// @Summary Chat completion board
// @Tags stats
// @Router /api/v1/chats/{chat}/board [get]
func (h *StatsHandler) Board(ctx *fasthttp.RequestCtx) {
	if h.userID(ctx) == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	week, err := weekFrom(ctx, h.stats.CurrentWeek())
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	board, err := h.stats.ChatBoard(stdCtx, pathParam(ctx, "chat"), week)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(board, weekMeta(week)))
}
