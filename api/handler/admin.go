package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/weeklytasks/api/transport"
	"github.com/fastygo/weeklytasks/domain"
	"github.com/fastygo/weeklytasks/internal/scheduler"
	"github.com/fastygo/weeklytasks/pkg/httpcontext"
	"github.com/fastygo/weeklytasks/pkg/weekclock"
)

// AdminHandler exposes the weekly triggers for manual recovery.
type AdminHandler struct {
	baseHandler
	scheduler *scheduler.Scheduler
}

func NewAdminHandler(s *scheduler.Scheduler, adapter *httpcontext.Adapter, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		baseHandler: newBaseHandler(adapter, logger),
		scheduler:   s,
	}
}

// @Summary Fire a weekly trigger now
// @Tags admin
// @Router /api/v1/admin/triggers/{trigger} [post]
func (h *AdminHandler) Fire(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	var err error
	switch pathParam(ctx, "trigger") {
	case scheduler.TriggerWeekClose:
		err = h.scheduler.OnWeekClose(stdCtx)
	case scheduler.TriggerWeekStart:
		err = h.scheduler.OnWeekStart(stdCtx)
	default:
		err = domain.NewError(domain.ErrCodeNotFound, "unknown trigger")
	}
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusAccepted, h.scheduler.Jobs())
}

// @Summary Regenerate statistics for a week
// @Tags admin
// @Router /api/v1/admin/stats/{year}/{week} [post]
func (h *AdminHandler) Regenerate(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	week := weekclock.Week{
		Number: parseInt(pathParam(ctx, "week"), 0),
		Year:   parseInt(pathParam(ctx, "year"), 0),
	}
	written, err := h.scheduler.RegenerateWeek(stdCtx, week)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(map[string]int{"snapshots": written}, weekMeta(week)))
}

// @Summary Trigger schedule and last outcomes
// @Tags admin
// @Router /api/v1/admin/schedule [get]
func (h *AdminHandler) Schedule(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, h.scheduler.Jobs())
}
