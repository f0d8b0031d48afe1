package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/weeklytasks/api/transport"
	"github.com/fastygo/weeklytasks/internal/infrastructure/monitor"
	"github.com/fastygo/weeklytasks/pkg/httpcontext"
	"github.com/fastygo/weeklytasks/pkg/weekclock"
)

type HealthHandler struct {
	baseHandler
	monitor *monitor.Monitor
	clock   *weekclock.Clock
}

func NewHealthHandler(mon *monitor.Monitor, clock *weekclock.Clock, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
		clock:       clock,
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	week := h.clock.Current()
	payload := map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"week": transport.WeekMeta{
			Week: week.Number,
			Year: week.Year,
			Zone: h.clock.Location().String(),
		},
		"services": map[string]interface{}{
			"store": map[string]interface{}{
				"driver": status.Driver,
				"online": status.Store,
			},
			"redis": map[string]interface{}{
				"enabled": status.RedisEnabled,
				"online":  status.Redis,
			},
		},
	}

	if status.Healthy() {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.NewError("DEGRADED", "dependencies unhealthy", payload))
}
