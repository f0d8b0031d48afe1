package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/weeklytasks/api/transport"
	"github.com/fastygo/weeklytasks/domain"
	"github.com/fastygo/weeklytasks/pkg/httpcontext"
	"github.com/fastygo/weeklytasks/pkg/weekclock"
	taskUC "github.com/fastygo/weeklytasks/usecase/task"
)

type TaskHandler struct {
	baseHandler
	uc *taskUC.UseCase
}

func NewTaskHandler(uc *taskUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List current week tasks
// @Tags tasks
// @Router /api/v1/chats/{chat}/tasks [get]
func (h *TaskHandler) ListCurrent(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	chatID := pathParam(ctx, "chat")

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	page, week, err := h.uc.ListCurrentPage(stdCtx, userID, chatID, parseInt(string(ctx.QueryArgs().Peek("page")), 0))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(page.Items, transport.PageMeta{
		WeekMeta: transport.WeekMeta{Week: week.Number, Year: week.Year},
		Page:     page.Index,
		Pages:    page.Pages,
		Total:    page.Total,
		HasPrev:  page.HasPrev,
		HasNext:  page.HasNext,
	}))
}

// @Summary List tasks of a given week
// @Tags tasks
// @Router /api/v1/chats/{chat}/tasks/weeks/{year}/{week} [get]
func (h *TaskHandler) ListWeek(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	week, err := weekFrom(ctx, h.uc.CurrentWeek())
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	tasks, err := h.uc.ListWeekTasks(stdCtx, userID, pathParam(ctx, "chat"), week)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(tasks, weekMeta(week)))
}

// @Summary Create task in the current week
// @Tags tasks
// @Router /api/v1/chats/{chat}/tasks [post]
func (h *TaskHandler) Create(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	var req transport.CreateTaskRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.uc.CreateTask(stdCtx, userID, pathParam(ctx, "chat"), req.Description)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, created)
}

// @Summary Advisory check before adding a task
// @Tags tasks
// @Router /api/v1/chats/{chat}/tasks/eligibility [get]
func (h *TaskHandler) Eligibility(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.uc.CanCreate(stdCtx, userID, pathParam(ctx, "chat"))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, result)
}

// @Summary Get task
// @Tags tasks
// @Router /api/v1/tasks/{id} [get]
func (h *TaskHandler) Get(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.GetTask(stdCtx, pathParam(ctx, "id"), userID)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Complete or cancel a task
// @Tags tasks
// @Router /api/v1/tasks/{id}/status [put]
func (h *TaskHandler) UpdateStatus(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	var req transport.UpdateStatusRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	status, err := domain.ParseTaskStatus(req.Status)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	updated, err := h.uc.UpdateStatus(stdCtx, pathParam(ctx, "id"), userID, status)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, updated)
}

// @Summary Delete task
// @Tags tasks
// @Router /api/v1/tasks/{id} [delete]
func (h *TaskHandler) Delete(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.DeleteTask(stdCtx, pathParam(ctx, "id"), userID); err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	ctx.SetStatusCode(http.StatusNoContent)
}

func weekMeta(week weekclock.Week) transport.WeekMeta {
	return transport.WeekMeta{Week: week.Number, Year: week.Year}
}
