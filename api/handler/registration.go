package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/weeklytasks/api/transport"
	"github.com/fastygo/weeklytasks/pkg/httpcontext"
	registrationUC "github.com/fastygo/weeklytasks/usecase/registration"
)

type RegistrationHandler struct {
	baseHandler
	uc *registrationUC.UseCase
}

func NewRegistrationHandler(uc *registrationUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *RegistrationHandler {
	return &RegistrationHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Register the caller in a chat
// @Tags registration
// @Router /api/v1/register [post]
func (h *RegistrationHandler) Register(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	var req transport.RegisterRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.uc.Register(stdCtx, registrationUC.Request{
		UserID:      userID,
		DisplayName: req.DisplayName,
		ChatID:      req.ChatID,
		ChatKind:    req.ChatKind,
		ChatTitle:   req.ChatTitle,
	})
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, result)
}

// @Summary Leave a chat
// @Tags registration
// @Router /api/v1/chats/{chat}/membership [delete]
func (h *RegistrationHandler) Leave(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Deactivate(stdCtx, userID, pathParam(ctx, "chat")); err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	ctx.SetStatusCode(http.StatusNoContent)
}

// @Summary Active chat members
// @Tags registration
// @Router /api/v1/chats/{chat}/members [get]
func (h *RegistrationHandler) Members(ctx *fasthttp.RequestCtx) {
	if h.userID(ctx) == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	members, err := h.uc.ChatMembers(stdCtx, pathParam(ctx, "chat"))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, members)
}
