package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/weeklytasks/api/chat"
	"github.com/fastygo/weeklytasks/pkg/httpcontext"
)

// ChatHandler receives events forwarded by the chat gateway.
type ChatHandler struct {
	baseHandler
	bot *chat.Bot
}

func NewChatHandler(bot *chat.Bot, adapter *httpcontext.Adapter, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		baseHandler: newBaseHandler(adapter, logger),
		bot:         bot,
	}
}

// @Summary Handle a chat event and return the reply to send
// @Tags chat
// @Router /api/v1/chat/events [post]
func (h *ChatHandler) Event(ctx *fasthttp.RequestCtx) {
	var ev chat.Event
	if !h.decode(ctx, &ev) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	reply, err := h.bot.Handle(stdCtx, ev)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, reply)
}
