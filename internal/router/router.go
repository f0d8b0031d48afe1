package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/weeklytasks/api/handler"
)

type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

type Handlers struct {
	Task         *apiHandler.TaskHandler
	Stats        *apiHandler.StatsHandler
	Registration *apiHandler.RegistrationHandler
	Chat         *apiHandler.ChatHandler
	Admin        *apiHandler.AdminHandler
	Health       *apiHandler.HealthHandler
	Metrics      fasthttp.RequestHandler
}

// New registers every route. auth binds the caller; service additionally
// restricts a route to trusted service principals and runs after auth.
func New(handlers Handlers, auth, service Middleware) *router.Router {
	r := router.New()
	internal := func(h fasthttp.RequestHandler) fasthttp.RequestHandler {
		return auth(service(h))
	}

	r.GET("/health", handlers.Health.Check)
	if handlers.Metrics != nil {
		r.GET("/metrics", handlers.Metrics)
	}

	// Caller-scoped routes
	r.POST("/api/v1/register", auth(handlers.Registration.Register))
	r.DELETE("/api/v1/chats/{chat}/membership", auth(handlers.Registration.Leave))
	r.GET("/api/v1/chats/{chat}/members", auth(handlers.Registration.Members))

	r.GET("/api/v1/chats/{chat}/tasks", auth(handlers.Task.ListCurrent))
	r.POST("/api/v1/chats/{chat}/tasks", auth(handlers.Task.Create))
	r.GET("/api/v1/chats/{chat}/tasks/eligibility", auth(handlers.Task.Eligibility))
	r.GET("/api/v1/chats/{chat}/tasks/weeks/{year}/{week}", auth(handlers.Task.ListWeek))
	r.GET("/api/v1/tasks/{id}", auth(handlers.Task.Get))
	r.PUT("/api/v1/tasks/{id}/status", auth(handlers.Task.UpdateStatus))
	r.DELETE("/api/v1/tasks/{id}", auth(handlers.Task.Delete))

	r.GET("/api/v1/chats/{chat}/stats", auth(handlers.Stats.Get))
	r.GET("/api/v1/chats/{chat}/summary", auth(handlers.Stats.Summary))
	r.GET("/api/v1/chats/{chat}/history", auth(handlers.Stats.History))
	r.GET("/api/v1/chats/{chat}/board", auth(handlers.Stats.Board))

	// Service routes
	r.POST("/api/v1/chat/events", internal(handlers.Chat.Event))
	r.POST("/api/v1/admin/triggers/{trigger}", internal(handlers.Admin.Fire))
	r.POST("/api/v1/admin/stats/{year}/{week}", internal(handlers.Admin.Regenerate))
	r.GET("/api/v1/admin/schedule", internal(handlers.Admin.Schedule))

	return r
}
