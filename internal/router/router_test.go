package router

import (
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/weeklytasks/internal/middleware"
)

const secret = "router-secret"

func bearer(t *testing.T, userID string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": userID}).SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func serve(handler fasthttp.RequestHandler, method, path, auth string) int {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if auth != "" {
		ctx.Request.Header.Set("Authorization", auth)
	}
	handler(ctx)
	return ctx.Response.StatusCode()
}

func TestRouter_GuardsServiceRoutes(t *testing.T) {
	metricsCalled := false
	r := New(Handlers{
		Metrics: func(ctx *fasthttp.RequestCtx) { metricsCalled = true },
	},
		middleware.JWTAuth(secret, "", nil),
		middleware.RequireUsers([]string{"gateway"}, nil),
	)
	handler := r.Handler

	assert.Equal(t, fasthttp.StatusUnauthorized, serve(handler, "GET", "/api/v1/chats/c1/tasks", ""))
	assert.Equal(t, fasthttp.StatusUnauthorized, serve(handler, "POST", "/api/v1/chat/events", ""))
	assert.Equal(t, fasthttp.StatusForbidden, serve(handler, "POST", "/api/v1/chat/events", bearer(t, "alice")))
	assert.Equal(t, fasthttp.StatusForbidden, serve(handler, "GET", "/api/v1/admin/schedule", bearer(t, "alice")))
	assert.Equal(t, fasthttp.StatusNotFound, serve(handler, "GET", "/api/v1/unknown", ""))

	serve(handler, "GET", "/metrics", "")
	assert.True(t, metricsCalled)
}
