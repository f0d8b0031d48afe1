package middleware

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/weeklytasks/pkg/httpcontext"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func runAuth(header string, spoofed string) (*fasthttp.RequestCtx, string, bool) {
	var seen string
	called := false
	handler := JWTAuth(testSecret, "weeklytasks", nil)(func(ctx *fasthttp.RequestCtx) {
		called = true
		seen = httpcontext.UserID(ctx)
	})

	ctx := &fasthttp.RequestCtx{}
	if header != "" {
		ctx.Request.Header.Set("Authorization", header)
	}
	if spoofed != "" {
		ctx.Request.Header.Set(httpcontext.UserIDHeader, spoofed)
	}
	handler(ctx)
	return ctx, seen, called
}

func TestJWTAuth_BindsUserID(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"user_id": "u-42",
		"iss":     "weeklytasks",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	_, seen, called := runAuth("Bearer "+token, "intruder")
	require.True(t, called)
	assert.Equal(t, "u-42", seen)
}

func TestJWTAuth_Rejects(t *testing.T) {
	cases := map[string]string{
		"missing header": "",
		"garbage":        "Bearer not-a-token",
		"expired": "Bearer " + signToken(t, jwt.MapClaims{
			"user_id": "u-42",
			"iss":     "weeklytasks",
			"exp":     time.Now().Add(-time.Hour).Unix(),
		}),
		"wrong issuer":  "Bearer " + signToken(t, jwt.MapClaims{"user_id": "u-42", "iss": "other"}),
		"missing claim": "Bearer " + signToken(t, jwt.MapClaims{"iss": "weeklytasks"}),
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			ctx, _, called := runAuth(header, "intruder")
			assert.False(t, called)
			assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
		})
	}
}

func TestRequireUsers(t *testing.T) {
	guard := RequireUsers([]string{"gateway"}, nil)
	run := func(userID string) (int, bool) {
		called := false
		ctx := &fasthttp.RequestCtx{}
		if userID != "" {
			ctx.Request.Header.Set(httpcontext.UserIDHeader, userID)
		}
		guard(func(ctx *fasthttp.RequestCtx) { called = true })(ctx)
		return ctx.Response.StatusCode(), called
	}

	_, called := run("gateway")
	assert.True(t, called)

	status, called := run("alice")
	assert.False(t, called)
	assert.Equal(t, fasthttp.StatusForbidden, status)

	_, called = run("")
	assert.False(t, called)

	called = false
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.Set(httpcontext.UserIDHeader, "gateway")
	RequireUsers(nil, nil)(func(ctx *fasthttp.RequestCtx) { called = true })(ctx)
	assert.False(t, called)
}
