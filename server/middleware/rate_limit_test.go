package middleware

import (
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/familycal/internal/errors"
	"github.com/hrygo/familycal/server/auth"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	// keys are independent
	assert.True(t, rl.Allow("b"))
}

func TestRateLimiterEvictsIdleKeys(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	clock := time.Date(2025, 3, 19, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	clock = clock.Add(DefaultIdleTTL / 2)
	assert.True(t, rl.Allow("b"))
	assert.Len(t, rl.limits, 2)

	clock = clock.Add(DefaultIdleTTL/2 + time.Second)
	assert.True(t, rl.Allow("c"))
	assert.Len(t, rl.limits, 2)
	assert.NotContains(t, rl.limits, "a")

	// an evicted key starts with a fresh bucket
	assert.True(t, rl.Allow("a"))
}

func TestRateLimiterMiddleware(t *testing.T) {
	e := echo.New()
	rl := NewRateLimiter(0.001, 1)
	respond := func(c echo.Context, err error) error {
		var aiErr *errors.AIError
		require.True(t, stderrors.As(err, &aiErr))
		return c.JSON(errors.HTTPStatus(aiErr.Code), map[string]string{"code": string(aiErr.Code)})
	}
	handler := rl.Middleware(ActorKey, respond)(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	call := func(userID int32) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(auth.SetActorInContext(req.Context(), auth.Actor{UserID: userID}))
		rec := httptest.NewRecorder()
		require.NoError(t, handler(e.NewContext(req, rec)))
		return rec
	}

	assert.Equal(t, http.StatusNoContent, call(1).Code)
	limited := call(1)
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Contains(t, limited.Body.String(), string(errors.ErrCodeRateLimitExceeded))
	assert.Equal(t, http.StatusNoContent, call(2).Code)
}

func TestActorKeyFallsBackToIP(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "ip:10.0.0.1", ActorKey(e.NewContext(req, httptest.NewRecorder())))
}
