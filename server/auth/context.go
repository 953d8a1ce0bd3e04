package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/familycal/internal/errors"
	"github.com/hrygo/familycal/internal/observability"
)

type contextKey int

const actorContextKey contextKey = iota

// SetActorInContext returns a context carrying actor.
func SetActorInContext(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// GetActor returns the actor stored in ctx.
func GetActor(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(Actor)
	return actor, ok && actor.UserID != 0
}

// RequireActor returns the actor in ctx or an AUTHENTICATION_REQUIRED error.
func RequireActor(ctx context.Context) (Actor, error) {
	actor, ok := GetActor(ctx)
	if !ok {
		return Actor{}, errors.AuthenticationRequired("no authenticated actor")
	}
	return actor, nil
}

// Middleware authenticates bearer tokens. Requests without a valid token are
// rejected with 401. On success the actor and a request logging context are
// attached to the request context.
func Middleware(secret string) echo.MiddlewareFunc {
	key := []byte(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"code": string(errors.ErrCodeAuthenticationRequired), "message": "authentication required"})
			}
			actor, err := ParseAccessToken(token, key)
			if err != nil {
				observability.Logger(c.Request().Context()).Debug("rejecting access token", "error", err)
				return c.JSON(http.StatusUnauthorized, map[string]string{"code": string(errors.ErrCodeAuthenticationRequired), "message": "authentication required"})
			}

			ctx := SetActorInContext(c.Request().Context(), actor)
			reqCtx := observability.NewRequestContextWithID(nil, c.Response().Header().Get(echo.HeaderXRequestID), "api", actor.UserID)
			if actor.FamilyID != nil {
				reqCtx.FamilyID = *actor.FamilyID
			}
			ctx = observability.WithRequestContext(ctx, reqCtx)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
