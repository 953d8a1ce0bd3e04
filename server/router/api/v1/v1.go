package v1

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/semaphore"

	"github.com/hrygo/familycal/internal/errors"
	"github.com/hrygo/familycal/internal/observability"
	"github.com/hrygo/familycal/internal/profile"
	"github.com/hrygo/familycal/server/auth"
	ratelimit "github.com/hrygo/familycal/server/middleware"
	"github.com/hrygo/familycal/server/service/calendar"
	"github.com/hrygo/familycal/store"
)

type APIV1Service struct {
	Profile  *profile.Profile
	Calendar *calendar.Service
	Metrics  *observability.Metrics

	limiter  *ratelimit.RateLimiter
	validate *validator.Validate
	// assistantSemaphore limits concurrent completion-service calls.
	assistantSemaphore *semaphore.Weighted
}

func NewAPIV1Service(profile *profile.Profile, calendarService *calendar.Service, metrics *observability.Metrics) *APIV1Service {
	concurrency := profile.AIConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &APIV1Service{
		Profile:            profile,
		Calendar:           calendarService,
		Metrics:            metrics,
		limiter:            ratelimit.NewRateLimiter(profile.RateLimitPerSecond, profile.RateLimitBurst),
		validate:           validator.New(),
		assistantSemaphore: semaphore.NewWeighted(int64(concurrency)),
	}
}

// RegisterRoutes registers the JSON API on echoServer.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	if s.Metrics != nil {
		echoServer.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))
	}

	api := echoServer.Group("/api/v1",
		middleware.CORS(),
		auth.Middleware(s.Profile.Secret),
		s.limiter.Middleware(ratelimit.ActorKey, respondError),
	)

	api.POST("/assistant/messages", s.SendMessage)
	api.POST("/assistant/extract", s.ExtractEvents)

	api.GET("/events", s.ListEvents)
	api.POST("/events", s.CreateEvent)
	api.GET("/events/search", s.SearchEvents)
	api.GET("/events/export.ics", s.ExportEvents)
	api.GET("/events/:id", s.GetEvent)
	api.PUT("/events/:id", s.UpdateEvent)
	api.DELETE("/events/:id", s.DeleteEvent)
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError writes err as an ErrorResponse with the status its code maps to.
// Errors without a code are logged and reported as internal.
func respondError(c echo.Context, err error) error {
	var aiErr *errors.AIError
	if !stderrors.As(err, &aiErr) {
		observability.Logger(c.Request().Context()).Error("request failed", slog.String("error", err.Error()))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: string(errors.ErrCodeInternal), Message: "internal error"})
	}
	status := errors.HTTPStatus(aiErr.Code)
	if status >= http.StatusInternalServerError {
		observability.Logger(c.Request().Context()).Error("request failed",
			slog.String(observability.LogFieldErrorCode, string(aiErr.Code)),
			slog.String("error", err.Error()),
		)
	}
	return c.JSON(status, ErrorResponse{Code: string(aiErr.Code), Message: aiErr.Message})
}

// bindRequest decodes the JSON body into req and checks its validate tags.
func (s *APIV1Service) bindRequest(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return errors.InvalidArgument("malformed request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return errors.InvalidArgument(err.Error())
	}
	return nil
}

func actorScope(c echo.Context) (store.OwnerScope, error) {
	actor, err := auth.RequireActor(c.Request().Context())
	if err != nil {
		return store.OwnerScope{}, err
	}
	return actor.Scope(), nil
}

func eventIDParam(c echo.Context) (int32, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil || id <= 0 {
		return 0, errors.InvalidArgument("invalid event id")
	}
	return int32(id), nil
}
