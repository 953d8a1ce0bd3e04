package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/familycal/internal/observability"
	"github.com/hrygo/familycal/internal/profile"
	"github.com/hrygo/familycal/plugin/ai"
	"github.com/hrygo/familycal/plugin/ai/aitime"
	apiv1 "github.com/hrygo/familycal/server/router/api/v1"
	"github.com/hrygo/familycal/server/service/calendar"
	"github.com/hrygo/familycal/store"
)

type Server struct {
	Profile  *profile.Profile
	Store    *store.Store
	Calendar *calendar.Service

	echoServer *echo.Echo
}

// NewServer wires the calendar service and HTTP API. The assistant is left
// disabled, with a warning, when no completion service can be configured.
func NewServer(_ context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	llm, err := newLLMService(profile)
	if err != nil {
		return nil, err
	}
	metrics := observability.GlobalMetrics()
	times := aitime.NewService(profile.Timezone, profile.DateFallback)
	calendarService := calendar.NewService(store, llm, times, profile, metrics)

	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.RequestID())
	echoServer.Use(middleware.Recover())
	echoServer.Use(requestMetrics(metrics))

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})
	apiv1.NewAPIV1Service(profile, calendarService, metrics).RegisterRoutes(echoServer)

	return &Server{
		Profile:    profile,
		Store:      store,
		Calendar:   calendarService,
		echoServer: echoServer,
	}, nil
}

func newLLMService(profile *profile.Profile) (ai.LLMService, error) {
	if !profile.AIEnabled {
		return nil, nil
	}
	cfg := ai.NewConfigFromProfile(profile)
	if !cfg.Enabled {
		slog.Warn("assistant enabled without a completion endpoint, chat is disabled",
			slog.String("provider", profile.AILLMProvider))
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid assistant configuration")
	}
	llm, err := ai.NewLLMService(&cfg.LLM)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create completion service")
	}
	return llm, nil
}

func (s *Server) Start(_ context.Context) error {
	address := net.JoinHostPort(s.Profile.Addr, fmt.Sprintf("%d", s.Profile.Port))
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	s.echoServer.Listener = listener

	go func() {
		if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start echo server", slog.String("error", err.Error()))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("server shutting down")
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", slog.String("error", err.Error()))
	}
	slog.Info("server stopped properly")
}

// requestMetrics records the latency of every routed request.
func requestMetrics(metrics *observability.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.RecordRequest(route, c.Response().Status, time.Since(start))
			return nil
		}
	}
}
