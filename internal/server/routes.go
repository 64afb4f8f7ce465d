package server

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/messenger/internal/config"
)

// SetupRoutes builds the echo instance with every application route. Routes answer
// any HTTP method; unmatched paths fall through to the bootstrap page.
func SetupRoutes(h *Handlers, cfg *config.Config, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(requestLogger(log))
	e.Use(responseDelay(cfg.Server.ResponseDelay))
	if cfg.Server.StaticDir != "" {
		e.Use(middleware.Static(cfg.Server.StaticDir))
	}

	e.Any("/ws", h.WebSocket)
	e.Any("/healthz", h.Health)

	e.Any("/channel/create/:channelID/:name/:participants", h.CreateChannel)
	e.Any("/channel/:id", h.GetChannel)
	e.Any("/user/activeChannel/:userID/:channelID", h.SetActiveChannel)
	e.Any("/user/:id", h.GetUser)
	e.Any("/status/:id/:status", h.SetStatus)
	e.Any("/input/submit/:userID/:channelID/:messageID/:input", h.PostMessage)

	e.Any("/", h.Bootstrap)
	e.Any("/*", h.Bootstrap)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			event := log.Debug()
			if v.Error != nil {
				event = log.Warn().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	})
}

// responseDelay holds each HTTP request back by d before handling it. The
// live-update socket is never delayed.
func responseDelay(d time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if d <= 0 || c.Path() == "/ws" {
				return next(c)
			}

			timer := time.NewTimer(d)
			defer timer.Stop()

			select {
			case <-timer.C:
				return next(c)
			case <-c.Request().Context().Done():
				return c.Request().Context().Err()
			}
		}
	}
}
