package api

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hilthontt/rendezvous/internal/infrastructure/configs"
	"github.com/hilthontt/rendezvous/internal/infrastructure/logging"
	"github.com/hilthontt/rendezvous/internal/infrastructure/metrics"
	"github.com/hilthontt/rendezvous/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/rendezvous/internal/infrastructure/ws"
	healthHandler "github.com/hilthontt/rendezvous/internal/presentation/handler/health"
	roomHandler "github.com/hilthontt/rendezvous/internal/presentation/handler/rooms"
	rtcHandler "github.com/hilthontt/rendezvous/internal/presentation/handler/rtc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const apiTimeout = 60 * time.Second

type Application struct {
	config        configs.Config
	core          *ws.Core
	roomHandler   *roomHandler.Handler
	healthHandler *healthHandler.Handler
	rtcHandler    *rtcHandler.Handler
	metrics       *metrics.Metrics
	logger        logging.Logger
	ratelimiter   ratelimiter.Limiter
}

// NewApplication wires the HTTP surface. A nil limiter disables HTTP rate
// limiting.
func NewApplication(
	config configs.Config,
	core *ws.Core,
	roomHandler *roomHandler.Handler,
	healthHandler *healthHandler.Handler,
	rtcHandler *rtcHandler.Handler,
	metrics *metrics.Metrics,
	logger logging.Logger,
	ratelimiter ratelimiter.Limiter,
) *Application {
	return &Application{
		config:        config,
		core:          core,
		roomHandler:   roomHandler,
		healthHandler: healthHandler,
		rtcHandler:    rtcHandler,
		metrics:       metrics,
		logger:        logger,
		ratelimiter:   ratelimiter,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(app.prometheusMiddleware)

	if app.ratelimiter != nil {
		r.Use(app.rateLimiterMiddleware)
	}
	r.Use(app.enableCors)

	// Long-lived sockets stay outside the request timeout and tracing wrappers.
	r.Get("/chat/rooms/{roomId}", app.roomHandler.JoinRoomHandler)

	r.Get("/configRTC", app.rtcHandler.GetConfig)
	r.Method(http.MethodGet, "/metrics", app.metrics.Handler())
	r.Method(http.MethodGet, "/debug/vars", expvar.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(apiTimeout))
		r.Use(otelhttp.NewMiddleware("rendezvous.api"))

		r.Get("/rooms/{roomId}", app.roomHandler.GetRoomHandler)
		r.Get("/rtc/config", app.rtcHandler.GetConfig)

		r.Get("/health", app.healthHandler.GetHealth)
		r.Get("/healthz", app.healthHandler.GetHealth)
		r.Get("/ready", app.healthHandler.GetHealth)
		r.Get("/live", app.healthHandler.GetHealth)
	})

	return r
}

// Run serves until SIGINT/SIGTERM, then stops accepting requests and closes
// every signaling connection with 1001.
func (app *Application) Run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         app.config.HTTP.Addr(),
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), app.config.HTTP.ShutdownTimeout)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "signal caught", map[logging.ExtraKey]any{
			logging.Reason: s.String(),
		})

		err := srv.Shutdown(ctx)
		app.core.Shutdown(ctx)
		shutdown <- err
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		logging.Address: srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		logging.Address: srv.Addr,
	})

	return nil
}
