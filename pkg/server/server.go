package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	eventshandler "github.com/de-tools/compliance-engine/pkg/handlers/events"
	mirrorshandler "github.com/de-tools/compliance-engine/pkg/handlers/mirrors"
	ruleshandler "github.com/de-tools/compliance-engine/pkg/handlers/rules"
	"github.com/de-tools/compliance-engine/pkg/metrics"
	enginemiddleware "github.com/de-tools/compliance-engine/pkg/server/middleware"
	"github.com/de-tools/compliance-engine/pkg/services/mirror"
)

const defaultShutdownTimeout = 10 * time.Second

type WebAPI struct {
	logger          *zerolog.Logger
	server          *http.Server
	shutdownTimeout time.Duration
}

type Dependencies struct {
	Invoker ruleshandler.Invoker
	// Events, Audits and Mirrors are optional. Their routes are only mounted when set.
	Events  eventshandler.EventQuery
	Audits  eventshandler.AuditQuery
	Mirrors mirror.Controller
	Metrics *metrics.Recorder
	Logger  zerolog.Logger
}

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Dependencies    Dependencies
}

func ConfigureRouter(config Config) http.Handler {
	deps := config.Dependencies
	rulesHandler := ruleshandler.NewHandler(deps.Invoker)

	router := chi.NewRouter()
	router.Use(enginemiddleware.Logger(&deps.Logger))
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/rules", rulesHandler.ListRules)
		r.Post("/rules/{rule}/invocations", rulesHandler.Invoke)

		if deps.Events != nil && deps.Audits != nil {
			eventsHandler := eventshandler.NewHandler(deps.Events, deps.Audits)
			r.Get("/events", eventsHandler.ListEvents)
			r.Get("/events/stats", eventsHandler.EventStats)
			r.Get("/audits", eventsHandler.ListAudits)
		}

		if deps.Mirrors != nil {
			mirrorsHandler := mirrorshandler.NewHandler(deps.Mirrors)
			r.Get("/mirrors", mirrorsHandler.ListMirrors)
			r.Put("/mirrors/{account}", mirrorsHandler.PutMirror)
			r.Delete("/mirrors/{account}", mirrorsHandler.DeleteMirror)
		}
	})

	return router
}

func NewWebAPI(config Config) *WebAPI {
	logger := config.Dependencies.Logger
	timeout := config.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	return &WebAPI{
		logger:          &logger,
		shutdownTimeout: timeout,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           ConfigureRouter(config),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (w *WebAPI) Start() error {
	serverErrors := make(chan error, 1)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-shutdown:
		w.logger.Info().Msg("shutdown initiated")

		// In-flight invocations get until the deadline to finish.
		ctx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
		defer cancel()

		err := w.server.Shutdown(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("graceful shutdown failed")
			err = w.server.Close()
		}

		if err != nil {
			return err
		}
	}

	return nil
}
