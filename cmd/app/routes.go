package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"valutatradehub/internal/api"
	"valutatradehub/internal/api/middleware"
	"valutatradehub/internal/service"
)

func (app *App) initHTTP(svc *service.ParserService) {
	r := chi.NewRouter()

	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLoggingMiddleware(app.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", api.HandleHealthz())
	r.Get("/readyz", api.HandleReadyz(app.db, app.rdbCache))

	defaultInterval := time.Duration(app.cfg.Scheduler.IntervalSec) * time.Second

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/rates", func(r chi.Router) {
			r.Get("/", api.HandleListRates(svc))
			r.Get("/{code}", api.HandleGetRate(svc))
			r.Get("/{code}/history", api.HandleGetHistory(svc))
		})

		r.Route("/parser", func(r chi.Router) {
			r.Post("/update", api.HandleTriggerUpdate(svc))
			r.Post("/start", api.HandleStartAutoUpdate(svc, defaultInterval))
			r.Post("/stop", api.HandleStopAutoUpdate(svc))
			r.Get("/status", api.HandleParserStatus(svc))
		})
	})

	if app.cfg.Server.ServeSwagger {
		// The wildcard serves both the UI and /swagger/doc.json.
		r.Get("/swagger/*", api.SwaggerUIHandler())
		r.Get("/openapi.json", api.OpenAPISpecHandler())
		r.Get("/swagger", http.RedirectHandler("/swagger/index.html", http.StatusMovedPermanently).ServeHTTP)
	}

	app.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
