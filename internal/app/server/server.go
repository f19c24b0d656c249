// Package server assembles the HTTP router.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/atinyakov/shortlink/internal/app/handler"
	"github.com/atinyakov/shortlink/internal/app/service"
	"github.com/atinyakov/shortlink/internal/middleware"
)

func Init(svc service.URLServiceIface, logger *zap.Logger) *chi.Mux {
	post := handler.NewPost(svc, logger)
	get := handler.NewGet(svc, logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.WithGzipRequest)
	r.Use(chimw.Compress(5, "application/json"))

	r.Get("/", get.Root)
	r.Get("/ping", get.PingDB)
	r.Post("/shorten", post.Shorten)
	r.Get("/info/{code}", get.Info)
	r.Get("/{code}", get.Redirect)

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Route not found", http.StatusNotFound)
	})

	return r
}
