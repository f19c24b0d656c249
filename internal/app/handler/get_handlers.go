package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/shortlink/internal/app/service"
	"github.com/atinyakov/shortlink/internal/models"
)

type GetHandler struct {
	service service.URLServiceIface
	logger  *zap.Logger
}

func NewGet(s service.URLServiceIface, l *zap.Logger) *GetHandler {
	return &GetHandler{
		service: s,
		logger:  l,
	}
}

// Redirect handles GET /{code}.
func (h *GetHandler) Redirect(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
	defer cancel()

	code := chi.URLParam(req, "code")

	long, err := h.service.Resolve(ctx, code)
	if err != nil {
		writeError(res, h.logger, err)
		return
	}

	res.Header().Set("Location", long)
	res.WriteHeader(http.StatusFound)
}

// Info handles GET /info/{code}.
func (h *GetHandler) Info(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
	defer cancel()

	info, err := h.service.Info(ctx, chi.URLParam(req, "code"))
	if err != nil {
		writeError(res, h.logger, err)
		return
	}

	writeJSON(res, http.StatusOK, info)
}

func (h *GetHandler) PingDB(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
	defer cancel()

	if err := h.service.PingContext(ctx); err != nil {
		h.logger.Error("store ping failed", zap.Error(err))
		http.Error(res, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	res.WriteHeader(http.StatusOK)
}

func (h *GetHandler) Root(res http.ResponseWriter, _ *http.Request) {
	writeJSON(res, http.StatusOK, models.Message{Message: "link shortener is running"})
}
