package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/shortlink/internal/app/service"
	"github.com/atinyakov/shortlink/internal/models"
)

type PostHandler struct {
	service service.URLServiceIface
	logger  *zap.Logger
}

func NewPost(s service.URLServiceIface, l *zap.Logger) *PostHandler {
	return &PostHandler{
		service: s,
		logger:  l,
	}
}

// Shorten handles POST /shorten.
func (h *PostHandler) Shorten(res http.ResponseWriter, req *http.Request) {
	var request models.ShortenRequest

	if err := decodeJSONBody(res, req, &request); err != nil {
		var mr *malformedRequest
		if errors.As(err, &mr) {
			http.Error(res, mr.msg, mr.status)
			return
		}

		h.logger.Error("cannot decode request", zap.Error(err))
		http.Error(res, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if request.URL == "" {
		http.Error(res, "url is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
	defer cancel()

	short, err := h.service.Shorten(ctx, request)
	if err != nil {
		h.logger.Info("shorten rejected", zap.String("url", request.URL), zap.Error(err))
		writeError(res, h.logger, err)
		return
	}

	writeJSON(res, http.StatusCreated, models.ShortenResponse{ShortURL: short})
}
