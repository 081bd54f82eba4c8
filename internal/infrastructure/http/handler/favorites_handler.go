package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mrops-br/storefront-api/internal/app/dto"
	"github.com/mrops-br/storefront-api/internal/app/service"
	"github.com/mrops-br/storefront-api/internal/domain"
	"github.com/mrops-br/storefront-api/internal/infrastructure/http/response"
)

const keepAliveInterval = 25 * time.Second

// FavoritesHandler handles HTTP requests for the wishlist
type FavoritesHandler struct {
	service *service.FavoritesService
	logger  *slog.Logger
}

// NewFavoritesHandler creates a new favorites handler
func NewFavoritesHandler(service *service.FavoritesService, logger *slog.Logger) *FavoritesHandler {
	return &FavoritesHandler{
		service: service,
		logger:  logger,
	}
}

// ListFavorites handles GET /favorites
func (h *FavoritesHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.service.Favorites(r.Context()))
}

// Count handles GET /favorites/count
func (h *FavoritesHandler) Count(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, dto.CountResponse{Count: h.service.Count(r.Context())})
}

// Toggle handles POST /favorites/{id}/toggle
func (h *FavoritesHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.service.ToggleFavorite(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidProductID):
			response.Error(w, http.StatusBadRequest, err)
		case errors.Is(err, domain.ErrStorageRead):
			response.Error(w, http.StatusServiceUnavailable, domain.ErrStorageRead)
		default:
			response.Error(w, http.StatusInternalServerError, domain.ErrStorageWrite)
		}
		return
	}

	response.JSON(w, http.StatusOK, result)
}

// Events handles GET /favorites/events, a server-sent event stream of the
// favorites count. The current count is sent first, then one event per change.
func (h *FavoritesHandler) Events(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	events, cancel := h.service.Subscribe(r.Context())
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeCountEvent(w, h.service.Count(r.Context())); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.logger.ErrorContext(r.Context(), "Streaming not supported by response writer",
			slog.String("error", err.Error()),
		)
		return
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.DebugContext(r.Context(), "Favorites event stream closed by client")
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeCountEvent(w, ev.Count); err != nil {
				return
			}

		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}

		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeCountEvent(w http.ResponseWriter, count int) error {
	data, err := json.Marshal(dto.CountResponse{Count: count})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: count\ndata: %s\n\n", data)
	return err
}
