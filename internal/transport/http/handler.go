package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
)

type RoomReader interface {
	GetRoom(ctx context.Context, roomID string) (domain.RoomInfo, error)
	Stats() domain.RegistryStats
}

type Handler struct {
	rooms RoomReader
}

func NewHandler(rooms RoomReader) *Handler {
	return &Handler{rooms: rooms}
}

// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// GET /stats
func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	httputil.OK(w, h.rooms.Stats())
}

// GET /rooms/{id}
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	room, err := h.rooms.GetRoom(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.OK(w, room)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "handler failed", "path", r.URL.Path, "err", err)
	}
	httputil.Error(r.Context(), w, status, errorMessage(err, status), nil)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotCreator):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrCapacity):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrDuplicateOrigin):
		return http.StatusConflict
	case errors.Is(err, domain.ErrCooldown), errors.Is(err, domain.ErrMessageTooLong):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(err error, status int) string {
	if status >= http.StatusInternalServerError && !errors.Is(err, domain.ErrCapacity) {
		return "internal error"
	}
	if errors.Is(err, domain.ErrRoomNotFound) {
		return "room not found"
	}
	return err.Error()
}
