package booking

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"

	"ragchat/internal/apperr"
	"ragchat/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Create accepts JSON or form fields (name, email, date, time).
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(1 << 20); err != nil && err != http.ErrNotMultipart {
			h.writeError(r.Context(), w, string(apperr.CodeRequestInvalid), "invalid form body", http.StatusBadRequest)
			return
		}
		req = CreateRequest{
			Name:  r.FormValue("name"),
			Email: r.FormValue("email"),
			Date:  r.FormValue("date"),
			Time:  r.FormValue("time"),
		}
	default:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(r.Context(), w, string(apperr.CodeRequestInvalid), err.Error(), http.StatusBadRequest)
			return
		}
	}

	b, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": b}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.service.List(r.Context())
	if err != nil {
		h.fail(r.Context(), w, err)
		return
	}

	if bookings == nil {
		bookings = []Booking{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": bookings,
		"meta": map[string]int{"count": len(bookings)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "booking request failed", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	h.writeError(ctx, w, string(apperr.CodeOf(err)), err.Error(), status)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
