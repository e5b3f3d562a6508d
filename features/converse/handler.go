package converse

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"ragchat/internal/apperr"
	"ragchat/internal/conversation"
	"ragchat/internal/middleware"
	"ragchat/internal/retrieval"
	"ragchat/internal/validate"
)

type Service interface {
	Converse(ctx context.Context, req retrieval.Request) (*retrieval.Result, error)
	History(ctx context.Context, id string) ([]conversation.Message, error)
	Clear(ctx context.Context, id string) error
}

// Request is accepted as JSON or as form fields. Temperature is accepted for
// compatibility only; generation runs at a fixed temperature.
type Request struct {
	UserMessage    string   `json:"user_message" validate:"required"`
	ConversationID string   `json:"conversation_id" validate:"omitempty,max=128"`
	TopK           int      `json:"top_k" validate:"gte=0,lte=50"`
	Temperature    *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
}

type Response struct {
	ConversationID   string   `json:"conversation_id"`
	AssistantMessage string   `json:"assistant_message"`
	RetrievedChunks  []string `json:"retrieved_chunks"`
	Metadata         Metadata `json:"metadata"`
}

type Metadata struct {
	Scores  []float32 `json:"scores"`
	Sources []string  `json:"sources"`
}

type Handler struct {
	service  Service
	validate *validate.Validator
}

func NewHandler(s Service, v *validate.Validator) *Handler {
	if v == nil {
		v = validate.New()
	}
	return &Handler{service: s, validate: v}
}

func (h *Handler) Converse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := decodeRequest(r)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	req.UserMessage = strings.TrimSpace(req.UserMessage)
	if err := h.validate.Struct(req); err != nil {
		h.fail(ctx, w, err)
		return
	}

	res, err := h.service.Converse(ctx, retrieval.Request{
		Message:        req.UserMessage,
		ConversationID: req.ConversationID,
		TopK:           req.TopK,
	})
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	resp := Response{
		ConversationID:   res.ConversationID,
		AssistantMessage: res.Answer,
		RetrievedChunks:  make([]string, len(res.Chunks)),
		Metadata: Metadata{
			Scores:  make([]float32, len(res.Chunks)),
			Sources: make([]string, len(res.Chunks)),
		},
	}
	for i, c := range res.Chunks {
		resp.RetrievedChunks[i] = c.Text
		resp.Metadata.Scores[i] = c.Score
		resp.Metadata.Sources[i] = c.Source
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{"data": resp})
}

func (h *Handler) GetMemory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	msgs, err := h.service.History(ctx, id)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"data": msgs,
		"meta": map[string]interface{}{"conversation_id": id, "count": len(msgs)},
	})
}

func (h *Handler) ClearMemory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Clear(ctx, r.PathValue("id")); err != nil {
		h.fail(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeRequest(r *http.Request) (Request, error) {
	var req Request

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(1 << 20); err != nil && err != http.ErrNotMultipart {
			return req, apperr.Wrap(err, apperr.CodeRequestInvalid, "invalid form body")
		}
		req.UserMessage = r.FormValue("user_message")
		req.ConversationID = r.FormValue("conversation_id")
		if raw := strings.TrimSpace(r.FormValue("top_k")); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return req, apperr.New(apperr.CodeRequestInvalid, "top_k must be an integer")
			}
			req.TopK = n
		}
		if raw := strings.TrimSpace(r.FormValue("temperature")); raw != "" {
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return req, apperr.New(apperr.CodeRequestInvalid, "temperature must be a number")
			}
			req.Temperature = &f
		}
	default:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, apperr.Wrap(err, apperr.CodeRequestInvalid, "invalid JSON body")
		}
	}
	return req, nil
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	code := string(apperr.CodeOf(err))
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "converse request failed", "error", err, "code", code, "retryable", apperr.IsRetryable(err))
	}
	if apperr.IsNotFound(err) {
		msg = "Conversation not found"
	}
	if status == http.StatusInternalServerError {
		code, msg = "INTERNAL_ERROR", "Internal Server Error"
	}

	h.writeJSON(ctx, w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":      code,
			"message":   msg,
			"retryable": apperr.IsRetryable(err),
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	})
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
