package document

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"ragchat/internal/apperr"
	"ragchat/internal/middleware"
	"ragchat/internal/text"
)

type Handler struct {
	service       *Service
	maxUploadSize int64
}

func NewHandler(service *Service, maxUploadSizeMB int) *Handler {
	if maxUploadSizeMB <= 0 {
		maxUploadSizeMB = 50
	}
	return &Handler{service: service, maxUploadSize: int64(maxUploadSizeMB) << 20}
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.writeError(r.Context(), w, "BAD_REQUEST", "Invalid multipart form or file too large", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(r.Context(), w, "BAD_REQUEST", "Unable to retrieve file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	params, err := paramsFromForm(r)
	if err != nil {
		h.fail(r.Context(), w, err)
		return
	}

	res, err := h.service.Ingest(r.Context(), Upload{
		FileName: header.Filename,
		Size:     header.Size,
		Body:     file,
		Params:   params,
	})
	if err != nil {
		h.fail(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": res}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.List(r.Context())
	if err != nil {
		h.fail(r.Context(), w, err)
		return
	}

	// Ensure we return [] instead of null for empty list
	if docs == nil {
		docs = []Document{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": docs,
		"meta": map[string]int{"count": len(docs)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// paramsFromForm applies the form defaults: strategy fixed, chunk_size 500,
// overlap 0, delimiter "\n\n".
func paramsFromForm(r *http.Request) (text.Params, error) {
	p := text.DefaultParams()

	strategy, err := text.ParseStrategy(r.FormValue("strategy"))
	if err != nil {
		return p, err
	}
	p.Strategy = strategy

	if p.ChunkSize, err = formInt(r, "chunk_size", p.ChunkSize); err != nil {
		return p, err
	}
	if p.Overlap, err = formInt(r, "overlap", p.Overlap); err != nil {
		return p, err
	}
	if _, ok := r.MultipartForm.Value["delimiter"]; ok {
		p.Delimiter = unescapeDelimiter(r.FormValue("delimiter"))
	}
	return p, p.Validate()
}

func formInt(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.New(apperr.CodeIngestParamsInvalid, key+" must be an integer", apperr.Field(key, raw))
	}
	return n, nil
}

// unescapeDelimiter turns the literal sequences \n, \r and \t, as typed into
// a form field, into the characters they name.
func unescapeDelimiter(s string) string {
	return strings.NewReplacer(`\n`, "\n", `\r`, "\r", `\t`, "\t").Replace(s)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	code := string(apperr.CodeOf(err))
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "document request failed", "error", err, "code", code)
	}
	if status == http.StatusInternalServerError {
		code, msg = "INTERNAL_ERROR", "Internal Server Error"
	}
	h.writeError(ctx, w, code, msg, status)
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
