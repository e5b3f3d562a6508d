// Package stats reports what the backend currently holds: uploaded documents,
// interview bookings and indexed chunks, plus how ingestion treats the index.
package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"ragchat/internal/apperr"
	"ragchat/internal/middleware"
)

type Counter interface {
	Count(ctx context.Context) (int, error)
}

type CollectionCounter interface {
	Count(ctx context.Context, collection string) (int, error)
}

// Options name the collection being counted and the ingest mode ("replace"
// or "append") reported next to the counts.
type Options struct {
	Collection string
	Mode       string
}

type Handler struct {
	documents Counter
	bookings  Counter
	index     CollectionCounter
	opts      Options
}

func NewHandler(documents, bookings Counter, index CollectionCounter, opts Options) *Handler {
	return &Handler{documents: documents, bookings: bookings, index: index, opts: opts}
}

type Snapshot struct {
	Collection    string `json:"collection"`
	Mode          string `json:"mode"`
	Documents     int    `json:"documents"`
	Bookings      int    `json:"bookings"`
	IndexedChunks int    `json:"indexed_chunks"`
}

// Collect runs the three counts concurrently and fails on the first error.
func (h *Handler) Collect(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Collection: h.opts.Collection, Mode: h.opts.Mode}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := h.documents.Count(gctx)
		if err != nil {
			return apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "counting documents")
		}
		snap.Documents = n
		return nil
	})
	g.Go(func() error {
		n, err := h.bookings.Count(gctx)
		if err != nil {
			return apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "counting bookings")
		}
		snap.Bookings = n
		return nil
	})
	g.Go(func() error {
		n, err := h.index.Count(gctx, h.opts.Collection)
		if err != nil {
			return apperr.Wrap(err, apperr.CodeIndexUpstreamFailure, "counting indexed chunks", apperr.Field("collection", h.opts.Collection))
		}
		snap.IndexedChunks = n
		return nil
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := h.Collect(ctx)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	slog.DebugContext(ctx, "stats collected",
		"collection", snap.Collection, "documents", snap.Documents, "indexed_chunks", snap.IndexedChunks)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": snap}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// fail hides storage details behind INTERNAL_ERROR but passes an unreachable
// index through as a 502 with its code.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	slog.ErrorContext(ctx, "stats request failed", "error", err, "code", apperr.CodeOf(err))
	if status == http.StatusInternalServerError {
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", status)
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
