package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"ragchat/internal/middleware"
)

// MetadataConsumer persists document metadata announced on the
// document.ingested topic.
type MetadataConsumer struct {
	store MetadataStore
}

func NewMetadataConsumer(s MetadataStore) *MetadataConsumer {
	return &MetadataConsumer{store: s}
}

func (h *MetadataConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var ev DocumentIngested
	err := json.Unmarshal(m.Body, &ev)

	correlationID := ev.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	ctx := middleware.WithCorrelationID(context.Background(), correlationID)

	if err != nil {
		slog.ErrorContext(ctx, "invalid message format", "error", err)
		return nil // Don't retry invalid messages
	}

	if ev.DocumentID == "" || ev.FileName == "" {
		slog.ErrorContext(ctx, "missing required fields, dropping", "document_id", ev.DocumentID, "file_name", ev.FileName)
		return nil
	}

	if err := h.store.SaveIngested(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "failed to save document metadata", "error", err, "document_id", ev.DocumentID)
		return err // requeue; the insert is idempotent on document_id
	}

	slog.InfoContext(ctx, "document metadata saved", "document_id", ev.DocumentID, "file_name", ev.FileName, "chunks", ev.TotalChunks)
	return nil
}
