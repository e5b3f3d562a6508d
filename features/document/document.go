package document

import (
	"context"
	"fmt"
	"time"

	"ragchat/internal/vector"
	"ragchat/internal/worker"
)

const (
	ModeReplace = "replace"
	ModeAppend  = "append"
)

type Document struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	FileSize    string    `json:"file_size"`
	TotalChunks int       `json:"total_chunks"`
	Strategy    string    `json:"strategy"`
	Mode        string    `json:"mode"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

type Repository interface {
	SaveIngested(ctx context.Context, ev worker.DocumentIngested) error
	List(ctx context.Context) ([]Document, error)
	Count(ctx context.Context) (int, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder is used instead of per-chunk Embed calls when the provider
// supports it.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Indexer interface {
	Populate(ctx context.Context, spec vector.CollectionSpec, recreate bool, points []vector.Point) error
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// FormatSize renders a byte count the way upload responses report it.
func FormatSize(n int64) string {
	return fmt.Sprintf("%.2fKiB", float64(n)/1024)
}
