package document

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ragchat/internal/apperr"
	"ragchat/internal/config"
	"ragchat/internal/middleware"
	"ragchat/internal/text"
	"ragchat/internal/vector"
	"ragchat/internal/worker"
)

type Options struct {
	Collection string
	Recreate   bool
	// Dimension, when set, is enforced against the embedder output.
	Dimension        int
	EmbedConcurrency int
}

type Upload struct {
	FileName string
	Size     int64
	Body     io.Reader
	Params   text.Params
}

type IngestResult struct {
	DocumentID  string `json:"document_id"`
	FileName    string `json:"filename"`
	TotalChunks int    `json:"total_chunks"`
	Size        string `json:"size"`
	Mode        string `json:"mode"`
}

type Service struct {
	repo     Repository
	embedder Embedder
	index    Indexer
	pub      EventPublisher
	opts     Options
}

// NewService wires ingestion. pub may be nil, in which case metadata is
// written to the repository synchronously.
func NewService(repo Repository, e Embedder, idx Indexer, pub EventPublisher, opts Options) *Service {
	if opts.EmbedConcurrency <= 0 {
		opts.EmbedConcurrency = 4
	}
	return &Service{repo: repo, embedder: e, index: idx, pub: pub, opts: opts}
}

func (s *Service) Mode() string {
	if s.opts.Recreate {
		return ModeReplace
	}
	return ModeAppend
}

// Ingest extracts, chunks, embeds and indexes one uploaded file. A document
// without text is not an error: it yields zero chunks and leaves the index
// untouched.
func (s *Service) Ingest(ctx context.Context, up Upload) (*IngestResult, error) {
	if err := up.Params.Validate(); err != nil {
		return nil, err
	}

	content, err := text.Extract(up.FileName, up.Body)
	if err != nil {
		return nil, err
	}

	chunks, err := text.Split(content, up.Params)
	if apperr.HasCode(err, apperr.CodeIngestContentEmpty) {
		slog.WarnContext(ctx, "document has no extractable text", "filename", up.FileName)
		chunks = nil
	} else if err != nil {
		return nil, err
	}

	if len(chunks) > 0 {
		if err := s.indexChunks(ctx, up.FileName, chunks); err != nil {
			return nil, err
		}
	}

	res := &IngestResult{
		DocumentID:  uuid.New().String(),
		FileName:    up.FileName,
		TotalChunks: len(chunks),
		Size:        FormatSize(up.Size),
		Mode:        s.Mode(),
	}

	s.record(ctx, worker.DocumentIngested{
		DocumentID:    res.DocumentID,
		FileName:      res.FileName,
		FileSize:      res.Size,
		TotalChunks:   res.TotalChunks,
		Strategy:      string(up.Params.Strategy),
		Mode:          res.Mode,
		Collection:    s.opts.Collection,
		UploadedAt:    time.Now().UTC(),
		CorrelationID: middleware.GetCorrelationID(ctx),
	})

	slog.InfoContext(ctx, "document ingested", "filename", up.FileName, "chunks", res.TotalChunks, "mode", res.Mode)
	return res, nil
}

func (s *Service) indexChunks(ctx context.Context, filename string, chunks []text.Chunk) error {
	vecs, err := s.embed(ctx, text.Texts(chunks))
	if err != nil {
		return err
	}

	dim := len(vecs[0])
	if s.opts.Dimension > 0 && dim != s.opts.Dimension {
		return apperr.New(apperr.CodeIndexDimensionInvalid,
			fmt.Sprintf("embedder returned dimension %d, configured %d", dim, s.opts.Dimension))
	}

	points := make([]vector.Point, len(chunks))
	for i, c := range chunks {
		points[i] = vector.Point{
			ID:         uuid.New().String(),
			Vector:     vecs[i],
			Text:       c.Text,
			Source:     filename,
			ChunkIndex: c.Index,
		}
	}

	spec := vector.CollectionSpec{Name: s.opts.Collection, Dimension: dim}
	if err := s.index.Populate(ctx, spec, s.opts.Recreate, points); err != nil {
		return apperr.Wrap(err, apperr.CodeIndexUpstreamFailure, "indexing chunks", apperr.Field("collection", spec.Name))
	}
	return nil
}

func (s *Service) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if be, ok := s.embedder.(BatchEmbedder); ok {
		vecs, err := be.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.CodeEmbedderUpstreamFailure, "embedding chunks")
		}
		if len(vecs) != len(texts) {
			return nil, apperr.New(apperr.CodeEmbedderUpstreamFailure,
				fmt.Sprintf("embedder returned %d vectors for %d chunks", len(vecs), len(texts)))
		}
		return vecs, nil
	}

	vecs := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.EmbedConcurrency)
	for i, t := range texts {
		g.Go(func() error {
			v, err := s.embedder.Embed(gctx, t)
			if err != nil {
				return err
			}
			vecs[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeEmbedderUpstreamFailure, "embedding chunks")
	}
	return vecs, nil
}

// record hands metadata to the event consumer, falling back to a direct
// write when no publisher is configured or publishing fails. Metadata
// failures never fail an ingestion that already reached the index.
func (s *Service) record(ctx context.Context, ev worker.DocumentIngested) {
	if s.pub != nil {
		payload, err := json.Marshal(ev)
		if err == nil {
			err = s.pub.Publish(config.TopicDocumentIngested, payload)
		}
		if err == nil {
			slog.InfoContext(ctx, "published document.ingested event", "document_id", ev.DocumentID)
			return
		}
		slog.ErrorContext(ctx, "failed to publish document.ingested event", "error",
			apperr.Wrap(err, apperr.CodeEventPublishFailure, "publishing document.ingested"))
	}

	if err := s.repo.SaveIngested(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "failed to save document metadata", "error", err, "document_id", ev.DocumentID)
	}
}

func (s *Service) List(ctx context.Context) ([]Document, error) {
	docs, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeStorageDatabaseFailure, "listing documents")
	}
	return docs, nil
}
