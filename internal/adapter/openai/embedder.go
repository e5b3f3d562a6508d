package openai

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	openaisdk "github.com/openai/openai-go"

	"ragchat/internal/apperr"
)

const defaultEmbedModel = "text-embedding-3-small"

type Embedder struct {
	client openaisdk.Client
	model  string
}

func NewEmbedder(cfg Config) (*Embedder, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	model := cfg.EmbedModel
	if model == "" {
		model = defaultEmbedModel
	}
	return &Embedder{client: client, model: model}, nil
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request; the result is index-aligned with texts.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	slog.DebugContext(ctx, "embedding batch", "model", e.model, "count", len(texts))

	res, err := e.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openaisdk.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeEmbedderUpstreamFailure, "openai embeddings request", apperr.Field("model", e.model))
	}
	if len(res.Data) != len(texts) {
		return nil, apperr.New(apperr.CodeEmbedderUpstreamFailure,
			fmt.Sprintf("openai returned %d embeddings for %d inputs", len(res.Data), len(texts)))
	}

	sort.Slice(res.Data, func(i, j int) bool { return res.Data[i].Index < res.Data[j].Index })

	out := make([][]float32, len(res.Data))
	for i, d := range res.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}
