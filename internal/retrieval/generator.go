package retrieval

import (
	"context"
	"errors"

	"ragchat/internal/apperr"
)

const (
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 512
)

type GenerateRequest struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
}

type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GeneratorError classifies a failed generation call. A deadline hit on ctx
// becomes CodeGeneratorTimeout, anything else uncoded becomes
// CodeGeneratorUpstreamFailure. Already coded errors pass through.
func GeneratorError(ctx context.Context, err error, provider string) error {
	if err == nil || apperr.CodeOf(err) != "" {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(err, apperr.CodeGeneratorTimeout, "generation timed out", apperr.Field("provider", provider))
	}
	return apperr.Wrap(err, apperr.CodeGeneratorUpstreamFailure, "generation failed", apperr.Field("provider", provider))
}
