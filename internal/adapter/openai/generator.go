package openai

import (
	"context"
	"log/slog"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"ragchat/internal/apperr"
	"ragchat/internal/retrieval"
)

const defaultChatModel = "gpt-4o-mini"

type Generator struct {
	client openaisdk.Client
	model  string
}

func NewGenerator(cfg Config) (*Generator, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	model := cfg.ChatModel
	if model == "" {
		model = defaultChatModel
	}
	return &Generator{client: client, model: model}, nil
}

func (g *Generator) Generate(ctx context.Context, req retrieval.GenerateRequest) (string, error) {
	params := openaisdk.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.UserMessage(req.Prompt),
		},
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	params.Temperature = param.NewOpt(req.Temperature)

	res, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		slog.ErrorContext(ctx, "chat completion failed", "model", g.model, "error", err)
		return "", retrieval.GeneratorError(ctx, err, "openai")
	}
	if len(res.Choices) == 0 {
		return "", apperr.New(apperr.CodeGeneratorUpstreamFailure, "openai returned no choices", apperr.Field("model", g.model))
	}
	return strings.TrimSpace(res.Choices[0].Message.Content), nil
}
