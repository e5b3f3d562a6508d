package document_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"ragchat/features/document"
	"ragchat/internal/vector"
	"ragchat/internal/worker"
)

type MockRepo struct{ mock.Mock }

func (m *MockRepo) SaveIngested(ctx context.Context, ev worker.DocumentIngested) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockRepo) List(ctx context.Context) ([]document.Document, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]document.Document), args.Error(1)
}

func (m *MockRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockIndexer struct{ mock.Mock }

func (m *MockIndexer) Populate(ctx context.Context, spec vector.CollectionSpec, recreate bool, points []vector.Point) error {
	args := m.Called(ctx, spec, recreate, points)
	return args.Error(0)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

// MockEmbedder only implements single-text embedding, so ingestion falls
// back to bounded parallel calls.
type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}
