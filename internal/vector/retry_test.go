package vector_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ragchat/internal/apperr"
	"ragchat/internal/vector"
)

type MockIndex struct{ mock.Mock }

func (m *MockIndex) EnsureCollection(ctx context.Context, spec vector.CollectionSpec, recreate bool) error {
	return m.Called(ctx, spec, recreate).Error(0)
}

func (m *MockIndex) Upsert(ctx context.Context, collection string, points []vector.Point) error {
	return m.Called(ctx, collection, points).Error(0)
}

func (m *MockIndex) Search(ctx context.Context, collection string, query []float32, topK int) ([]vector.Hit, error) {
	args := m.Called(ctx, collection, query, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vector.Hit), args.Error(1)
}

func (m *MockIndex) Count(ctx context.Context, collection string) (int, error) {
	args := m.Called(ctx, collection)
	return args.Int(0), args.Error(1)
}

func fastPolicy(attempts int) vector.RetryPolicy {
	return vector.RetryPolicy{Attempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
}

func TestWithSearchRetry(t *testing.T) {
	upstream := apperr.New(apperr.CodeIndexUpstreamFailure, "connection reset")

	tests := []struct {
		name      string
		setup     func(*MockIndex)
		wantErr   bool
		wantCalls int
	}{
		{
			name: "Succeeds After Transient Failures",
			setup: func(m *MockIndex) {
				m.On("Search", mock.Anything, "docs", mock.Anything, 5).Return(nil, upstream).Twice()
				m.On("Search", mock.Anything, "docs", mock.Anything, 5).Return([]vector.Hit{{Text: "ok"}}, nil).Once()
			},
			wantCalls: 3,
		},
		{
			name: "Gives Up After Attempts",
			setup: func(m *MockIndex) {
				m.On("Search", mock.Anything, "docs", mock.Anything, 5).Return(nil, upstream)
			},
			wantErr:   true,
			wantCalls: 3,
		},
		{
			name: "Permanent Error Not Retried",
			setup: func(m *MockIndex) {
				m.On("Search", mock.Anything, "docs", mock.Anything, 5).
					Return(nil, apperr.New(apperr.CodeIndexDimensionInvalid, "bad dim"))
			},
			wantErr:   true,
			wantCalls: 1,
		},
		{
			name: "Uncoded Error Retried",
			setup: func(m *MockIndex) {
				m.On("Search", mock.Anything, "docs", mock.Anything, 5).Return(nil, errors.New("eof")).Once()
				m.On("Search", mock.Anything, "docs", mock.Anything, 5).Return([]vector.Hit{}, nil).Once()
			},
			wantCalls: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockIndex)
			tt.setup(m)

			idx := vector.WithSearchRetry(m, fastPolicy(3))
			_, err := idx.Search(context.Background(), "docs", []float32{1}, 5)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			m.AssertNumberOfCalls(t, "Search", tt.wantCalls)
		})
	}
}

func TestWithSearchRetry_MutationsPassThrough(t *testing.T) {
	m := new(MockIndex)
	m.On("Upsert", mock.Anything, "docs", mock.Anything).Return(errors.New("boom")).Once()

	idx := vector.WithSearchRetry(m, fastPolicy(5))
	err := idx.Upsert(context.Background(), "docs", nil)
	assert.Error(t, err)
	m.AssertNumberOfCalls(t, "Upsert", 1)
}
