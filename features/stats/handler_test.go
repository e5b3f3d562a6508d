package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ragchat/internal/apperr"
)

type MockCounter struct{ mock.Mock }

func (m *MockCounter) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockCollectionCounter struct{ mock.Mock }

func (m *MockCollectionCounter) Count(ctx context.Context, collection string) (int, error) {
	args := m.Called(ctx, collection)
	return args.Int(0), args.Error(1)
}

func TestHandler_GetStats(t *testing.T) {
	tests := []struct {
		name       string
		opts       Options
		setupMocks func(d, b *MockCounter, v *MockCollectionCounter)
		wantStatus int
		wantCode   string
		wantData   Snapshot
	}{
		{
			name: "replace mode",
			opts: Options{Collection: "docs", Mode: "replace"},
			setupMocks: func(d, b *MockCounter, v *MockCollectionCounter) {
				d.On("Count", mock.Anything).Return(10, nil)
				b.On("Count", mock.Anything).Return(5, nil)
				v.On("Count", mock.Anything, "docs").Return(100, nil)
			},
			wantStatus: http.StatusOK,
			wantData:   Snapshot{Collection: "docs", Mode: "replace", Documents: 10, Bookings: 5, IndexedChunks: 100},
		},
		{
			name: "append mode on an empty index",
			opts: Options{Collection: "kb", Mode: "append"},
			setupMocks: func(d, b *MockCounter, v *MockCollectionCounter) {
				d.On("Count", mock.Anything).Return(0, nil)
				b.On("Count", mock.Anything).Return(0, nil)
				v.On("Count", mock.Anything, "kb").Return(0, nil)
			},
			wantStatus: http.StatusOK,
			wantData:   Snapshot{Collection: "kb", Mode: "append"},
		},
		{
			name: "document count fails",
			opts: Options{Collection: "docs", Mode: "replace"},
			setupMocks: func(d, b *MockCounter, v *MockCollectionCounter) {
				d.On("Count", mock.Anything).Return(0, errors.New("db error"))
				b.On("Count", mock.Anything).Return(5, nil).Maybe()
				v.On("Count", mock.Anything, "docs").Return(100, nil).Maybe()
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
		{
			name: "booking count fails",
			opts: Options{Collection: "docs", Mode: "replace"},
			setupMocks: func(d, b *MockCounter, v *MockCollectionCounter) {
				d.On("Count", mock.Anything).Return(10, nil).Maybe()
				b.On("Count", mock.Anything).Return(0, errors.New("db error"))
				v.On("Count", mock.Anything, "docs").Return(100, nil).Maybe()
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
		{
			name: "index unreachable",
			opts: Options{Collection: "docs", Mode: "replace"},
			setupMocks: func(d, b *MockCounter, v *MockCollectionCounter) {
				d.On("Count", mock.Anything).Return(10, nil).Maybe()
				b.On("Count", mock.Anything).Return(5, nil).Maybe()
				v.On("Count", mock.Anything, "docs").Return(0, errors.New("connection refused"))
			},
			wantStatus: http.StatusBadGateway,
			wantCode:   string(apperr.CodeIndexUpstreamFailure),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mDocs := new(MockCounter)
			mBookings := new(MockCounter)
			mIndex := new(MockCollectionCounter)
			tt.setupMocks(mDocs, mBookings, mIndex)

			h := NewHandler(mDocs, mBookings, mIndex, tt.opts)
			w := httptest.NewRecorder()
			h.GetStats(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			if tt.wantCode != "" {
				var body struct {
					Error struct {
						Code string `json:"code"`
					} `json:"error"`
				}
				require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
				assert.Equal(t, tt.wantCode, body.Error.Code)
				return
			}

			var body struct {
				Data Snapshot `json:"data"`
			}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.wantData, body.Data)
			mDocs.AssertExpectations(t)
			mBookings.AssertExpectations(t)
			mIndex.AssertExpectations(t)
		})
	}
}

func TestHandler_CollectWrapsIndexErrors(t *testing.T) {
	d, b, v := new(MockCounter), new(MockCounter), new(MockCollectionCounter)
	d.On("Count", mock.Anything).Return(1, nil).Maybe()
	b.On("Count", mock.Anything).Return(1, nil).Maybe()
	v.On("Count", mock.Anything, "docs").Return(0, errors.New("timeout"))

	_, err := NewHandler(d, b, v, Options{Collection: "docs"}).Collect(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeIndexUpstreamFailure))
	assert.Equal(t, "docs", apperr.FieldsOf(err)["collection"])
}
