package milvus

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/apperr"
	"ragchat/internal/vector"
)

func TestHitsFromResult(t *testing.T) {
	rs := milvusclient.ResultSet{
		ResultCount: 2,
		Scores:      []float32{0.93, 0.12},
		Fields: []column.Column{
			column.NewColumnVarChar(fieldText, []string{"The sky is blue.", "Grass is green."}),
			column.NewColumnVarChar(fieldSource, []string{"sky.txt", "sky.txt"}),
			column.NewColumnInt64(fieldChunkIndex, []int64{1, 2}),
		},
	}

	hits := hitsFromResult(rs)
	require.Len(t, hits, 2)
	assert.Equal(t, vector.Hit{Text: "The sky is blue.", Score: 0.93, Source: "sky.txt", ChunkIndex: 1}, hits[0])
	assert.Equal(t, "Grass is green.", hits[1].Text)
	assert.Equal(t, 2, hits[1].ChunkIndex)
}

func TestHitsFromResult_MissingText(t *testing.T) {
	rs := milvusclient.ResultSet{
		ResultCount: 1,
		Scores:      []float32{0.5},
	}

	hits := hitsFromResult(rs)
	require.Len(t, hits, 1)
	assert.Equal(t, "", hits[0].Text)
}

func TestPointColumns(t *testing.T) {
	cols, err := pointColumns([]vector.Point{
		{ID: "a", Vector: []float32{1, 0}, Text: "one", Source: "f.txt", ChunkIndex: 1},
		{Vector: []float32{0, 1}, Text: "two", Source: "f.txt", ChunkIndex: 2},
	})
	require.NoError(t, err)
	require.Len(t, cols, 5)

	ids := cols[0].(*column.ColumnVarChar).Data()
	assert.Equal(t, "a", ids[0])
	assert.NotEmpty(t, ids[1], "missing ids are generated")
	assert.Equal(t, fieldEmbedding, cols[1].Name())
	assert.Equal(t, []string{"one", "two"}, cols[2].(*column.ColumnVarChar).Data())
	assert.Equal(t, []int64{1, 2}, cols[4].(*column.ColumnInt64).Data())
}

func TestValidatePoints(t *testing.T) {
	tests := []struct {
		name    string
		point   vector.Point
		wantErr bool
	}{
		{"text at limit", vector.Point{Text: strings.Repeat("x", maxTextLen), Source: "f.txt"}, false},
		{"text over limit", vector.Point{Text: strings.Repeat("x", maxTextLen+1), Source: "f.txt", ChunkIndex: 3}, true},
		// "é" is two bytes, so the limit is on bytes and not runes.
		{"multibyte text over limit", vector.Point{Text: strings.Repeat("é", maxTextLen/2+1)}, true},
		{"source over limit", vector.Point{Text: "ok", Source: strings.Repeat("s", maxSourceLen+1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Store{}).ValidatePoints([]vector.Point{tt.point})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperr.HasCode(err, apperr.CodeIngestParamsInvalid))
			assert.Equal(t, http.StatusBadRequest, apperr.HTTPStatus(err))
		})
	}
}

func TestPointColumns_RejectsOversizedText(t *testing.T) {
	long := strings.Repeat("x", maxTextLen+10)
	cols, err := pointColumns([]vector.Point{
		{Vector: []float32{1, 0}, Text: "fine", ChunkIndex: 1},
		{Vector: []float32{0, 1}, Text: long, ChunkIndex: 2},
	})
	require.Error(t, err)
	assert.Nil(t, cols)
	assert.Equal(t, 2, apperr.FieldsOf(err)["chunk_index"])
}

// A nil client proves the rejection happens before any call to Milvus.
func TestStore_UpsertRejectsOversizedTextBeforeInsert(t *testing.T) {
	s := &Store{}
	err := s.Upsert(context.Background(), "docs", []vector.Point{
		{Vector: []float32{1, 0}, Text: strings.Repeat("x", maxTextLen+1)},
	})
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeIngestParamsInvalid))
}

func TestStore_NoOpsSkipTheClient(t *testing.T) {
	s := &Store{}
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "docs", nil))

	hits, err := s.Search(ctx, "docs", []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Nil(t, hits)
}

func TestRowCount(t *testing.T) {
	n, err := rowCount(map[string]string{"row_count": "17"})
	require.NoError(t, err)
	assert.Equal(t, 17, n)

	n, err = rowCount(map[string]string{})
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = rowCount(map[string]string{"row_count": "many"})
	assert.Error(t, err)
}
