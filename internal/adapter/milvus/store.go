// Package milvus implements the vector index on a Milvus collection with a
// COSINE AUTOINDEX over the embedding field.
package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"ragchat/internal/apperr"
	"ragchat/internal/vector"
)

const (
	fieldID         = "id"
	fieldEmbedding  = "embedding"
	fieldText       = "text"
	fieldSource     = "source"
	fieldChunkIndex = "chunk_index"

	maxTextLen   = 65535
	maxSourceLen = 512
)

type Config struct {
	Address  string
	Username string
	Password string
	DBName   string
}

type Store struct {
	client *milvusclient.Client
}

func Connect(ctx context.Context, cfg Config) (*Store, error) {
	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.DBName,
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeIndexUpstreamFailure, "connecting to milvus", apperr.Field("address", cfg.Address))
	}
	return &Store{client: c}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func (s *Store) EnsureCollection(ctx context.Context, spec vector.CollectionSpec, recreate bool) error {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(spec.Name))
	if err != nil {
		return apperr.Wrap(err, apperr.CodeIndexUpstreamFailure, "checking collection", apperr.Field("collection", spec.Name))
	}

	if exists && recreate {
		if err := s.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(spec.Name)); err != nil {
			return apperr.Wrap(err, apperr.CodeIndexUpstreamFailure, "dropping collection", apperr.Field("collection", spec.Name))
		}
		exists = false
	}
	if exists {
		return nil
	}

	schema := entity.NewSchema().
		WithName(spec.Name).
		WithDescription("Chunks of uploaded documents").
		WithField(entity.NewField().
			WithName(fieldID).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(64).
			WithIsPrimaryKey(true)).
		WithField(entity.NewField().
			WithName(fieldEmbedding).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(spec.Dimension))).
		WithField(entity.NewField().
			WithName(fieldText).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxTextLen)).
		WithField(entity.NewField().
			WithName(fieldSource).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxSourceLen)).
		WithField(entity.NewField().
			WithName(fieldChunkIndex).
			WithDataType(entity.FieldTypeInt64))

	if err := s.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(spec.Name, schema)); err != nil {
		return apperr.Wrap(err, apperr.CodeIndexUpstreamFailure, "creating collection", apperr.Field("collection", spec.Name))
	}

	idxTask, err := s.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(spec.Name, fieldEmbedding, index.NewAutoIndex(entity.COSINE)))
	if err != nil {
		return apperr.Wrap(err, apperr.CodeIndexUpstreamFailure, "creating index", apperr.Field("collection", spec.Name))
	}
	if err := idxTask.Await(ctx); err != nil {
		return apperr.Wrap(err, apperr.CodeIndexUpstreamFailure, "waiting for index", apperr.Field("collection", spec.Name))
	}

	loadTask, err := s.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(spec.Name))
	if err != nil {
		return apperr.Wrap(err, apperr.CodeIndexUpstreamFailure, "loading collection", apperr.Field("collection", spec.Name))
	}
	if err := loadTask.Await(ctx); err != nil {
		return apperr.Wrap(err, apperr.CodeIndexUpstreamFailure, "waiting for collection load", apperr.Field("collection", spec.Name))
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, collection string, points []vector.Point) error {
	if len(points) == 0 {
		return nil
	}

	columns, err := pointColumns(points)
	if err != nil {
		return err
	}
	if _, err := s.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(collection, columns...)); err != nil {
		return apperr.Wrap(err, apperr.CodeIndexUpstreamFailure, "inserting points", apperr.Field("collection", collection))
	}

	// Flush so the points are searchable as soon as ingestion returns.
	flushTask, err := s.client.Flush(ctx, milvusclient.NewFlushOption(collection))
	if err != nil {
		return apperr.Wrap(err, apperr.CodeIndexUpstreamFailure, "flushing collection", apperr.Field("collection", collection))
	}
	if err := flushTask.Await(ctx); err != nil {
		return apperr.Wrap(err, apperr.CodeIndexUpstreamFailure, "waiting for flush", apperr.Field("collection", collection))
	}
	return nil
}

// ValidatePoints rejects payloads longer than the VarChar fields hold. Milvus
// would refuse the insert, and cutting them would change the stored chunk.
func (s *Store) ValidatePoints(points []vector.Point) error {
	return validatePoints(points)
}

func validatePoints(points []vector.Point) error {
	for _, p := range points {
		if len(p.Text) > maxTextLen {
			return apperr.New(apperr.CodeIngestParamsInvalid,
				fmt.Sprintf("chunk %d is %d bytes; the index stores at most %d, use a smaller chunk_size", p.ChunkIndex, len(p.Text), maxTextLen),
				apperr.Field("chunk_index", p.ChunkIndex), apperr.Field("bytes", len(p.Text)))
		}
		if len(p.Source) > maxSourceLen {
			return apperr.New(apperr.CodeIngestParamsInvalid,
				fmt.Sprintf("file name is %d bytes; the index stores at most %d", len(p.Source), maxSourceLen),
				apperr.Field("bytes", len(p.Source)))
		}
	}
	return nil
}

func pointColumns(points []vector.Point) ([]column.Column, error) {
	if err := validatePoints(points); err != nil {
		return nil, err
	}

	ids := make([]string, len(points))
	vecs := make([][]float32, len(points))
	texts := make([]string, len(points))
	sources := make([]string, len(points))
	chunkIdx := make([]int64, len(points))

	for i, p := range points {
		ids[i] = p.ID
		if ids[i] == "" {
			ids[i] = uuid.NewString()
		}
		vecs[i] = p.Vector
		texts[i] = p.Text
		sources[i] = p.Source
		chunkIdx[i] = int64(p.ChunkIndex)
	}

	return []column.Column{
		column.NewColumnVarChar(fieldID, ids),
		column.NewColumnFloatVector(fieldEmbedding, len(vecs[0]), vecs),
		column.NewColumnVarChar(fieldText, texts),
		column.NewColumnVarChar(fieldSource, sources),
		column.NewColumnInt64(fieldChunkIndex, chunkIdx),
	}, nil
}

func (s *Store) Search(ctx context.Context, collection string, query []float32, topK int) ([]vector.Hit, error) {
	if topK <= 0 {
		return nil, nil
	}

	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(collection))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeIndexUpstreamFailure, "checking collection", apperr.Field("collection", collection))
	}
	if !exists {
		return nil, nil
	}

	results, err := s.client.Search(ctx, milvusclient.NewSearchOption(
		collection,
		topK,
		[]entity.Vector{entity.FloatVector(query)},
	).WithANNSField(fieldEmbedding).
		WithOutputFields(fieldText, fieldSource, fieldChunkIndex))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeIndexUpstreamFailure, "searching collection", apperr.Field("collection", collection))
	}

	if len(results) == 0 {
		return nil, nil
	}
	return hitsFromResult(results[0]), nil
}

func hitsFromResult(rs milvusclient.ResultSet) []vector.Hit {
	hits := make([]vector.Hit, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		hit := vector.Hit{}
		if i < len(rs.Scores) {
			hit.Score = rs.Scores[i]
		}

		for _, field := range rs.Fields {
			switch col := field.(type) {
			case *column.ColumnVarChar:
				if i >= col.Len() {
					continue
				}
				switch col.Name() {
				case fieldText:
					hit.Text = col.Data()[i]
				case fieldSource:
					hit.Source = col.Data()[i]
				}
			case *column.ColumnInt64:
				if col.Name() == fieldChunkIndex && i < col.Len() {
					hit.ChunkIndex = int(col.Data()[i])
				}
			}
		}
		hits = append(hits, hit)
	}
	return hits
}

func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(collection))
	if err != nil {
		return 0, apperr.Wrap(err, apperr.CodeIndexUpstreamFailure, "checking collection", apperr.Field("collection", collection))
	}
	if !exists {
		return 0, nil
	}

	stats, err := s.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(collection))
	if err != nil {
		return 0, apperr.Wrap(err, apperr.CodeIndexUpstreamFailure, "reading collection stats", apperr.Field("collection", collection))
	}
	return rowCount(stats)
}

func rowCount(stats map[string]string) (int, error) {
	val, ok := stats["row_count"]
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, apperr.Wrap(err, apperr.CodeIndexUpstreamFailure, fmt.Sprintf("parsing row_count %q", val))
	}
	return n, nil
}
