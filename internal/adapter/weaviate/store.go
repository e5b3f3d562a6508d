package weaviate

import (
	"context"
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"ragchat/internal/apperr"
	"ragchat/internal/vector"
)

type Store struct {
	client *weaviate.Client
	schema vector.SchemaClient
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client, schema: vector.NewWeaviateClientAdapter(client)}
}

func (s *Store) EnsureCollection(ctx context.Context, spec vector.CollectionSpec, recreate bool) error {
	if err := vector.EnsureSchema(ctx, s.schema, spec.Name, recreate); err != nil {
		return apperr.Wrap(err, apperr.CodeIndexUpstreamFailure, "ensuring weaviate class", apperr.Field("collection", spec.Name))
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, collection string, points []vector.Point) error {
	if len(points) == 0 {
		return nil
	}
	className := vector.ClassName(collection)

	objects := make([]*models.Object, len(points))
	for i, p := range points {
		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}
		objects[i] = &models.Object{
			Class: className,
			ID:    strfmt.UUID(id),
			Properties: map[string]interface{}{
				"text":       p.Text,
				"source":     p.Source,
				"chunkIndex": p.ChunkIndex,
			},
			Vector: p.Vector,
		}
	}

	res, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeIndexUpstreamFailure, "batch upsert", apperr.Field("collection", collection))
	}

	for _, r := range res {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return apperr.New(apperr.CodeIndexUpstreamFailure,
				fmt.Sprintf("object %s rejected: %s", r.ID, r.Result.Errors.Error[0].Message),
				apperr.Field("collection", collection))
		}
	}
	return nil
}

func (s *Store) Search(ctx context.Context, collection string, query []float32, topK int) ([]vector.Hit, error) {
	if topK <= 0 {
		return nil, nil
	}
	className := vector.ClassName(collection)

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(query)

	fields := []graphql.Field{
		{Name: "text"},
		{Name: "source"},
		{Name: "chunkIndex"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(className).
		WithNearVector(nearVector).
		WithLimit(topK).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeIndexUpstreamFailure, "near vector query", apperr.Field("collection", collection))
	}

	if len(res.Errors) > 0 {
		// Querying a class that was never created is reported as a GraphQL error.
		if exists, existsErr := s.schema.ClassExists(ctx, className); existsErr == nil && !exists {
			return nil, nil
		}
		return nil, apperr.New(apperr.CodeIndexUpstreamFailure, fmt.Sprintf("graphql error: %s", res.Errors[0].Message))
	}

	var hits []vector.Hit
	if data, ok := res.Data["Get"].(map[string]interface{}); ok {
		if objs, ok := data[className].([]interface{}); ok {
			for _, o := range objs {
				props, ok := o.(map[string]interface{})
				if !ok {
					continue
				}

				// A missing text payload is an empty chunk, not an error.
				hit := vector.Hit{}
				if text, ok := props["text"].(string); ok {
					hit.Text = text
				}
				if source, ok := props["source"].(string); ok {
					hit.Source = source
				}
				if idx, ok := props["chunkIndex"].(float64); ok {
					hit.ChunkIndex = int(idx)
				}
				if additional, ok := props["_additional"].(map[string]interface{}); ok {
					if distance, ok := additional["distance"].(float64); ok {
						hit.Score = float32(1 - distance)
					}
				}
				hits = append(hits, hit)
			}
		}
	}

	return hits, nil
}

func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	className := vector.ClassName(collection)

	exists, err := s.schema.ClassExists(ctx, className)
	if err != nil {
		return 0, apperr.Wrap(err, apperr.CodeIndexUpstreamFailure, "checking weaviate class")
	}
	if !exists {
		return 0, nil
	}

	res, err := s.client.GraphQL().Aggregate().
		WithClassName(className).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, apperr.Wrap(err, apperr.CodeIndexUpstreamFailure, "aggregate count")
	}
	if len(res.Errors) > 0 {
		return 0, apperr.New(apperr.CodeIndexUpstreamFailure, fmt.Sprintf("graphql error: %s", res.Errors[0].Message))
	}

	if data, ok := res.Data["Aggregate"].(map[string]interface{}); ok {
		if groups, ok := data[className].([]interface{}); ok && len(groups) > 0 {
			if group, ok := groups[0].(map[string]interface{}); ok {
				if meta, ok := group["meta"].(map[string]interface{}); ok {
					if count, ok := meta["count"].(float64); ok {
						return int(count), nil
					}
				}
			}
		}
	}
	return 0, nil
}
