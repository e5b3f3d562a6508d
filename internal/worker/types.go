package worker

import (
	"context"
)

type MetadataStore interface {
	SaveIngested(ctx context.Context, ev DocumentIngested) error
}
