// Package store persists harvested records. A Postgres repository is
// the durable tier; an in-memory mirror always holds the latest run so
// reads keep working when the database is unreachable.
package store

import (
	"context"

	"github.com/webharvest/harvester/pkg/models"
)

// Filter narrows List queries. Zero values mean "no constraint";
// Query matches title and content.
type Filter struct {
	Source   string
	Category string
	Query    string
	Limit    int
	Offset   int
}

// Repository is the durable persistence tier.
type Repository interface {
	Save(ctx context.Context, records []models.Record) error
	List(ctx context.Context, filter Filter) ([]models.Record, error)
	Count(ctx context.Context) (int, error)
	Sources(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (models.StoreStats, error)
	Clear(ctx context.Context) error
	Close() error
}
