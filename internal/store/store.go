package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/webharvest/harvester/pkg/models"
)

// ErrPartialPersistence marks a save that reached the mirror but not
// the durable tier. Callers report it; they do not abort.
var ErrPartialPersistence = errors.New("store: saved to mirror only")

// Store fronts both tiers. Writes always land in the mirror; the
// durable tier is attempted with one retry. Reads prefer the durable
// tier and fall back to the mirror.
type Store struct {
	primary Repository // nil when no database is configured
	mirror  *Mirror
}

// New creates a Store. primary may be nil for mirror-only operation.
func New(primary Repository, mirror *Mirror) *Store {
	if mirror == nil {
		mirror = NewMirror()
	}
	return &Store{primary: primary, mirror: mirror}
}

// Save persists records to both tiers. A durable-tier failure after one
// retry returns ErrPartialPersistence; the mirror copy is never lost.
func (s *Store) Save(ctx context.Context, records []models.Record) error {
	if err := s.mirror.Save(ctx, records); err != nil {
		return err
	}
	if s.primary == nil {
		return nil
	}

	err := s.primary.Save(ctx, records)
	if err != nil {
		slog.Warn("durable save failed, retrying once", "error", err, "records", len(records))
		err = s.primary.Save(ctx, records)
	}
	if err != nil {
		slog.Error("durable save failed after retry", "error", err, "records", len(records))
		return errors.Join(ErrPartialPersistence, err)
	}
	return nil
}

// List queries the durable tier, falling back to the mirror.
func (s *Store) List(ctx context.Context, filter Filter) ([]models.Record, error) {
	if s.primary != nil {
		records, err := s.primary.List(ctx, filter)
		if err == nil {
			return records, nil
		}
		slog.Warn("durable list failed, serving from mirror", "error", err)
	}
	return s.mirror.List(ctx, filter)
}

// Count queries the durable tier, falling back to the mirror.
func (s *Store) Count(ctx context.Context) (int, error) {
	if s.primary != nil {
		n, err := s.primary.Count(ctx)
		if err == nil {
			return n, nil
		}
		slog.Warn("durable count failed, serving from mirror", "error", err)
	}
	return s.mirror.Count(ctx)
}

// Sources queries the durable tier, falling back to the mirror.
func (s *Store) Sources(ctx context.Context) ([]string, error) {
	if s.primary != nil {
		sources, err := s.primary.Sources(ctx)
		if err == nil {
			return sources, nil
		}
		slog.Warn("durable sources failed, serving from mirror", "error", err)
	}
	return s.mirror.Sources(ctx)
}

// Stats queries the durable tier, falling back to the mirror.
func (s *Store) Stats(ctx context.Context) (models.StoreStats, error) {
	if s.primary != nil {
		stats, err := s.primary.Stats(ctx)
		if err == nil {
			return stats, nil
		}
		slog.Warn("durable stats failed, serving from mirror", "error", err)
	}
	return s.mirror.Stats(ctx)
}

// Clear empties both tiers.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.mirror.Clear(ctx); err != nil {
		return err
	}
	if s.primary == nil {
		return nil
	}
	return s.primary.Clear(ctx)
}

// Close releases the durable tier.
func (s *Store) Close() error {
	if s.primary == nil {
		return nil
	}
	return s.primary.Close()
}
