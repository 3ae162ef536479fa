package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/webharvest/harvester/pkg/models"
)

const (
	maxOpenConns = 5
	opTimeout    = 10 * time.Second
)

// Postgres persists records in the scraped_data table.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens the database, verifies connectivity, and ensures
// the schema exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	p := &Postgres{db: db}
	if err := p.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS scraped_data (
			id         TEXT PRIMARY KEY,
			source     TEXT NOT NULL,
			url        TEXT NOT NULL,
			title      TEXT,
			content    TEXT,
			price      DECIMAL(10,2),
			image_url  TEXT,
			author     TEXT,
			category   TEXT,
			timestamp  TIMESTAMPTZ NOT NULL,
			metadata   JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_scraped_source    ON scraped_data(source);
		CREATE INDEX IF NOT EXISTS idx_scraped_timestamp ON scraped_data(timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_scraped_metadata  ON scraped_data USING GIN(metadata);
		CREATE INDEX IF NOT EXISTS idx_scraped_fulltext  ON scraped_data
			USING GIN(to_tsvector('english', coalesce(title, '') || ' ' || coalesce(content, '')));
	`)
	return err
}

// Save upserts all records in one transaction. Conflicting ids take the
// newer row's fields.
func (p *Postgres) Save(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scraped_data
			(id, source, url, title, content, price, image_url, author, category, timestamp, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			source = EXCLUDED.source, url = EXCLUDED.url, title = EXCLUDED.title,
			content = EXCLUDED.content, price = EXCLUDED.price,
			image_url = EXCLUDED.image_url, author = EXCLUDED.author,
			category = EXCLUDED.category, timestamp = EXCLUDED.timestamp,
			metadata = EXCLUDED.metadata
	`)
	if err != nil {
		return fmt.Errorf("postgres: prepare: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		metadata, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("postgres: marshal metadata for %s: %w", rec.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			rec.ID, rec.Source, rec.URL,
			nullString(rec.Title), nullString(rec.Content), nullFloat(rec.Price),
			nullString(rec.ImageURL), nullString(rec.Author), nullString(rec.Category),
			rec.Timestamp, metadata,
		); err != nil {
			return fmt.Errorf("postgres: upsert %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// List returns records matching the filter, newest first.
func (p *Postgres) List(ctx context.Context, filter Filter) ([]models.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Source != "" {
		conds = append(conds, "source = "+arg(filter.Source))
	}
	if filter.Category != "" {
		conds = append(conds, "category = "+arg(filter.Category))
	}
	if filter.Query != "" {
		conds = append(conds, fmt.Sprintf(
			"to_tsvector('english', coalesce(title, '') || ' ' || coalesce(content, '')) @@ plainto_tsquery('english', %s)",
			arg(filter.Query)))
	}

	query := "SELECT id, source, url, title, content, price, image_url, author, category, timestamp, metadata FROM scraped_data"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var rec models.Record
		var title, content, imageURL, author, category sql.NullString
		var price sql.NullFloat64
		var metadata []byte

		if err := rows.Scan(&rec.ID, &rec.Source, &rec.URL,
			&title, &content, &price, &imageURL, &author, &category,
			&rec.Timestamp, &metadata); err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		rec.Title = title.String
		rec.Content = content.String
		rec.ImageURL = imageURL.String
		rec.Author = author.String
		rec.Category = category.String
		if price.Valid {
			v := price.Float64
			rec.Price = &v
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("postgres: metadata for %s: %w", rec.ID, err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the number of stored records.
func (p *Postgres) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var n int
	if err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM scraped_data").Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count: %w", err)
	}
	return n, nil
}

// Sources returns the distinct source names, sorted.
func (p *Postgres) Sources(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, "SELECT DISTINCT source FROM scraped_data ORDER BY source")
	if err != nil {
		return nil, fmt.Errorf("postgres: sources: %w", err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("postgres: scan source: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// Stats summarizes the stored corpus.
func (p *Postgres) Stats(ctx context.Context) (models.StoreStats, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var stats models.StoreStats
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(price),
		       COUNT(*) FILTER (WHERE content IS NOT NULL AND content <> ''),
		       COUNT(DISTINCT source)
		FROM scraped_data
	`).Scan(&stats.Total, &stats.WithPrice, &stats.WithContent, &stats.UniqueSources)
	if err != nil {
		return models.StoreStats{}, fmt.Errorf("postgres: stats: %w", err)
	}
	return stats, nil
}

// Clear deletes every stored record.
func (p *Postgres) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := p.db.ExecContext(ctx, "DELETE FROM scraped_data"); err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
