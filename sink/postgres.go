package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elanleads/go-scrape-leads/models"
)

const leadsSchema = `
CREATE TABLE IF NOT EXISTS leads (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT,
	phone      VARCHAR(50) UNIQUE NOT NULL,
	website    VARCHAR(255) NOT NULL,
	link       TEXT NOT NULL,
	scraped_at TIMESTAMPTZ NOT NULL,
	raw_data   JSONB
)`

const upsertLead = `
INSERT INTO leads (name, phone, website, link, scraped_at, raw_data)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (phone) DO NOTHING`

// execer is the slice of pgxpool.Pool the sink needs; pgxmock satisfies it
// in tests.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Postgres stores leads in a PostgreSQL table with a unique phone column.
// The database enforces uniqueness; the sink only classifies the result.
type Postgres struct {
	pool execer
}

// NewPostgres connects to the database and ensures the leads table exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p := &Postgres{pool: pool}
	if _, err := pool.Exec(ctx, leadsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure leads table: %w", err)
	}
	return p, nil
}

// Upsert inserts the lead unless its phone is already stored. A conflict
// leaves the existing row untouched and reports DuplicateSkipped.
func (p *Postgres) Upsert(ctx context.Context, lead *models.Lead) (Outcome, error) {
	tag, err := p.pool.Exec(ctx, upsertLead,
		lead.Name, lead.Phone, lead.Website, lead.Link, lead.ScrapedAt, lead.RawData)
	if err != nil {
		return PersistError, fmt.Errorf("insert lead %s: %w", lead.Phone, err)
	}
	if tag.RowsAffected() == 0 {
		return DuplicateSkipped, nil
	}
	return Inserted, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
