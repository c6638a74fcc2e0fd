package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres persists the whole Snapshot as a single JSONB document. The
// in-memory copy is authoritative for the live process; this adapter only
// has to survive restarts.
type Postgres struct {
	Pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	p := &Postgres{Pool: pool}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	_, err := p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS app_state (
			id         INT PRIMARY KEY,
			blob       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

func (p *Postgres) Load(ctx context.Context) (*Snapshot, error) {
	var blob []byte
	err := p.Pool.QueryRow(ctx, `SELECT blob FROM app_state WHERE id = 1`).Scan(&blob)
	if err == pgx.ErrNoRows {
		return EmptySnapshot(), nil
	}
	if err != nil {
		return nil, err
	}
	snap := EmptySnapshot()
	if err := json.Unmarshal(blob, snap); err != nil {
		return nil, err
	}
	if snap.Players == nil {
		snap.Players = map[string]PlayerProfile{}
	}
	return snap, nil
}

func (p *Postgres) Save(ctx context.Context, snap *Snapshot) error {
	blob, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = p.Pool.Exec(ctx, `
		INSERT INTO app_state (id, blob, updated_at) VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET blob = EXCLUDED.blob, updated_at = now()`,
		blob)
	return err
}

func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.Pool.Ping(ctx)
}

func (p *Postgres) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}
