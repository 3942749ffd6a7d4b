package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const schemaSQL = `
create table if not exists flow_results_cache (
	cache_key   text primary key,
	flow        text not null,
	engine      text not null,
	model       text not null,
	result_json jsonb not null,
	created_at  timestamptz not null default now()
)`

type PGCache struct {
	DB     *sql.DB
	MaxAge time.Duration
}

func NewPGCache(db *sql.DB, maxAge time.Duration) *PGCache { return &PGCache{DB: db, MaxAge: maxAge} }

// OpenPostgres opens a pgx-backed database/sql pool and pings it.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the cache table when it is missing.
func (r *PGCache) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, schemaSQL)
	return err
}

// Get returns the cached answer for key. Entries older than MaxAge (when > 0) and broken
// rows count as misses.
func (r *PGCache) Get(ctx context.Context, key string) (string, error) {
	const q = `select result_json, created_at
	           from flow_results_cache
	           where cache_key=$1`
	var (
		js []byte
		ts time.Time
	)
	if err := r.DB.QueryRowContext(ctx, q, key).Scan(&js, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrMiss
		}
		return "", err
	}
	if r.MaxAge > 0 && time.Since(ts) > r.MaxAge {
		return "", ErrMiss
	}
	if !json.Valid(js) {
		return "", ErrMiss
	}
	return string(js), nil
}

// Put stores or refreshes an entry. PK: cache_key.
func (r *PGCache) Put(ctx context.Context, key string, e Entry) error {
	const q = `
insert into flow_results_cache(cache_key, flow, engine, model, result_json)
values ($1,$2,$3,$4,$5)
on conflict (cache_key)
do update set result_json=excluded.result_json, created_at=now()`
	_, err := r.DB.ExecContext(ctx, q, key, e.Flow, e.Engine, e.Model, []byte(e.JSON))
	return err
}
