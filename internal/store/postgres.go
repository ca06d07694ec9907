// Package store reads key and catalog reference data from Postgres. The
// catalog is owned by the external management service; the gateway's only
// write is the best-effort last_used_at touch.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/apexhub/gateway/internal/models"
)

type DB struct {
	conn *sql.DB
}

// Connect opens the key/catalog store and verifies it responds.
func Connect(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("couldn't open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("database not responding: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return &DB{conn: conn}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the store is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// KeyLookup is everything the authenticator needs from its single query: the
// key record, the owning account's plan flag, and the bound API definition.
type KeyLookup struct {
	Key   models.APIKey
	IsPro bool
	API   models.APIDefinition
}

// LookupKey resolves a presented key string to its record, owner plan, and
// bound API in one query. Returns (nil, nil) when the key does not exist.
func (db *DB) LookupKey(ctx context.Context, key string) (*KeyLookup, error) {
	query := `
		SELECT k.id, k.key, k.owner_id, k.target_api_id, k.status, k.expires_at,
		       k.rate_limit_requests, k.rate_limit_period_ms, k.last_used_at, k.created_at,
		       a.is_pro,
		       api.id, api.slug, api.visibility, api.base_url, api.pricing, api.created_at
		FROM api_keys k
		JOIN accounts a ON a.id = k.owner_id
		JOIN apis api ON api.id = k.target_api_id
		WHERE k.key = $1
	`

	var (
		lookup        KeyLookup
		overrideReqs  sql.NullInt64
		overridePerMs sql.NullInt64
		pricingJSON   []byte
	)
	err := db.conn.QueryRowContext(ctx, query, key).Scan(
		&lookup.Key.ID,
		&lookup.Key.Key,
		&lookup.Key.OwnerID,
		&lookup.Key.TargetAPIID,
		&lookup.Key.Status,
		&lookup.Key.ExpiresAt,
		&overrideReqs,
		&overridePerMs,
		&lookup.Key.LastUsedAt,
		&lookup.Key.CreatedAt,
		&lookup.IsPro,
		&lookup.API.ID,
		&lookup.API.Slug,
		&lookup.API.Visibility,
		&lookup.API.BaseURL,
		&pricingJSON,
		&lookup.API.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("key lookup: %w", err)
	}

	if overrideReqs.Valid && overridePerMs.Valid {
		lookup.Key.Override = &models.RateLimitSpec{
			Requests: int(overrideReqs.Int64),
			PeriodMs: overridePerMs.Int64,
		}
	}
	if lookup.API.Pricing, err = decodePricing(pricingJSON); err != nil {
		return nil, err
	}

	return &lookup, nil
}

// TouchLastUsed records that the key just authenticated successfully.
func (db *DB) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("couldn't touch last_used_at: %w", err)
	}
	return nil
}

// APIBySlug resolves an API definition inside one visibility scope. Returns
// (nil, nil) when no API with that slug exists in the scope; callers must not
// distinguish that from a slug living in the other scope.
func (db *DB) APIBySlug(ctx context.Context, slug, visibility string) (*models.APIDefinition, error) {
	query := `
		SELECT id, slug, visibility, base_url, pricing, created_at
		FROM apis
		WHERE slug = $1 AND visibility = $2
	`

	var (
		api         models.APIDefinition
		pricingJSON []byte
	)
	err := db.conn.QueryRowContext(ctx, query, slug, visibility).Scan(
		&api.ID,
		&api.Slug,
		&api.Visibility,
		&api.BaseURL,
		&pricingJSON,
		&api.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("API lookup: %w", err)
	}

	if api.Pricing, err = decodePricing(pricingJSON); err != nil {
		return nil, err
	}
	return &api, nil
}

func decodePricing(raw []byte) (*models.Pricing, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var pricing models.Pricing
	if err := json.Unmarshal(raw, &pricing); err != nil {
		return nil, fmt.Errorf("couldn't decode pricing: %w", err)
	}
	return &pricing, nil
}
