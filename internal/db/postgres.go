package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidbridge/internal/models"
)

// Postgres wraps a postgres DB connection holding the slot registry.
type Postgres struct {
	DB *sql.DB
}

// schemaSQL sets up the slot registry if it doesn't exist.
const schemaSQL = `CREATE TABLE IF NOT EXISTS slots (
    id TEXT PRIMARY KEY,
    ad_unit_id TEXT NOT NULL,
    integration TEXT NOT NULL DEFAULT 'banner',
    sizes TEXT[] NOT NULL DEFAULT '{}',
    win_key TEXT NOT NULL DEFAULT '',
    wait_window_ms INT NOT NULL DEFAULT 0,
    active BOOLEAN NOT NULL DEFAULT TRUE
);`

// InitPostgres opens a pooled, traced connection and ensures the schema.
func InitPostgres(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (*Postgres, error) {
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(
			attribute.String("db.system", "postgresql"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	p := &Postgres{DB: db}
	if err := p.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	zap.L().Info("Connected to Postgres",
		zap.Int("max_open_conns", maxOpenConns),
		zap.Int("max_idle_conns", maxIdleConns),
		zap.Duration("conn_max_lifetime", connMaxLifetime))
	return p, nil
}

// Close closes the underlying connection pool.
func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		if err := p.DB.Close(); err != nil {
			zap.L().Error("postgres close", zap.Error(err))
		}
	}
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	if _, err := p.DB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// LoadSlots returns every active slot ordered by id.
func (p *Postgres) LoadSlots(ctx context.Context) ([]models.Slot, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT id, ad_unit_id, integration, sizes, win_key, wait_window_ms FROM slots WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var slots []models.Slot
	for rows.Next() {
		var s models.Slot
		var integration string
		var sizes []string
		var waitMS int
		if err := rows.Scan(&s.ID, &s.AdUnitID, &integration, pq.Array(&sizes), &s.WinKey, &waitMS); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		s.Integration = models.Integration(integration)
		if !s.Integration.Valid() {
			return nil, fmt.Errorf("slot %s: unknown integration %q", s.ID, integration)
		}
		for _, raw := range sizes {
			size, err := models.ParseAdSize(raw)
			if err != nil {
				return nil, fmt.Errorf("slot %s: %w", s.ID, err)
			}
			s.Sizes = append(s.Sizes, size)
		}
		s.WaitWindow = time.Duration(waitMS) * time.Millisecond
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return slots, nil
}

// UpsertSlot inserts s or replaces the stored definition, reactivating it.
func (p *Postgres) UpsertSlot(ctx context.Context, s models.Slot) error {
	sizes := make([]string, len(s.Sizes))
	for i, size := range s.Sizes {
		sizes[i] = size.String()
	}
	_, err := p.DB.ExecContext(ctx, `INSERT INTO slots (id, ad_unit_id, integration, sizes, win_key, wait_window_ms, active)
VALUES ($1, $2, $3, $4, $5, $6, TRUE)
ON CONFLICT (id) DO UPDATE SET ad_unit_id = EXCLUDED.ad_unit_id, integration = EXCLUDED.integration,
    sizes = EXCLUDED.sizes, win_key = EXCLUDED.win_key, wait_window_ms = EXCLUDED.wait_window_ms, active = TRUE`,
		s.ID, s.AdUnitID, string(s.Integration), pq.Array(sizes), s.WinKey, int(s.WaitWindow/time.Millisecond))
	if err != nil {
		return fmt.Errorf("upsert slot %s: %w", s.ID, err)
	}
	return nil
}

// DeactivateSlot hides a slot from LoadSlots.
func (p *Postgres) DeactivateSlot(ctx context.Context, id string) error {
	res, err := p.DB.ExecContext(ctx, `UPDATE slots SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate slot %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("deactivate slot %s: %w", id, sql.ErrNoRows)
	}
	return nil
}
