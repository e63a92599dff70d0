package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// DB wraps the database connection
type DB struct {
	conn   *sql.DB
	logger *zap.Logger
}

// NewDB opens a connection and makes sure the schema exists.
// An empty connStr is assembled from the DB_* environment variables.
func NewDB(ctx context.Context, connStr string, logger *zap.Logger) (*DB, error) {
	if connStr == "" {
		host := getEnvOrDefault("DB_HOST", "localhost")
		port := getEnvOrDefault("DB_PORT", "5432")
		user := getEnvOrDefault("DB_USER", "caixa")
		password := getEnvOrDefault("DB_PASSWORD", "")
		dbname := getEnvOrDefault("DB_NAME", "caixa_imoveis")
		sslmode := getEnvOrDefault("DB_SSLMODE", "disable")

		connStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode)
	}

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, logger: logger}
	if err := db.initSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables if they don't exist
func (db *DB) initSchema(ctx context.Context) error {
	// One row per listing per table; the archive may legitimately hold an id twice
	// when a listing comes back and is withdrawn again, so the key is a sequence.
	_, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			seq BIGSERIAL PRIMARY KEY,
			table_name VARCHAR(32) NOT NULL,
			id_imovel TEXT NOT NULL,
			uf CHAR(2) NOT NULL,
			cidade TEXT NOT NULL DEFAULT '',
			bairro TEXT NOT NULL DEFAULT '',
			endereco TEXT NOT NULL DEFAULT '',
			preco NUMERIC NOT NULL,
			valor_avaliacao NUMERIC NOT NULL,
			desconto DOUBLE PRECISION NOT NULL,
			descricao TEXT NOT NULL DEFAULT '',
			modalidade_venda TEXT NOT NULL DEFAULT '',
			link_acesso TEXT NOT NULL DEFAULT '',
			tipo_imovel TEXT NOT NULL DEFAULT '',
			area_total DOUBLE PRECISION,
			area_privativa DOUBLE PRECISION,
			area_terreno DOUBLE PRECISION,
			data_inclusao DATE NOT NULL,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create listings table: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sync_runs (
			id UUID PRIMARY KEY,
			status VARCHAR(20) NOT NULL DEFAULT 'in_progress',
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP,
			regions_done INTEGER NOT NULL DEFAULT 0,
			regions_skipped INTEGER NOT NULL DEFAULT 0,
			regions_failed INTEGER NOT NULL DEFAULT 0,
			listings_added INTEGER NOT NULL DEFAULT 0,
			listings_archived INTEGER NOT NULL DEFAULT 0,
			CONSTRAINT valid_run_status CHECK (status IN ('in_progress', 'done', 'failed'))
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create sync_runs table: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sync_regions (
			id SERIAL PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES sync_runs(id) ON DELETE CASCADE,
			region CHAR(2) NOT NULL,
			status VARCHAR(20) NOT NULL,
			plan VARCHAR(32) NOT NULL DEFAULT '',
			incoming_count INTEGER NOT NULL DEFAULT 0,
			persisted_count INTEGER NOT NULL DEFAULT 0,
			new_count INTEGER NOT NULL DEFAULT 0,
			archived_count INTEGER NOT NULL DEFAULT 0,
			duplicate_count INTEGER NOT NULL DEFAULT 0,
			geocoded_count INTEGER NOT NULL DEFAULT 0,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			last_error TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT valid_region_status CHECK (status IN ('done', 'skipped', 'failed'))
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create sync_regions table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_listings_table_seq ON listings(table_name, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_id_imovel ON listings(id_imovel)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_regions_run_id ON sync_regions(run_id)`,
	}
	for _, stmt := range indexes {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			db.logger.Warn("failed to create index", zap.String("statement", stmt), zap.Error(err))
		}
	}

	db.logger.Info("database schema initialized")
	return nil
}
