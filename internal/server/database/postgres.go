package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations contains all database migrations in order.
// Each migration has a version key and SQL to execute.
var migrations = []struct {
	Version string
	SQL     string
}{
	{
		Version: "000001_create_users",
		SQL: `
			CREATE TABLE IF NOT EXISTS users (
				id                  VARCHAR(36)  PRIMARY KEY,
				username            VARCHAR(64)  NOT NULL UNIQUE,
				name                VARCHAR(100) NOT NULL,
				email               VARCHAR(120) NOT NULL UNIQUE,
				password_hash       VARCHAR(255) NOT NULL,
				xp_points           BIGINT       NOT NULL DEFAULT 0,
				uploader_strikes    INTEGER      NOT NULL DEFAULT 0,
				reviewer_strikes    INTEGER      NOT NULL DEFAULT 0,
				is_banned           BOOLEAN      NOT NULL DEFAULT FALSE,
				daily_upload_bytes  BIGINT       NOT NULL DEFAULT 0,
				daily_upload_count  INTEGER      NOT NULL DEFAULT 0,
				daily_upload_reset  TIMESTAMPTZ,
				daily_review_count  INTEGER      NOT NULL DEFAULT 0,
				daily_review_reset  TIMESTAMPTZ,
				created_at          TIMESTAMPTZ  NOT NULL DEFAULT NOW()
			);
		`,
	},
	{
		Version: "000002_create_uploads",
		SQL: `
			CREATE TABLE IF NOT EXISTS uploads (
				id                VARCHAR(36)  PRIMARY KEY,
				user_id           VARCHAR(36)  NOT NULL REFERENCES users(id),
				filename          VARCHAR(255) NOT NULL,
				original_filename VARCHAR(255) NOT NULL,
				file_size         BIGINT       NOT NULL,
				description       TEXT         NOT NULL,
				category          VARCHAR(50)  NOT NULL,
				status            VARCHAR(20)  NOT NULL DEFAULT 'pending',
				ai_consent        BOOLEAN      NOT NULL DEFAULT FALSE,
				uploaded_at       TIMESTAMPTZ  NOT NULL,
				deletion_deadline TIMESTAMPTZ  NOT NULL,
				created_at        TIMESTAMPTZ  NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_uploads_user_id ON uploads(user_id);
			CREATE INDEX IF NOT EXISTS idx_uploads_uploaded_at ON uploads(uploaded_at);
		`,
	},
	{
		Version: "000003_create_reviews",
		SQL: `
			CREATE TABLE IF NOT EXISTS reviews (
				id            VARCHAR(36)  PRIMARY KEY,
				upload_id     VARCHAR(36)  NOT NULL REFERENCES uploads(id),
				reviewer_id   VARCHAR(36)  NOT NULL REFERENCES users(id),
				rating        VARCHAR(10)  NOT NULL,
				description   TEXT         NOT NULL,
				xp_earned     BIGINT       NOT NULL DEFAULT 15,
				is_flagged    BOOLEAN      NOT NULL DEFAULT FALSE,
				quality_score DOUBLE PRECISION NOT NULL DEFAULT 1.0,
				created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
				UNIQUE (upload_id, reviewer_id)
			);
			CREATE INDEX IF NOT EXISTS idx_reviews_upload_id ON reviews(upload_id);
			CREATE INDEX IF NOT EXISTS idx_reviews_reviewer_id ON reviews(reviewer_id);
		`,
	},
	{
		Version: "000004_create_strikes",
		SQL: `
			CREATE TABLE IF NOT EXISTS strikes (
				id          VARCHAR(36)  PRIMARY KEY,
				user_id     VARCHAR(36)  NOT NULL REFERENCES users(id),
				strike_type VARCHAR(20)  NOT NULL,
				reason      VARCHAR(500) NOT NULL,
				created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_strikes_user_id ON strikes(user_id);
		`,
	},
	{
		Version: "000005_create_feedback",
		SQL: `
			CREATE TABLE IF NOT EXISTS feedback (
				id            VARCHAR(36)  PRIMARY KEY,
				user_id       VARCHAR(36)  NOT NULL REFERENCES users(id),
				rating        INTEGER      NOT NULL,
				category      VARCHAR(50)  NOT NULL,
				description   TEXT         NOT NULL,
				contact_email VARCHAR(120),
				created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
			);
		`,
	},
}

// DB wraps a pgxpool connection pool and provides health checks and migrations.
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("connected to database")
	return &DB{Pool: pool}, nil
}

// RunMigrations applies all pending database migrations in order.
func (db *DB) RunMigrations(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists bool
		err := db.Pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			m.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration status for %s: %w", m.Version, err)
		}
		if exists {
			continue
		}

		tx, err := db.Pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to execute migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Version); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.Version, err)
		}

		slog.Info("applied migration", "version", m.Version)
	}

	return nil
}

// HealthCheck verifies the database connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
