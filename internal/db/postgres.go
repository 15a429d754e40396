package db

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var DB *pgxpool.Pool

func InitDB() error {
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		dbUser, dbPassword, dbHost, dbPort, dbName)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("[DB] unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("[DB] failed to ping database: %w", err)
	}
	DB = pool

	if err := migrate(ctx, pool); err != nil {
		return err
	}

	slog.Info("[DB] Connected to PostgreSQL successfully")
	return nil
}

func CloseDB() {
	if DB != nil {
		DB.Close()
	}
}

// migrate creates the relational schema. Natural keys are the primary keys
// so repeated ingestion upserts in place; deletes cascade Container→Post→
// Comment.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	ddl := `
    CREATE TABLE IF NOT EXISTS containers (
        name            TEXT PRIMARY KEY,
        last_scraped_at TIMESTAMPTZ
    );

    CREATE TABLE IF NOT EXISTS posts (
        id              TEXT PRIMARY KEY,
        container_name  TEXT NOT NULL REFERENCES containers(name) ON DELETE CASCADE,
        author          TEXT,
        created_at      TIMESTAMPTZ,
        fetched_at      TIMESTAMPTZ NOT NULL,
        text            TEXT,
        num_comments    INT,
        engagement      JSONB,
        raw_payload     JSONB,
        toxicity_score  DOUBLE PRECISION,
        predicted_label INT
    );
    CREATE INDEX IF NOT EXISTS idx_posts_container ON posts (container_name);
    CREATE INDEX IF NOT EXISTS idx_posts_fetched_at ON posts (fetched_at DESC);

    CREATE TABLE IF NOT EXISTS comments (
        id              TEXT PRIMARY KEY,
        post_id         TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
        container_name  TEXT NOT NULL REFERENCES containers(name) ON DELETE CASCADE,
        parent_id       TEXT,
        depth           INT NOT NULL DEFAULT 0,
        author          TEXT,
        created_at      TIMESTAMPTZ,
        fetched_at      TIMESTAMPTZ NOT NULL,
        text            TEXT,
        raw_payload     JSONB,
        toxicity_score  DOUBLE PRECISION,
        predicted_label INT
    );
    CREATE INDEX IF NOT EXISTS idx_comments_post ON comments (post_id);
    CREATE INDEX IF NOT EXISTS idx_comments_container ON comments (container_name);
    `

	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("[DB] failed to run migrations: %w", err)
	}
	return nil
}
