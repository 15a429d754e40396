package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spacesedan/toxiflow/internal/models"
)

// rowExecer is the slice of pgx.Tx the upsert statements need.
type rowExecer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Repository owns durable storage of containers, posts and comments with
// upsert-by-natural-key semantics. Each post (with its comments) is one
// transaction; a failure on one post never aborts the rest of the batch.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository() *Repository {
	return &Repository{pool: DB}
}

func NewRepositoryWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertContainer inserts the container or bumps its last_scraped_at.
func (r *Repository) UpsertContainer(ctx context.Context, name string) error {
	query := `
        INSERT INTO containers (name, last_scraped_at)
        VALUES ($1, NOW())
        ON CONFLICT (name) DO UPDATE SET last_scraped_at = NOW()
    `
	if _, err := r.pool.Exec(ctx, query, name); err != nil {
		return fmt.Errorf("[Repository] failed to upsert container %s: %w", name, err)
	}
	return nil
}

// SavePosts persists a batch of flattened posts for a container. Comments are
// capped at maxComments per post. Returns the number of posts committed;
// per-post failures are logged and skipped.
func (r *Repository) SavePosts(ctx context.Context, container string, posts []models.FlatPost, maxComments int) (int, error) {
	if err := r.UpsertContainer(ctx, container); err != nil {
		return 0, err
	}

	count := saveBatch(container, posts, func(flat models.FlatPost) error {
		return r.savePostTx(ctx, container, flat, maxComments)
	})

	slog.Info("[Repository] Saved posts",
		slog.String("container", container),
		slog.Int("saved", count),
		slog.Int("attempted", len(posts)))
	return count, nil
}

// saveBatch commits posts one at a time; a failure on one post is logged and
// skipped so the rest of the batch still lands.
func saveBatch(container string, posts []models.FlatPost, save func(models.FlatPost) error) int {
	count := 0
	for _, flat := range posts {
		if flat.Post.ID == "" {
			continue
		}

		if err := save(flat); err != nil {
			slog.Warn("[Repository] Failed to save post, continuing batch",
				slog.String("post_id", flat.Post.ID),
				slog.String("container", container),
				slog.String("error", err.Error()))
			continue
		}
		count++
	}
	return count
}

func (r *Repository) savePostTx(ctx context.Context, container string, flat models.FlatPost, maxComments int) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := upsertPost(ctx, tx, container, flat.Post); err != nil {
		return err
	}

	comments := flat.Comments
	if maxComments >= 0 && len(comments) > maxComments {
		comments = comments[:maxComments]
	}
	for _, comment := range comments {
		if err := upsertComment(ctx, tx, container, flat.Post.ID, comment); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func upsertPost(ctx context.Context, tx rowExecer, container string, record models.ContentRecord) error {
	engagement, err := json.Marshal(record.Engagement)
	if err != nil {
		engagement = nil
	}

	query := `
        INSERT INTO posts (id, container_name, author, created_at, fetched_at, text, num_comments, engagement, raw_payload)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (id) DO UPDATE SET
            author       = EXCLUDED.author,
            created_at   = EXCLUDED.created_at,
            fetched_at   = GREATEST(posts.fetched_at, EXCLUDED.fetched_at),
            text         = EXCLUDED.text,
            num_comments = EXCLUDED.num_comments,
            engagement   = EXCLUDED.engagement,
            raw_payload  = EXCLUDED.raw_payload
    `
	_, err = tx.Exec(ctx, query,
		record.ID, container, record.Author, record.CreatedAt, record.FetchedAt,
		record.Body, record.NumComments, engagement, []byte(record.Raw))
	if err != nil {
		return fmt.Errorf("failed to upsert post %s: %w", record.ID, err)
	}
	return nil
}

func upsertComment(ctx context.Context, tx rowExecer, container, postID string, record models.ContentRecord) error {
	// Items without a stable identifier are skipped, matching the
	// flattener's permissive handling of malformed nodes.
	if record.ID == "" {
		return nil
	}

	query := `
        INSERT INTO comments (id, post_id, container_name, parent_id, depth, author, created_at, fetched_at, text, raw_payload)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (id) DO UPDATE SET
            parent_id   = EXCLUDED.parent_id,
            depth       = EXCLUDED.depth,
            author      = EXCLUDED.author,
            created_at  = EXCLUDED.created_at,
            fetched_at  = GREATEST(comments.fetched_at, EXCLUDED.fetched_at),
            text        = EXCLUDED.text,
            raw_payload = EXCLUDED.raw_payload
    `
	_, err := tx.Exec(ctx, query,
		record.ID, postID, container, record.ParentID, record.Depth, record.Author,
		record.CreatedAt, record.FetchedAt, record.Body, []byte(record.Raw))
	if err != nil {
		return fmt.Errorf("failed to upsert comment %s: %w", record.ID, err)
	}
	return nil
}

// FetchUnscored returns the most recently fetched items that have text but no
// toxicity score yet, for the downstream scoring collaborator.
func (r *Repository) FetchUnscored(ctx context.Context, limit int) ([]models.UnscoredItem, error) {
	query := `
        SELECT id, kind, container_name, created_at, text FROM (
            SELECT id, 'post' AS kind, container_name, created_at, fetched_at, text
            FROM posts
            WHERE text <> '' AND toxicity_score IS NULL
            UNION ALL
            SELECT id, 'comment' AS kind, container_name, created_at, fetched_at, text
            FROM comments
            WHERE text <> '' AND toxicity_score IS NULL
        ) unscored
        ORDER BY fetched_at DESC
        LIMIT $1
    `

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("[Repository] failed to query unscored items: %w", err)
	}
	defer rows.Close()

	var items []models.UnscoredItem
	for rows.Next() {
		var item models.UnscoredItem
		var createdAt *time.Time
		if err := rows.Scan(&item.ID, &item.Kind, &item.Container, &createdAt, &item.Text); err != nil {
			slog.Warn("[Repository] Failed to scan unscored row", slog.String("error", err.Error()))
			continue
		}
		item.Timestamp = createdAt
		items = append(items, item)
	}

	return items, rows.Err()
}

// UpdateScore writes a toxicity score and predicted label back to a post or
// comment row.
func (r *Repository) UpdateScore(ctx context.Context, kind models.ContentKind, id string, score float64, label int) error {
	table := "posts"
	if kind == models.ContentKindComment {
		table = "comments"
	}

	query := fmt.Sprintf(`UPDATE %s SET toxicity_score = $1, predicted_label = $2 WHERE id = $3`, table)
	if _, err := r.pool.Exec(ctx, query, score, label, id); err != nil {
		return fmt.Errorf("[Repository] failed to update score for %s %s: %w", kind, id, err)
	}
	return nil
}

// DeleteContainer removes a container and, via FK cascade, all of its posts
// and comments. This is an operator action; ingestion never deletes.
func (r *Repository) DeleteContainer(ctx context.Context, name string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM containers WHERE name = $1`, name); err != nil {
		return fmt.Errorf("[Repository] failed to delete container %s: %w", name, err)
	}
	return nil
}
