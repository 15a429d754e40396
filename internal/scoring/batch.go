package scoring

import (
	"context"
	"log/slog"

	"github.com/spacesedan/toxiflow/internal/models"
)

// ScoreStore is the slice of the repository the scorer needs.
type ScoreStore interface {
	FetchUnscored(ctx context.Context, limit int) ([]models.UnscoredItem, error)
	UpdateScore(ctx context.Context, kind models.ContentKind, id string, score float64, label int) error
}

// ScoreBatch pulls the most recently fetched unscored items, scores them at
// the given labeling threshold and writes the results back. Returns the
// number of items scored; a write failure on one item does not stop the
// batch.
func ScoreBatch(ctx context.Context, store ScoreStore, batchSize int, threshold float64) (int, error) {
	items, err := store.FetchUnscored(ctx, batchSize)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	scored := 0
	for _, item := range items {
		select {
		case <-ctx.Done():
			return scored, ctx.Err()
		default:
		}

		score, label := ScoreToxicityAt(item.Text, threshold)
		if err := store.UpdateScore(ctx, item.Kind, item.ID, score, label); err != nil {
			slog.Warn("[Scorer] Failed to store score",
				slog.String("id", item.ID),
				slog.String("error", err.Error()))
			continue
		}
		scored++
	}

	slog.Info("[Scorer] Scored batch",
		slog.Int("scored", scored),
		slog.Int("fetched", len(items)))
	return scored, nil
}
