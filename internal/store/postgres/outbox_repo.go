package postgres

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"garagebook/internal/domain"
)

// PublishPending claims up to limit unpublished events with SKIP LOCKED so several publishers can
// run side by side, and stamps them published once publish succeeds.
func (s *Store) PublishPending(ctx context.Context, limit int, publish func(ctx context.Context, events []domain.OutboxEvent) error) (int, error) {
	var n int
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var events []domain.OutboxEvent
		q := tx.NewSelect().
			Model(&events).
			Where("o.published_at IS NULL").
			OrderExpr("o.id ASC").
			For("UPDATE SKIP LOCKED")
		if limit > 0 {
			q = q.Limit(limit)
		}
		if err := q.Scan(ctx); err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		if err := publish(ctx, events); err != nil {
			return err
		}

		ids := make([]int64, 0, len(events))
		for _, e := range events {
			ids = append(ids, e.ID)
		}
		_, err := tx.NewUpdate().
			Model((*domain.OutboxEvent)(nil)).
			Set("published_at = ?", time.Now()).
			Where("o.id IN (?)", bun.In(ids)).
			Exec(ctx)
		if err != nil {
			return err
		}
		n = len(events)
		return nil
	})
	return n, err
}
