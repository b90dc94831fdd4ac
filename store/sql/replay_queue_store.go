package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/Mithrandiirr/hookwise/core"
	"github.com/uptrace/bun"
)

type ReplayQueueStore struct {
	db   *bun.DB
	repo repository.Repository[*replayItemRecord]
}

func NewReplayQueueStore(db *bun.DB) (*ReplayQueueStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*replayItemRecord](db, replayItemHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid replay queue repository wiring: %w", err)
		}
	}
	return &ReplayQueueStore{db: db, repo: repo}, nil
}

func (s *ReplayQueueStore) PendingBatch(ctx context.Context, endpointID string, limit int) ([]core.ReplayQueueItem, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: replay queue store is not configured")
	}
	trimmedID := strings.TrimSpace(endpointID)
	if trimmedID == "" {
		return nil, fmt.Errorf("sqlstore: endpoint id is required")
	}
	if limit <= 0 {
		limit = 1
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("endpoint_id", "=", trimmedID),
		repository.SelectBy("status", "=", string(core.ReplayStatusPending)),
		repository.OrderBy("position ASC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.ReplayQueueItem, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

// MarkDelivering claims a pending item for one drain pass. The guarded
// update is the claim: when another drainer already flipped the row,
// claimed comes back false with the item's current state.
func (s *ReplayQueueStore) MarkDelivering(ctx context.Context, id string) (core.ReplayQueueItem, bool, error) {
	if s == nil || s.db == nil {
		return core.ReplayQueueItem{}, false, fmt.Errorf("sqlstore: replay queue store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return core.ReplayQueueItem{}, false, fmt.Errorf("sqlstore: replay item id is required")
	}

	var item core.ReplayQueueItem
	claimed := false
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().
			Model((*replayItemRecord)(nil)).
			Set("status = ?", string(core.ReplayStatusDelivering)).
			Set("attempts = attempts + 1").
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", trimmedID).
			Where("status = ?", string(core.ReplayStatusPending)).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		claimed = affected > 0

		record := &replayItemRecord{}
		err = tx.NewSelect().
			Model(record).
			Where("?TableAlias.id = ?", trimmedID).
			Limit(1).
			Scan(ctx)
		if err != nil {
			if isNoRows(err) {
				return core.ErrReplayItemNotFound
			}
			return err
		}
		item = record.toDomain()
		return nil
	})
	if err != nil {
		return core.ReplayQueueItem{}, false, err
	}
	return item, claimed, nil
}

func (s *ReplayQueueStore) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	return s.applyTransition(ctx, id, core.ReplayStatusDelivered,
		[]core.ReplayStatus{core.ReplayStatusPending, core.ReplayStatusDelivering},
		func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.Set("delivered_at = ?", at.UTC())
		})
}

func (s *ReplayQueueStore) MarkSkipped(ctx context.Context, id string) error {
	return s.applyTransition(ctx, id, core.ReplayStatusSkipped,
		[]core.ReplayStatus{core.ReplayStatusPending, core.ReplayStatusDelivering}, nil)
}

func (s *ReplayQueueStore) MarkFailed(ctx context.Context, id string) error {
	return s.applyTransition(ctx, id, core.ReplayStatusFailed,
		[]core.ReplayStatus{core.ReplayStatusDelivering}, nil)
}

func (s *ReplayQueueStore) Requeue(ctx context.Context, id string) error {
	return s.applyTransition(ctx, id, core.ReplayStatusPending,
		[]core.ReplayStatus{core.ReplayStatusDelivering, core.ReplayStatusFailed}, nil)
}

func (s *ReplayQueueStore) Get(ctx context.Context, id string) (core.ReplayQueueItem, error) {
	if s == nil || s.repo == nil {
		return core.ReplayQueueItem{}, fmt.Errorf("sqlstore: replay queue store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if isNoRows(err) {
			return core.ReplayQueueItem{}, core.ErrReplayItemNotFound
		}
		return core.ReplayQueueItem{}, err
	}
	return record.toDomain(), nil
}

func (s *ReplayQueueStore) CountPending(ctx context.Context, endpointID string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: replay queue store is not configured")
	}
	count, err := s.db.NewSelect().
		Model((*replayItemRecord)(nil)).
		Where("?TableAlias.endpoint_id = ?", strings.TrimSpace(endpointID)).
		Where("?TableAlias.status = ?", string(core.ReplayStatusPending)).
		Count(ctx)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// applyTransition flips the item's status when the current status allows
// it. A zero-row update means the item is gone, already in the target
// state, or mid-transition elsewhere; the follow-up read tells which.
func (s *ReplayQueueStore) applyTransition(ctx context.Context, id string, to core.ReplayStatus, from []core.ReplayStatus, decorate func(*bun.UpdateQuery) *bun.UpdateQuery) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: replay queue store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: replay item id is required")
	}

	allowed := make([]string, 0, len(from))
	for _, status := range from {
		allowed = append(allowed, string(status))
	}

	query := s.db.NewUpdate().
		Model((*replayItemRecord)(nil)).
		Set("status = ?", string(to)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", trimmedID).
		Where("status IN (?)", bun.In(allowed))
	if decorate != nil {
		query = decorate(query)
	}

	result, err := query.Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	current, err := s.Get(ctx, trimmedID)
	if err != nil {
		return err
	}
	if current.Status == to {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", core.ErrInvalidReplayStatusTransition, current.Status, to)
}

var _ core.ReplayQueueStore = (*ReplayQueueStore)(nil)
