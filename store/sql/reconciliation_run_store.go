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

type ReconciliationRunStore struct {
	db   *bun.DB
	repo repository.Repository[*reconciliationRunRecord]
}

func NewReconciliationRunStore(db *bun.DB) (*ReconciliationRunStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*reconciliationRunRecord](db, reconciliationRunHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid reconciliation run repository wiring: %w", err)
		}
	}
	return &ReconciliationRunStore{db: db, repo: repo}, nil
}

func (s *ReconciliationRunStore) Create(ctx context.Context, in core.CreateReconciliationRunInput) (core.ReconciliationRun, error) {
	if s == nil || s.repo == nil {
		return core.ReconciliationRun{}, fmt.Errorf("sqlstore: reconciliation run store is not configured")
	}
	if strings.TrimSpace(in.IntegrationID) == "" {
		return core.ReconciliationRun{}, fmt.Errorf("sqlstore: reconciliation integration id is required")
	}

	record := newReconciliationRunRecord(in, time.Now().UTC())
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.ReconciliationRun{}, err
	}
	return created.toDomain(), nil
}

func (s *ReconciliationRunStore) List(ctx context.Context, integrationID string, limit int) ([]core.ReconciliationRun, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: reconciliation run store is not configured")
	}
	if limit <= 0 {
		limit = 25
	}
	selectors := []repository.SelectCriteria{
		repository.OrderBy("ran_at DESC"),
		repository.SelectPaginate(limit, 0),
	}
	if trimmed := strings.TrimSpace(integrationID); trimmed != "" {
		selectors = append(selectors, repository.SelectBy("integration_id", "=", trimmed))
	}

	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}
	out := make([]core.ReconciliationRun, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

var _ core.ReconciliationRunStore = (*ReconciliationRunStore)(nil)
