package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/Mithrandiirr/hookwise/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

type EndpointStore struct {
	db   *bun.DB
	repo repository.Repository[*endpointRecord]
}

func NewEndpointStore(db *bun.DB) (*EndpointStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*endpointRecord](db, endpointHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid endpoint repository wiring: %w", err)
		}
	}
	return &EndpointStore{db: db, repo: repo}, nil
}

// Create provisions the health row for an integration. Each integration has
// exactly one endpoint; creating twice returns the existing row.
func (s *EndpointStore) Create(ctx context.Context, integrationID string) (core.Endpoint, error) {
	if s == nil || s.repo == nil {
		return core.Endpoint{}, fmt.Errorf("sqlstore: endpoint store is not configured")
	}
	trimmedID := strings.TrimSpace(integrationID)
	if trimmedID == "" {
		return core.Endpoint{}, fmt.Errorf("sqlstore: integration id is required")
	}

	record := newEndpointRecord(trimmedID, time.Now().UTC())
	record.ID = uuid.NewString()
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return s.GetByIntegration(ctx, trimmedID)
		}
		return core.Endpoint{}, err
	}
	return record.toDomain(), nil
}

func (s *EndpointStore) Get(ctx context.Context, id string) (core.Endpoint, error) {
	if s == nil || s.repo == nil {
		return core.Endpoint{}, fmt.Errorf("sqlstore: endpoint store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if isNoRows(err) {
			return core.Endpoint{}, core.ErrEndpointNotFound
		}
		return core.Endpoint{}, err
	}
	return record.toDomain(), nil
}

func (s *EndpointStore) GetByIntegration(ctx context.Context, integrationID string) (core.Endpoint, error) {
	if s == nil || s.repo == nil {
		return core.Endpoint{}, fmt.Errorf("sqlstore: endpoint store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("integration_id", "=", strings.TrimSpace(integrationID)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Endpoint{}, err
	}
	if len(records) == 0 {
		return core.Endpoint{}, core.ErrEndpointNotFound
	}
	return records[0].toDomain(), nil
}

func (s *EndpointStore) ListByState(ctx context.Context, state core.CircuitState) ([]core.Endpoint, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: endpoint store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("circuit_state", "=", string(state)),
		repository.OrderBy("state_changed_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Endpoint, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

// MutateLocked loads the endpoint under its row lock, hands it to fn
// together with the most recent delivery samples, and persists whatever fn
// left behind. Concurrent recorders serialize on the lock, so circuit
// counters never lose updates.
func (s *EndpointStore) MutateLocked(ctx context.Context, endpointID string, windowLimit int, fn core.EndpointMutator) (core.Endpoint, error) {
	if s == nil || s.db == nil {
		return core.Endpoint{}, fmt.Errorf("sqlstore: endpoint store is not configured")
	}
	trimmedID := strings.TrimSpace(endpointID)
	if trimmedID == "" {
		return core.Endpoint{}, fmt.Errorf("sqlstore: endpoint id is required")
	}
	if fn == nil {
		return core.Endpoint{}, fmt.Errorf("sqlstore: endpoint mutator is required")
	}

	var out core.Endpoint
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := s.lockEndpoint(ctx, tx, trimmedID)
		if err != nil {
			return err
		}

		var window []core.DeliverySample
		if windowLimit > 0 {
			window, err = loadDeliveryWindow(ctx, tx, trimmedID, windowLimit)
			if err != nil {
				return err
			}
		}

		endpoint := record.toDomain()
		if err := fn(&endpoint, window); err != nil {
			return err
		}

		record.applyDomain(endpoint, time.Now().UTC())
		if _, err := tx.NewUpdate().Model(record).WherePK().Exec(ctx); err != nil {
			return err
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.Endpoint{}, err
	}
	return out, nil
}

// EnqueueReplay appends an item at the tail of the endpoint's replay queue.
// The position is assigned under the endpoint row lock so two writers never
// claim the same slot.
func (s *EndpointStore) EnqueueReplay(ctx context.Context, in core.EnqueueReplayInput) (core.ReplayQueueItem, error) {
	if s == nil || s.db == nil {
		return core.ReplayQueueItem{}, fmt.Errorf("sqlstore: endpoint store is not configured")
	}
	endpointID := strings.TrimSpace(in.EndpointID)
	eventID := strings.TrimSpace(in.EventID)
	if endpointID == "" || eventID == "" {
		return core.ReplayQueueItem{}, fmt.Errorf("sqlstore: endpoint id and event id are required")
	}

	var out core.ReplayQueueItem
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.lockEndpoint(ctx, tx, endpointID); err != nil {
			return err
		}
		position, err := nextPosition(ctx, tx, endpointID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		record := &replayItemRecord{
			ID:             uuid.NewString(),
			EndpointID:     endpointID,
			EventID:        eventID,
			Position:       position,
			CorrelationKey: strings.TrimSpace(in.CorrelationKey),
			Status:         string(core.ReplayStatusPending),
			Attempts:       0,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return err
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.ReplayQueueItem{}, err
	}
	return out, nil
}

func (s *EndpointStore) NextReplayPosition(ctx context.Context, endpointID string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: endpoint store is not configured")
	}
	trimmedID := strings.TrimSpace(endpointID)
	if trimmedID == "" {
		return 0, fmt.Errorf("sqlstore: endpoint id is required")
	}
	var position int64
	err := s.db.NewSelect().
		Model((*replayItemRecord)(nil)).
		ColumnExpr("COALESCE(MAX(?TableAlias.position), 0)").
		Where("?TableAlias.endpoint_id = ?", trimmedID).
		Scan(ctx, &position)
	if err != nil {
		return 0, err
	}
	return position + 1, nil
}

// lockEndpoint loads the row inside the transaction. Postgres takes an
// explicit row lock; SQLite already serializes writing transactions.
func (s *EndpointStore) lockEndpoint(ctx context.Context, tx bun.Tx, id string) (*endpointRecord, error) {
	record := &endpointRecord{}
	query := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1)
	if s.db.Dialect().Name() == dialect.PG {
		query = query.For("UPDATE")
	}
	if err := query.Scan(ctx); err != nil {
		if isNoRows(err) {
			return nil, core.ErrEndpointNotFound
		}
		return nil, err
	}
	return record, nil
}

func loadDeliveryWindow(ctx context.Context, tx bun.Tx, endpointID string, limit int) ([]core.DeliverySample, error) {
	var records []deliveryRecord
	err := tx.NewSelect().
		Model(&records).
		Column("status", "response_time_ms").
		Where("?TableAlias.endpoint_id = ?", endpointID).
		Order("attempted_at DESC", "created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	samples := make([]core.DeliverySample, 0, len(records))
	for _, record := range records {
		samples = append(samples, core.DeliverySample{
			Success:        record.Status == string(core.DeliveryStatusDelivered),
			ResponseTimeMS: record.ResponseTimeMS,
		})
	}
	return samples, nil
}

func nextPosition(ctx context.Context, tx bun.Tx, endpointID string) (int64, error) {
	var position int64
	err := tx.NewSelect().
		Model((*replayItemRecord)(nil)).
		ColumnExpr("COALESCE(MAX(?TableAlias.position), 0)").
		Where("?TableAlias.endpoint_id = ?", endpointID).
		Scan(ctx, &position)
	if err != nil {
		return 0, err
	}
	return position + 1, nil
}

var _ core.EndpointStore = (*EndpointStore)(nil)
