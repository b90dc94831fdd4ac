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
)

type DeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*deliveryRecord]
}

func NewDeliveryStore(db *bun.DB) (*DeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*deliveryRecord](db, deliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid delivery repository wiring: %w", err)
		}
	}
	return &DeliveryStore{db: db, repo: repo}, nil
}

// Create records one delivery attempt. The (event_id, attempt) pair is
// unique, so recording the same attempt twice returns the first row with
// deduped set instead of a second insert.
func (s *DeliveryStore) Create(ctx context.Context, in core.CreateDeliveryInput) (core.Delivery, bool, error) {
	if s == nil || s.db == nil {
		return core.Delivery{}, false, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	eventID := strings.TrimSpace(in.EventID)
	endpointID := strings.TrimSpace(in.EndpointID)
	if eventID == "" || endpointID == "" {
		return core.Delivery{}, false, fmt.Errorf("sqlstore: event id and endpoint id are required")
	}
	if in.Attempt < 0 {
		return core.Delivery{}, false, fmt.Errorf("sqlstore: delivery attempt must not be negative")
	}

	record := newDeliveryRecord(in, time.Now().UTC())
	record.ID = uuid.NewString()
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			existing, getErr := s.getByEventAttempt(ctx, eventID, in.Attempt)
			if getErr != nil {
				return core.Delivery{}, false, getErr
			}
			return existing, true, nil
		}
		return core.Delivery{}, false, err
	}
	return record.toDomain(), false, nil
}

func (s *DeliveryStore) Get(ctx context.Context, id string) (core.Delivery, error) {
	if s == nil || s.repo == nil {
		return core.Delivery{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if isNoRows(err) {
			return core.Delivery{}, core.ErrDeliveryNotFound
		}
		return core.Delivery{}, err
	}
	return record.toDomain(), nil
}

func (s *DeliveryStore) List(ctx context.Context, filter core.DeliveryFilter) ([]core.Delivery, int, error) {
	if s == nil || s.repo == nil {
		return nil, 0, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 25
	}
	offset := (page - 1) * perPage

	selectors := []repository.SelectCriteria{
		repository.OrderBy("attempted_at DESC"),
		repository.SelectPaginate(perPage, offset),
	}
	if eventID := strings.TrimSpace(filter.EventID); eventID != "" {
		selectors = append(selectors, repository.SelectBy("event_id", "=", eventID))
	}
	if endpointID := strings.TrimSpace(filter.EndpointID); endpointID != "" {
		selectors = append(selectors, repository.SelectBy("endpoint_id", "=", endpointID))
	}
	if status := strings.TrimSpace(string(filter.Status)); status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", status))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, 0, err
	}
	out := make([]core.Delivery, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, total, nil
}

func (s *DeliveryStore) ListByEvent(ctx context.Context, eventID string) ([]core.Delivery, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("event_id", "=", strings.TrimSpace(eventID)),
		repository.OrderBy("attempt ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Delivery, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *DeliveryStore) MarkStatus(ctx context.Context, id string, status core.DeliveryStatus) (core.Delivery, error) {
	if s == nil || s.repo == nil {
		return core.Delivery{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return core.Delivery{}, fmt.Errorf("sqlstore: delivery id is required")
	}
	current, err := s.repo.GetByID(ctx, trimmedID)
	if err != nil {
		if isNoRows(err) {
			return core.Delivery{}, core.ErrDeliveryNotFound
		}
		return core.Delivery{}, err
	}

	delivery := current.toDomain()
	if err := delivery.TransitionTo(status); err != nil {
		return core.Delivery{}, err
	}
	current.Status = string(delivery.Status)

	updated, err := s.repo.Update(ctx, current, repository.UpdateByID(trimmedID))
	if err != nil {
		return core.Delivery{}, err
	}
	return updated.toDomain(), nil
}

// HasDeliveredProviderEvent reports whether some other event carrying the
// same provider event ID was already delivered for this integration. Used
// by the replay drain to skip duplicates the provider retried under a new
// internal event.
func (s *DeliveryStore) HasDeliveredProviderEvent(ctx context.Context, integrationID, providerEventID, excludeEventID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	providerEventID = strings.TrimSpace(providerEventID)
	if providerEventID == "" {
		return false, nil
	}

	count, err := s.db.NewSelect().
		Model((*deliveryRecord)(nil)).
		Join("JOIN events AS ev ON ev.id = ?TableAlias.event_id").
		Where("ev.integration_id = ?", strings.TrimSpace(integrationID)).
		Where("ev.provider_event_id = ?", providerEventID).
		Where("ev.id <> ?", strings.TrimSpace(excludeEventID)).
		Where("?TableAlias.status = ?", string(core.DeliveryStatusDelivered)).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *DeliveryStore) getByEventAttempt(ctx context.Context, eventID string, attempt int) (core.Delivery, error) {
	record := &deliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.event_id = ?", eventID).
		Where("?TableAlias.attempt = ?", attempt).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return core.Delivery{}, core.ErrDeliveryNotFound
		}
		return core.Delivery{}, err
	}
	return record.toDomain(), nil
}

var _ core.DeliveryStore = (*DeliveryStore)(nil)
