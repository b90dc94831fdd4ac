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

type EventStore struct {
	db   *bun.DB
	repo repository.Repository[*eventRecord]
}

func NewEventStore(db *bun.DB) (*EventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*eventRecord](db, eventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid event repository wiring: %w", err)
		}
	}
	return &EventStore{db: db, repo: repo}, nil
}

func (s *EventStore) Create(ctx context.Context, in core.CreateEventInput) (core.Event, error) {
	if s == nil || s.repo == nil {
		return core.Event{}, fmt.Errorf("sqlstore: event store is not configured")
	}
	if strings.TrimSpace(in.IntegrationID) == "" {
		return core.Event{}, fmt.Errorf("sqlstore: event integration id is required")
	}

	record := newEventRecord(in, time.Now().UTC())
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Event{}, err
	}
	return created.toDomain(), nil
}

func (s *EventStore) Get(ctx context.Context, id string) (core.Event, error) {
	if s == nil || s.repo == nil {
		return core.Event{}, fmt.Errorf("sqlstore: event store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if isNoRows(err) {
			return core.Event{}, core.ErrEventNotFound
		}
		return core.Event{}, err
	}
	return record.toDomain(), nil
}

func (s *EventStore) List(ctx context.Context, filter core.EventFilter) ([]core.Event, int, error) {
	if s == nil || s.repo == nil {
		return nil, 0, fmt.Errorf("sqlstore: event store is not configured")
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
		repository.OrderBy("received_at DESC"),
		repository.SelectPaginate(perPage, offset),
	}
	if integrationID := strings.TrimSpace(filter.IntegrationID); integrationID != "" {
		selectors = append(selectors, repository.SelectBy("integration_id", "=", integrationID))
	}
	if eventType := strings.TrimSpace(filter.EventType); eventType != "" {
		selectors = append(selectors, repository.SelectBy("event_type", "=", eventType))
	}
	if source := strings.TrimSpace(string(filter.Source)); source != "" {
		selectors = append(selectors, repository.SelectBy("source", "=", source))
	}
	if filter.SignatureValid != nil {
		signatureValid := *filter.SignatureValid
		selectors = append(selectors, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.signature_valid = ?", signatureValid)
		}))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, 0, err
	}
	out := make([]core.Event, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, total, nil
}

// ProviderEventIDs collects the provider event IDs seen for an integration
// since the given instant. Events without a provider ID are skipped.
func (s *EventStore) ProviderEventIDs(ctx context.Context, integrationID string, since time.Time) (map[string]struct{}, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: event store is not configured")
	}
	trimmedID := strings.TrimSpace(integrationID)
	if trimmedID == "" {
		return nil, fmt.Errorf("sqlstore: integration id is required")
	}

	var ids []string
	err := s.db.NewSelect().
		Model((*eventRecord)(nil)).
		Column("provider_event_id").
		Where("?TableAlias.integration_id = ?", trimmedID).
		Where("?TableAlias.received_at >= ?", since.UTC()).
		Where("?TableAlias.provider_event_id <> ''").
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return seen, nil
}

// ListUndelivered returns events older than the cutoff that no delivery
// attempt ever touched, oldest first.
func (s *EventStore) ListUndelivered(ctx context.Context, cutoff time.Time, limit int) ([]core.Event, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: event store is not configured")
	}
	if limit <= 0 {
		limit = 100
	}

	var records []eventRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.received_at < ?", cutoff.UTC()).
		Where("NOT EXISTS (SELECT 1 FROM deliveries AS dl WHERE dl.event_id = ?TableAlias.id)").
		Where("NOT EXISTS (SELECT 1 FROM replay_queue AS rq WHERE rq.event_id = ?TableAlias.id AND rq.status IN (?, ?))",
			string(core.ReplayStatusPending), string(core.ReplayStatusDelivering)).
		Order("received_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Event, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

var _ core.EventStore = (*EventStore)(nil)
