package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/Mithrandiirr/hookwise/core"
	"github.com/uptrace/bun"
)

type IntegrationStore struct {
	db   *bun.DB
	repo repository.Repository[*integrationRecord]
}

func NewIntegrationStore(db *bun.DB) (*IntegrationStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*integrationRecord](db, integrationHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid integration repository wiring: %w", err)
		}
	}
	return &IntegrationStore{db: db, repo: repo}, nil
}

func (s *IntegrationStore) Create(ctx context.Context, in core.CreateIntegrationInput) (core.Integration, error) {
	if s == nil || s.repo == nil {
		return core.Integration{}, fmt.Errorf("sqlstore: integration store is not configured")
	}
	if strings.TrimSpace(in.OwnerID) == "" {
		return core.Integration{}, fmt.Errorf("sqlstore: integration owner id is required")
	}
	if _, err := core.ParseProvider(string(in.Provider)); err != nil {
		return core.Integration{}, err
	}
	if strings.TrimSpace(in.SigningSecret) == "" {
		return core.Integration{}, fmt.Errorf("sqlstore: integration signing secret is required")
	}
	if err := validateDestinationURL(in.DestinationURL); err != nil {
		return core.Integration{}, err
	}

	record := newIntegrationRecord(in, time.Now().UTC())
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Integration{}, err
	}
	return created.toDomain(), nil
}

func (s *IntegrationStore) Get(ctx context.Context, id string) (core.Integration, error) {
	if s == nil || s.repo == nil {
		return core.Integration{}, fmt.Errorf("sqlstore: integration store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if isNoRows(err) {
			return core.Integration{}, core.ErrIntegrationNotFound
		}
		return core.Integration{}, err
	}
	return record.toDomain(), nil
}

func (s *IntegrationStore) List(ctx context.Context, filter core.IntegrationFilter) ([]core.Integration, int, error) {
	if s == nil || s.repo == nil {
		return nil, 0, fmt.Errorf("sqlstore: integration store is not configured")
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
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.deleted_at IS NULL")
		}),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(perPage, offset),
	}
	if ownerID := strings.TrimSpace(filter.OwnerID); ownerID != "" {
		selectors = append(selectors, repository.SelectBy("owner_id", "=", ownerID))
	}
	if provider := strings.TrimSpace(string(filter.Provider)); provider != "" {
		selectors = append(selectors, repository.SelectBy("provider", "=", provider))
	}
	if status := strings.TrimSpace(string(filter.Status)); status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", status))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, 0, err
	}
	out := make([]core.Integration, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, total, nil
}

func (s *IntegrationStore) Update(ctx context.Context, id string, in core.UpdateIntegrationInput) (core.Integration, error) {
	if s == nil || s.repo == nil {
		return core.Integration{}, fmt.Errorf("sqlstore: integration store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return core.Integration{}, fmt.Errorf("sqlstore: integration id is required")
	}
	current, err := s.repo.GetByID(ctx, trimmedID)
	if err != nil {
		if isNoRows(err) {
			return core.Integration{}, core.ErrIntegrationNotFound
		}
		return core.Integration{}, err
	}
	if in.SigningSecret != nil {
		if strings.TrimSpace(*in.SigningSecret) == "" {
			return core.Integration{}, fmt.Errorf("sqlstore: integration signing secret is required")
		}
		current.SigningSecret = *in.SigningSecret
	}
	if in.DestinationURL != nil {
		if err := validateDestinationURL(*in.DestinationURL); err != nil {
			return core.Integration{}, err
		}
		current.DestinationURL = strings.TrimSpace(*in.DestinationURL)
	}
	if in.ForwardInvalid != nil {
		current.ForwardInvalid = *in.ForwardInvalid
	}
	if in.SealedCredential != nil {
		current.SealedCredential = append([]byte(nil), (*in.SealedCredential)...)
	}
	current.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.Update(ctx, current, repository.UpdateByID(trimmedID))
	if err != nil {
		return core.Integration{}, err
	}
	return updated.toDomain(), nil
}

func (s *IntegrationStore) UpdateStatus(ctx context.Context, id string, status core.IntegrationStatus, reason string) (core.Integration, error) {
	if s == nil || s.repo == nil {
		return core.Integration{}, fmt.Errorf("sqlstore: integration store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return core.Integration{}, fmt.Errorf("sqlstore: integration id is required")
	}
	current, err := s.repo.GetByID(ctx, trimmedID)
	if err != nil {
		if isNoRows(err) {
			return core.Integration{}, core.ErrIntegrationNotFound
		}
		return core.Integration{}, err
	}

	integration := current.toDomain()
	if err := integration.TransitionTo(status, reason, time.Now().UTC()); err != nil {
		return core.Integration{}, err
	}
	current.Status = string(integration.Status)
	current.LastError = integration.LastError
	current.UpdatedAt = integration.UpdatedAt

	updated, err := s.repo.Update(ctx, current, repository.UpdateByID(trimmedID))
	if err != nil {
		return core.Integration{}, err
	}
	return updated.toDomain(), nil
}

// ListReconcilable returns active integrations that hold a sealed provider
// credential. Whether the provider can actually be reconciled is decided by
// the caller against the adapter registry.
func (s *IntegrationStore) ListReconcilable(ctx context.Context) ([]core.Integration, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: integration store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("status", "=", string(core.IntegrationStatusActive)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.deleted_at IS NULL").
				Where("?TableAlias.sealed_credential IS NOT NULL").
				Where("length(?TableAlias.sealed_credential) > 0")
		}),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Integration, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *IntegrationStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: integration store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: integration id is required")
	}
	// soft_delete model: bun turns this into UPDATE ... SET deleted_at.
	result, err := s.db.NewDelete().
		Model((*integrationRecord)(nil)).
		Where("?TableAlias.id = ?", trimmedID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.ErrIntegrationNotFound
	}
	return nil
}

func validateDestinationURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("sqlstore: integration destination url is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("sqlstore: invalid destination url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("sqlstore: destination url must be http or https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("sqlstore: destination url host is required")
	}
	return nil
}

func isNoRows(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no rows in result set")
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

var _ core.IntegrationStore = (*IntegrationStore)(nil)
