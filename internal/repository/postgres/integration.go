package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/remindly/reminder-api/internal/model"
	"github.com/remindly/reminder-api/internal/repository"
)

type integrationRepository struct {
	BaseRepository
}

func NewIntegrationRepository(base BaseRepository) repository.IntegrationRepository {
	return &integrationRepository{base}
}

func (r *integrationRepository) GetConnected(ctx context.Context, tenantID uuid.UUID) (*model.TenantIntegration, error) {
	query := `
		SELECT id, tenant_id, provider, instance_name, base_url, api_key,
		       webhook_secret, status, is_enabled, created_at, updated_at
		FROM tenant_integrations
		WHERE tenant_id = $1 AND status = 'connected' AND is_enabled = TRUE
		LIMIT 1
	`

	var integration model.TenantIntegration
	if err := r.db.GetContext(ctx, &integration, query, tenantID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tenant integration: %w", err)
	}
	return &integration, nil
}

func (r *integrationRepository) GetByInstanceName(ctx context.Context, name string) (*model.TenantIntegration, error) {
	query := `
		SELECT id, tenant_id, provider, instance_name, base_url, api_key,
		       webhook_secret, status, is_enabled, created_at, updated_at
		FROM tenant_integrations
		WHERE instance_name = $1
		LIMIT 1
	`

	var integration model.TenantIntegration
	if err := r.db.GetContext(ctx, &integration, query, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get integration by instance: %w", err)
	}
	return &integration, nil
}
