package provider

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/remindly/reminder-api/internal/repository"
	"github.com/remindly/reminder-api/pkg/logger"
)

const (
	cacheTTL     = 5 * time.Minute
	cacheCleanup = 15 * time.Minute
)

// Factory resolves the delivery provider for a tenant from its gateway
// integration row. Resolved providers are cached briefly so the worker
// does not hit the store on every attempt for the same tenant.
type Factory struct {
	integrations repository.IntegrationRepository
	cache        *cache.Cache
	logger       *logger.Logger
}

func NewFactory(integrations repository.IntegrationRepository, log *logger.Logger) *Factory {
	return &Factory{
		integrations: integrations,
		cache:        cache.New(cacheTTL, cacheCleanup),
		logger:       log,
	}
}

// ForTenant returns the tenant's provider. Tenants without a connected and
// enabled integration get the mock provider.
func (f *Factory) ForTenant(ctx context.Context, tenantID uuid.UUID) (Provider, error) {
	if cached, ok := f.cache.Get(tenantID.String()); ok {
		return cached.(Provider), nil
	}

	integration, err := f.integrations.GetConnected(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var p Provider
	if integration == nil {
		f.logger.Warn("no connected gateway for tenant, using mock provider",
			"tenant_id", tenantID.String())
		p = NewMock()
	} else {
		p = NewGateway(GatewayConfig{
			BaseURL:  integration.BaseURL,
			APIKey:   integration.APIKey,
			Instance: integration.InstanceName,
		}, f.logger)
	}

	f.cache.Set(tenantID.String(), p, cache.DefaultExpiration)
	return p, nil
}

// Invalidate drops a tenant's cached provider, e.g. after its integration
// is reconfigured.
func (f *Factory) Invalidate(tenantID uuid.UUID) {
	f.cache.Delete(tenantID.String())
}
