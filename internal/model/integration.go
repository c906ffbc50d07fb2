package model

import (
	"time"

	"github.com/google/uuid"
)

type IntegrationStatus string

const (
	IntegrationStatusConnected    IntegrationStatus = "connected"
	IntegrationStatusDisconnected IntegrationStatus = "disconnected"
)

// TenantIntegration is a tenant's connection to the messaging gateway.
// When no connected integration exists the pipeline substitutes the mock
// provider instead of failing the delivery.
type TenantIntegration struct {
	ID            uuid.UUID         `json:"id" db:"id"`
	TenantID      uuid.UUID         `json:"tenant_id" db:"tenant_id"`
	Provider      string            `json:"provider" db:"provider"`
	InstanceName  string            `json:"instance_name" db:"instance_name"`
	BaseURL       string            `json:"base_url" db:"base_url"`
	APIKey        string            `json:"-" db:"api_key"`
	WebhookSecret string            `json:"-" db:"webhook_secret"`
	Status        IntegrationStatus `json:"status" db:"status"`
	IsEnabled     bool              `json:"is_enabled" db:"is_enabled"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at" db:"updated_at"`
}
