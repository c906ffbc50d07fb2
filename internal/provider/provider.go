// Package provider abstracts the outbound messaging gateway. The worker
// depends only on the Provider interface; a tenant without a connected
// gateway transparently gets the mock implementation.
package provider

import (
	"context"
	"encoding/json"

	"github.com/remindly/reminder-api/internal/model"
)

// SendResult is the uniform outcome of one transport call. Retries never
// happen at this layer; classification and backoff belong to the pipeline.
type SendResult struct {
	OK                bool            `json:"ok"`
	ProviderMessageID string          `json:"provider_message_id,omitempty"`
	Raw               json.RawMessage `json:"raw,omitempty"`
	Error             string          `json:"error,omitempty"`
	HTTPStatus        int             `json:"http_status,omitempty"`
}

// Metadata carries request context the gateway may want to echo back.
type Metadata map[string]string

type Provider interface {
	Name() string
	SendText(ctx context.Context, to, text string, meta Metadata) SendResult
	SendGroupText(ctx context.Context, groupID, text string, meta Metadata) SendResult
}

// Target is the polymorphic delivery destination.
type Target struct {
	Kind    model.TargetKind
	Address string
}

// Send dispatches on the target kind so callers have a single delivery
// path for people and groups.
func Send(ctx context.Context, p Provider, target Target, text string, meta Metadata) SendResult {
	if target.Kind == model.TargetKindGroup {
		return p.SendGroupText(ctx, target.Address, text, meta)
	}
	return p.SendText(ctx, target.Address, text, meta)
}
