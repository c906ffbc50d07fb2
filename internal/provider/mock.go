package provider

import (
	"context"
	"fmt"
	"time"
)

// mockDelay simulates gateway latency so local runs behave like real ones.
const mockDelay = 300 * time.Millisecond

// Mock is the substitute provider for tenants without a connected gateway
// and for local testing. Every send succeeds with a synthetic message id.
type Mock struct {
	Delay time.Duration
}

func NewMock() *Mock {
	return &Mock{Delay: mockDelay}
}

func (m *Mock) Name() string {
	return "mock"
}

func (m *Mock) SendText(ctx context.Context, to, text string, meta Metadata) SendResult {
	return m.simulate(ctx, "text")
}

func (m *Mock) SendGroupText(ctx context.Context, groupID, text string, meta Metadata) SendResult {
	return m.simulate(ctx, "group")
}

func (m *Mock) simulate(ctx context.Context, kind string) SendResult {
	select {
	case <-ctx.Done():
		return SendResult{Error: ctx.Err().Error()}
	case <-time.After(m.Delay):
	}
	return SendResult{
		OK:                true,
		ProviderMessageID: fmt.Sprintf("mock-%s-%d", kind, time.Now().UnixNano()),
		HTTPStatus:        200,
	}
}
