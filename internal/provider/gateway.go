package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/remindly/reminder-api/pkg/logger"
)

// SendTimeout bounds a single transport call. A timeout is reported as a
// retryable failure; the pipeline decides whether to try again.
const SendTimeout = 15 * time.Second

type GatewayConfig struct {
	BaseURL  string
	APIKey   string
	Instance string
}

// Gateway talks to the third-party messaging gateway over HTTP. One call
// per attempt, no transport-level retries.
type Gateway struct {
	config GatewayConfig
	client *http.Client
	logger *logger.Logger
}

func NewGateway(config GatewayConfig, log *logger.Logger) *Gateway {
	return &Gateway{
		config: config,
		client: &http.Client{Timeout: SendTimeout},
		logger: log,
	}
}

func (g *Gateway) Name() string {
	return "gateway"
}

func (g *Gateway) SendText(ctx context.Context, to, text string, meta Metadata) SendResult {
	return g.send(ctx, to, text)
}

// SendGroupText routes through the same endpoint; the gateway resolves
// group handles from the address itself.
func (g *Gateway) SendGroupText(ctx context.Context, groupID, text string, meta Metadata) SendResult {
	return g.send(ctx, groupID, text)
}

type sendRequest struct {
	Number      string `json:"number"`
	Text        string `json:"text"`
	LinkPreview bool   `json:"linkPreview"`
}

type sendResponse struct {
	Message string `json:"message"`
	Key     struct {
		ID string `json:"id"`
	} `json:"key"`
}

func (g *Gateway) send(ctx context.Context, to, text string) SendResult {
	body, err := json.Marshal(sendRequest{Number: to, Text: text})
	if err != nil {
		return SendResult{Error: fmt.Sprintf("failed to encode request: %v", err)}
	}

	url := fmt.Sprintf("%s/message/sendText/%s", g.config.BaseURL, g.config.Instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return SendResult{Error: fmt.Sprintf("failed to build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", g.config.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return SendResult{Error: fmt.Sprintf("request timeout (%s)", SendTimeout), HTTPStatus: http.StatusRequestTimeout}
		}
		return SendResult{Error: err.Error(), HTTPStatus: http.StatusInternalServerError}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return SendResult{Error: fmt.Sprintf("failed to read response: %v", err), HTTPStatus: resp.StatusCode}
	}

	var parsed sendResponse
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errMsg := parsed.Message
		if errMsg == "" {
			errMsg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return SendResult{Error: errMsg, Raw: raw, HTTPStatus: resp.StatusCode}
	}

	return SendResult{
		OK:                true,
		ProviderMessageID: parsed.Key.ID,
		Raw:               raw,
		HTTPStatus:        resp.StatusCode,
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
