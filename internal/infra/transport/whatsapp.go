// Package transport delivers rendered messages through the WhatsApp
// gateway's HTTP API.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/billzap/billzap-go/internal/domain"
)

var tracer = otel.Tracer("transport")

// WhatsAppClient implements port.MessageTransport over the gateway's
// POST /send endpoint. Delivery failures surface as ErrTransport and
// are never retried here; the dispatcher counts them and moves on.
type WhatsAppClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *zap.Logger
}

// NewWhatsAppClient creates a WhatsApp gateway client.
func NewWhatsAppClient(httpClient *http.Client, baseURL, token string, logger *zap.Logger) *WhatsAppClient {
	return &WhatsAppClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		token:      token,
		logger:     logger,
	}
}

type sendRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
}

type sendResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
}

// SendMessage posts one message and returns the gateway's message id.
func (c *WhatsAppClient) SendMessage(ctx context.Context, phone, body string) (string, error) {
	ctx, span := tracer.Start(ctx, "WhatsApp.SendMessage")
	defer span.End()
	span.SetAttributes(attribute.Int("message.length", len(body)))

	reqBody, err := json.Marshal(sendRequest{
		PhoneNumber: phone,
		Message:     body,
	})
	if err != nil {
		return "", &domain.ErrTransport{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send", bytes.NewReader(reqBody))
	if err != nil {
		return "", &domain.ErrTransport{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("whatsapp: send failed", zap.Error(err))
		return "", &domain.ErrTransport{Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		c.logger.Warn("whatsapp: non-success status",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(raw)),
		)
		return "", &domain.ErrTransport{Err: fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(raw))}
	}

	var sr sendResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return "", &domain.ErrTransport{Err: fmt.Errorf("failed to decode json: %w body=%q", err, string(raw))}
	}
	if sr.MessageID == "" {
		return "", &domain.ErrTransport{Err: fmt.Errorf("missing messageId in response body=%q", string(raw))}
	}

	c.logger.Debug("whatsapp: message delivered", zap.String("message_id", sr.MessageID))
	return sr.MessageID, nil
}
