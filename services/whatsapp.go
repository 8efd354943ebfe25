package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"support-router/logger"
)

const whatsappTextLimit = 4096

// WhatsAppClient delivers notifications to the support team's number
// through the WhatsApp Cloud API.
type WhatsAppClient struct {
	baseURL       string
	phoneNumberID string
	accessToken   string
	supportNumber string
	httpClient    *http.Client
}

func NewWhatsAppClient(baseURL, phoneNumberID, accessToken, supportNumber string, timeout time.Duration) *WhatsAppClient {
	return &WhatsAppClient{
		baseURL:       baseURL,
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		supportNumber: supportNumber,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

// Send posts text to the support number. Text past the API limit is cut.
func (w *WhatsAppClient) Send(ctx context.Context, text string) error {
	if w.phoneNumberID == "" || w.accessToken == "" || w.supportNumber == "" {
		logger.FromContext(ctx).Warn("WhatsApp not configured, dropping support notification",
			zap.String("text", text))
		return ErrNotConfigured
	}

	if runes := []rune(text); len(runes) > whatsappTextLimit {
		text = string(runes[:whatsappTextLimit-1]) + "…"
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                w.supportNumber,
		"type":              "text",
		"text":              map[string]string{"body": text},
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/%s/messages", w.baseURL, w.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.accessToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		GatewayFailuresTotal.WithLabelValues("whatsapp").Inc()
		return fmt.Errorf("whatsapp send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		GatewayFailuresTotal.WithLabelValues("whatsapp").Inc()
		return graphError("whatsapp send", resp)
	}

	logger.FromContext(ctx).Info("Support notification sent")
	return nil
}
