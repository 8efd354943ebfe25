package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"support-router/logger"
)

// OutboundMetadata tags every automated reply so its echo can be told
// apart from a human agent typing in the page inbox.
const OutboundMetadata = "support-router:automated"

// messengerTextLimit is the Send API maximum for a text message.
const messengerTextLimit = 2000

// graphErrorResponse is the error envelope returned by the Graph API.
type graphErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// MessengerClient sends replies to end users through the Send API.
type MessengerClient struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// NewMessengerClient creates a Send API client. timeout bounds each call.
func NewMessengerClient(baseURL, accessToken string, timeout time.Duration) *MessengerClient {
	return &MessengerClient{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Send delivers text to a user, splitting it when it exceeds the API limit.
func (m *MessengerClient) Send(ctx context.Context, recipientID, text string) error {
	if m.accessToken == "" {
		logger.FromContext(ctx).Warn("Messenger not configured, dropping reply",
			zap.String("recipient_id", recipientID),
			zap.String("text", text))
		return ErrNotConfigured
	}

	for _, chunk := range splitText(text, messengerTextLimit) {
		if err := m.sendOne(ctx, recipientID, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (m *MessengerClient) sendOne(ctx context.Context, recipientID, text string) error {
	endpoint := fmt.Sprintf("%s/me/messages?access_token=%s", m.baseURL, url.QueryEscape(m.accessToken))

	payload := map[string]interface{}{
		"recipient":      map[string]string{"id": recipientID},
		"messaging_type": "RESPONSE",
		"message": map[string]string{
			"text":     text,
			"metadata": OutboundMetadata,
		},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		GatewayFailuresTotal.WithLabelValues("messenger").Inc()
		return fmt.Errorf("messenger send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		GatewayFailuresTotal.WithLabelValues("messenger").Inc()
		return graphError("messenger send", resp)
	}

	logger.FromContext(ctx).Debug("Messenger reply sent", zap.String("recipient_id", recipientID))
	return nil
}

func graphError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var ge graphErrorResponse
	if json.Unmarshal(body, &ge) == nil && ge.Error.Message != "" {
		return fmt.Errorf("%s: %s (code %d): %s", op, resp.Status, ge.Error.Code, ge.Error.Message)
	}
	return fmt.Errorf("%s: %s", op, resp.Status)
}

// splitText cuts text into rune-safe chunks of at most limit runes.
func splitText(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}
	var chunks []string
	for len(runes) > 0 {
		n := limit
		if len(runes) < n {
			n = len(runes)
		}
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}
