package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookSink 以 JSON POST 推送事件
type WebhookSink struct {
	url        string
	headers    map[string]string
	httpClient *http.Client
}

// NewWebhookSink 创建 Webhook 投递目标
func NewWebhookSink(url string, headers map[string]string) *WebhookSink {
	return &WebhookSink{
		url:        url,
		headers:    headers,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name 投递目标名称
func (s *WebhookSink) Name() string {
	return "webhook:" + s.url
}

// Deliver 发送事件,非 2xx 视为失败
func (s *WebhookSink) Deliver(ctx context.Context, evt *Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-ID", evt.ID)
	req.Header.Set("X-Event-Type", evt.Type)
	for key, value := range s.headers {
		req.Header.Set(key, value)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status code: %d", resp.StatusCode)
	}
	return nil
}
