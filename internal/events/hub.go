package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mautops/bounty-gin/internal/websocket"
)

// HubSink 把事件广播给 WebSocket 订阅者。订阅者不在线不算失败
type HubSink struct {
	hub *websocket.Hub
}

// NewHubSink 创建 WebSocket 投递目标
func NewHubSink(hub *websocket.Hub) *HubSink {
	return &HubSink{hub: hub}
}

// Name 投递目标名称
func (s *HubSink) Name() string {
	return "websocket"
}

// Deliver 广播事件
func (s *HubSink) Deliver(_ context.Context, evt *Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	s.hub.Publish(evt.AggregateID, data)
	return nil
}
