package websocket

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Message 广播消息,AggregateID 用于按任务或提交过滤
type Message struct {
	AggregateID string
	Data        []byte
}

// Hub 管理所有 WebSocket 连接
type Hub struct {
	// 已注册的客户端
	clients map[*Client]bool

	// 广播消息到订阅的客户端
	Broadcast chan Message

	// 注册新客户端
	Register chan *Client

	// 注销客户端
	Unregister chan *Client

	log *logrus.Entry

	// 互斥锁，保护 clients map
	mu sync.RWMutex
}

// NewHub 创建新的 Hub
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		Broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		log:        logger.WithField("component", "websocket"),
	}
}

// Run 运行 Hub,ctx 结束时关闭所有客户端
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case message := <-h.Broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.Subscribed(message.AggregateID) {
					continue
				}
				select {
				case client.Send <- message.Data:
				default:
					// 客户端消费过慢
					h.remove(client)
				}
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.remove(client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// remove 调用方需持有写锁
func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
	}
}

// Publish 非阻塞投递广播,队列满时丢弃并返回 false
func (h *Hub) Publish(aggregateID string, data []byte) bool {
	select {
	case h.Broadcast <- Message{AggregateID: aggregateID, Data: data}:
		return true
	default:
		h.log.WithField("aggregate_id", aggregateID).Warn("Broadcast queue full, dropping message")
		return false
	}
}

// HasClient 检查客户端是否存在
func (h *Hub) HasClient(clientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.ID == clientID {
			return true
		}
	}
	return false
}

// GetClientCount 获取客户端数量
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}
