package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// AMQPSink 把事件发布到 topic 交换机,路由键为事件类型
type AMQPSink struct {
	url        string
	exchange   string
	maxRetries int
	log        *logrus.Entry

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewAMQPSink 创建 AMQP 投递目标,连接在首次投递时建立
func NewAMQPSink(url, exchange string, logger *logrus.Logger) *AMQPSink {
	if exchange == "" {
		exchange = "bounty.events"
	}
	return &AMQPSink{
		url:        url,
		exchange:   exchange,
		maxRetries: 3,
		log:        logger.WithField("component", "amqp"),
	}
}

// Name 投递目标名称
func (s *AMQPSink) Name() string {
	return "amqp"
}

// Deliver 发布持久化消息,发布失败时丢弃连接,下次投递重连
func (s *AMQPSink) Deliver(ctx context.Context, evt *Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureChannel(ctx); err != nil {
		return err
	}

	err = s.channel.Publish(
		s.exchange,
		evt.Type,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    evt.ID,
			Timestamp:    evt.CreatedAt,
			Type:         evt.Type,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		s.reset()
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// ensureChannel 建立连接和通道并声明交换机
func (s *AMQPSink) ensureChannel(ctx context.Context) error {
	if s.channel != nil && s.conn != nil && !s.conn.IsClosed() {
		return nil
	}
	s.reset()

	var err error
	backoff := 500 * time.Millisecond
	for i := 1; i <= s.maxRetries; i++ {
		s.conn, err = amqp.Dial(s.url)
		if err == nil {
			break
		}
		s.log.WithError(err).Warnf("Connect attempt %d/%d failed", i, s.maxRetries)
		if i == s.maxRetries {
			return fmt.Errorf("failed to connect to amqp: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	s.channel, err = s.conn.Channel()
	if err != nil {
		s.reset()
		return fmt.Errorf("failed to open amqp channel: %w", err)
	}
	if err := s.channel.ExchangeDeclare(s.exchange, "topic", true, false, false, false, nil); err != nil {
		s.reset()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	s.log.WithField("exchange", s.exchange).Info("Connected to AMQP broker")
	return nil
}

func (s *AMQPSink) reset() {
	if s.channel != nil {
		_ = s.channel.Close()
		s.channel = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

// Close 关闭连接
func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}
