package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mautops/bounty-gin/internal/metrics"
	"github.com/mautops/bounty-gin/internal/model"
	"github.com/mautops/bounty-gin/internal/repository"
	"github.com/sirupsen/logrus"
)

// Event 投递给外部订阅方的事件
type Event struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   time.Time       `json:"created_at"`
}

// FromModel 从发件箱记录构造事件
func FromModel(m *model.EventModel) *Event {
	return &Event{
		ID:          m.ID,
		Type:        m.Type,
		AggregateID: m.AggregateID,
		Data:        json.RawMessage(m.Data),
		CreatedAt:   m.CreatedAt,
	}
}

// Sink 事件投递目标
type Sink interface {
	Name() string
	Deliver(ctx context.Context, evt *Event) error
}

// Options 分发器参数
type Options struct {
	Workers      int
	BatchSize    int
	MaxRetries   int
	PollInterval time.Duration
}

// Dispatcher 轮询发件箱并把待投递事件推送到所有 Sink
type Dispatcher struct {
	repo  repository.EventRepository
	sinks []Sink
	opts  Options
	log   *logrus.Entry
	now   func() time.Time

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewDispatcher 创建事件分发器
func NewDispatcher(repo repository.EventRepository, sinks []Sink, opts Options, logger *logrus.Logger) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	return &Dispatcher{
		repo:  repo,
		sinks: sinks,
		opts:  opts,
		log:   logger.WithField("component", "events"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Start 启动轮询
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	d.stop = make(chan struct{})

	d.wg.Add(1)
	go d.loop(ctx)
}

// Stop 停止轮询,等待当前批次完成
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.stop)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := d.DispatchPending(ctx); err != nil {
				d.log.WithError(err).Error("Failed to dispatch events")
			}
		case <-d.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// DispatchPending 投递一批待处理事件,返回成功数量。批次内并发投递,全部完成后返回
func (d *Dispatcher) DispatchPending(ctx context.Context) (int, error) {
	pending, err := d.repo.FindPending(ctx, d.opts.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to find pending events: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	jobs := make(chan *model.EventModel)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered int
	)
	workers := d.opts.Workers
	if workers > len(pending) {
		workers = len(pending)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				if d.handle(ctx, m) {
					mu.Lock()
					delivered++
					mu.Unlock()
				}
			}
		}()
	}
	for _, m := range pending {
		jobs <- m
	}
	close(jobs)
	wg.Wait()

	return delivered, nil
}

// handle 投递单个事件并更新发件箱状态
func (d *Dispatcher) handle(ctx context.Context, m *model.EventModel) bool {
	evt := FromModel(m)
	entry := d.log.WithFields(logrus.Fields{"event_id": m.ID, "type": m.Type})

	err := d.deliver(ctx, evt)
	metrics.RecordEventDelivery(err == nil)
	if err == nil {
		if markErr := d.repo.MarkSuccess(ctx, m.ID, d.now()); markErr != nil {
			entry.WithError(markErr).Error("Failed to mark event delivered")
		}
		return true
	}

	retries := m.RetryCount + 1
	final := retries >= d.opts.MaxRetries
	if markErr := d.repo.MarkFailed(ctx, m.ID, retries, err.Error(), final, d.now()); markErr != nil {
		entry.WithError(markErr).Error("Failed to mark event failed")
	}
	entry = entry.WithError(err).WithField("retry_count", retries)
	if final {
		entry.Error("Event delivery failed permanently")
	} else {
		entry.Warn("Event delivery failed, will retry")
	}
	return false
}

// deliver 推送到所有 Sink,任一失败则整体重试
func (d *Dispatcher) deliver(ctx context.Context, evt *Event) error {
	var errs []error
	for _, sink := range d.sinks {
		if err := sink.Deliver(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}
