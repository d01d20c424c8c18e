package ledger

import (
	"sync"
	"time"
)

// Clock 时间来源,冷却期、日计数和认领窗口都基于它计算
type Clock interface {
	Now() time.Time
}

// RealClock 系统时钟
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// FakeClock 可控时钟,用于测试
type FakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{t: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// dayStamp 返回 UTC 日序号
func dayStamp(t time.Time) int64 {
	return t.UTC().Unix() / int64(24*time.Hour/time.Second)
}
