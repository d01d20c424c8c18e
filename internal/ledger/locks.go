package ledger

import (
	"sort"
	"sync"
)

// KeyedMutex 按聚合键加锁,同一任务或提交上的操作串行,不相关的聚合互不阻塞
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex 创建键锁
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock 按排序后的顺序获取全部键,返回的函数按相反顺序释放
func (m *KeyedMutex) Lock(keys ...string) func() {
	sorted := dedupe(keys)
	acquired := make([]*keyedLock, 0, len(sorted))
	for _, key := range sorted {
		l := m.acquire(key)
		l.mu.Lock()
		acquired = append(acquired, l)
	}

	return func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].mu.Unlock()
			m.release(sorted[i])
		}
	}
}

func (m *KeyedMutex) acquire(key string) *keyedLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyedLock{}
		m.locks[key] = l
	}
	l.refs++
	return l
}

func (m *KeyedMutex) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.locks[key]
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

// Len 当前持有或等待中的键数量
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

func dedupe(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func taskKey(id string) string       { return "task:" + id }
func workerKey(id string) string     { return "worker:" + id }
func submissionKey(id string) string { return "submission:" + id }
func identityKey(id string) string   { return "identity:" + id }
