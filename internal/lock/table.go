package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"navguard/pkg/model"
)

// DefaultTimeout 导航锁等待决策的默认时长
const DefaultTimeout = 250 * time.Millisecond

var ErrUnknownLock = errors.New("unknown lock identifier")

// Decision 锁上收到的导航决策
type Decision struct {
	Allow bool
	URL   string
}

type entry struct {
	ch   chan Decision
	once sync.Once
}

// Table 将锁标识与挂起的原生导航关联，并在超时后拒绝
type Table struct {
	mu      sync.Mutex
	next    model.LockID
	entries map[model.LockID]*entry
	timeout time.Duration
}

func NewTable(timeout time.Duration) *Table {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Table{
		entries: make(map[model.LockID]*entry),
		timeout: timeout,
	}
}

// Timeout 等待时长
func (t *Table) Timeout() time.Duration { return t.timeout }

// New 分配一个新的锁标识，标识从 1 开始，0 保留表示无锁
func (t *Table) New() model.LockID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	if t.next <= 0 {
		t.next = 1
	}
	id := t.next
	t.entries[id] = &entry{ch: make(chan Decision, 1)}
	return id
}

// Resolve 投递决策，每个锁只接受第一次决策
func (t *Table) Resolve(id model.LockID, d Decision) error {
	t.mu.Lock()
	e, ok := t.entries[id]
	t.mu.Unlock()
	if !ok {
		return ErrUnknownLock
	}
	e.once.Do(func() { e.ch <- d })
	return nil
}

// Wait 等待决策并释放锁。超时或 ctx 取消时返回拒绝，调用方应让导航失败。
func (t *Table) Wait(ctx context.Context, id model.LockID) (Decision, bool) {
	t.mu.Lock()
	e, ok := t.entries[id]
	t.mu.Unlock()
	if !ok {
		return Decision{}, false
	}
	defer t.Remove(id)

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case d := <-e.ch:
		return d, true
	case <-timer.C:
		return Decision{}, false
	case <-ctx.Done():
		return Decision{}, false
	}
}

// Remove 丢弃锁
func (t *Table) Remove(id model.LockID) {
	t.mu.Lock()
	delete(t.entries, id)
	t.mu.Unlock()
}

// Pending 尚未释放的锁数量
func (t *Table) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
