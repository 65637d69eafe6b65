// Package keylock 提供按 key 隔离的进程内互斥锁。
package keylock

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// Locker 为每个 key 维护一个容量为 1 的信号量，不同 key 之间互不阻塞；无人持有时回收。
type Locker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// New 创建一个 Locker。
func New() *Locker {
	return &Locker{locks: make(map[string]*entry)}
}

// Lock 获取 key 对应的锁，ctx 取消时放弃等待。
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		l.release(key, e)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			l.release(key, e)
		})
	}, nil
}

func (l *Locker) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}
