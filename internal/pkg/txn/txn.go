// Package txn 提供跨仓储的事务边界。
//
// 仓储不直接开启事务，而是从 context 中取出当前事务；嵌套的 WithTx 调用会加入外层事务。
package txn

import "context"

// Manager 在一个事务中执行 fn，fn 返回错误时整体回滚。
type Manager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type journalKey struct{}

// journal 记录内存实现的撤销操作，回滚时后进先出执行。
type journal struct {
	undo []func()
}

// MemoryManager 是给内存仓储用的事务管理器。
type MemoryManager struct{}

// NewMemoryManager 创建内存事务管理器。
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{}
}

func (m *MemoryManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(journalKey{}).(*journal); ok {
		return fn(ctx)
	}
	j := &journal{}
	defer func() {
		if r := recover(); r != nil {
			j.rollback()
			panic(r)
		}
	}()
	if err = fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		j.rollback()
	}
	return err
}

func (j *journal) rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// OnRollback 在当前内存事务中登记一个撤销操作；不在事务中时忽略。
func OnRollback(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}
