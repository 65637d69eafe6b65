// internal/zookeeper/lock.go
package zookeeper

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"

	"nexus-delivery/internal/pkg/logger"
)

const lockRoot = "/delivery_locks"

// Connect 建立 ZooKeeper 会话
func Connect(servers []string, sessionTimeout time.Duration) (*zk.Conn, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, errors.Wrap(err, "connect zookeeper")
	}
	return conn, nil
}

// DistributedLock 基于临时顺序节点的排他锁
type DistributedLock struct {
	conn     *zk.Conn
	path     string // 例如 /delivery_locks/wallet-123
	lockNode string // 获取锁后自己创建的节点
}

// ensurePath 创建持久的父节点，已存在时忽略
func ensurePath(conn *zk.Conn, path string) error {
	_, err := conn.Create(path, []byte{}, 0, zk.WorldACL(zk.PermAll))
	if err != nil && err != zk.ErrNodeExists {
		return errors.Wrapf(err, "create lock path %s", path)
	}
	return nil
}

// NewDistributedLock 创建 resourceID 对应的锁
func NewDistributedLock(conn *zk.Conn, resourceID string) (*DistributedLock, error) {
	if err := ensurePath(conn, lockRoot); err != nil {
		return nil, err
	}
	lockPath := lockRoot + "/" + resourceID
	if err := ensurePath(conn, lockPath); err != nil {
		return nil, err
	}
	return &DistributedLock{conn: conn, path: lockPath}, nil
}

// Lock 阻塞直到获得锁或 ctx 结束
func (l *DistributedLock) Lock(ctx context.Context) error {
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte{}, zk.WorldACL(zk.PermAll))
	if err != nil {
		return errors.Wrap(err, "create sequential node")
	}
	l.lockNode = nodePath
	myNode := strings.TrimPrefix(nodePath, l.path+"/")

	for {
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			l.abandon()
			return errors.Wrap(err, "list lock children")
		}
		// protected 节点带有 _c_<guid>- 前缀，按序号部分排序
		sort.Slice(children, func(i, j int) bool { return sequence(children[i]) < sequence(children[j]) })

		idx := -1
		for i, child := range children {
			if child == myNode {
				idx = i
				break
			}
		}
		if idx < 0 {
			l.abandon()
			return fmt.Errorf("lock node %s disappeared", nodePath)
		}
		if idx == 0 {
			return nil
		}

		exists, _, events, err := l.conn.ExistsW(l.path + "/" + children[idx-1])
		if err != nil {
			l.abandon()
			return errors.Wrap(err, "watch previous node")
		}
		if !exists {
			continue
		}
		select {
		case <-events:
		case <-ctx.Done():
			l.abandon()
			return ctx.Err()
		}
	}
}

func sequence(node string) string {
	if i := strings.LastIndex(node, "lock-"); i >= 0 {
		return node[i+len("lock-"):]
	}
	return node
}

func (l *DistributedLock) abandon() {
	if err := l.Unlock(); err != nil {
		logger.L().Warn().Err(err).Str("path", l.path).Msg("failed to clean up lock node")
	}
}

// Unlock 释放锁
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return nil
	}
	err := l.conn.Delete(l.lockNode, -1)
	if err != nil && err != zk.ErrNoNode {
		return errors.Wrap(err, "delete lock node")
	}
	l.lockNode = ""
	return nil
}

// Locker 以资源 key 为粒度提供分布式互斥，多实例部署时保护同一个钱包
type Locker struct {
	conn    *zk.Conn
	timeout time.Duration
}

func NewLocker(conn *zk.Conn, timeout time.Duration) *Locker {
	return &Locker{conn: conn, timeout: timeout}
}

// Lock 获取 key 对应的锁，返回的函数用于释放
func (z *Locker) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := NewDistributedLock(z.conn, key)
	if err != nil {
		return nil, err
	}
	if z.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, z.timeout)
		defer cancel()
	}
	if err := lock.Lock(ctx); err != nil {
		return nil, errors.Wrapf(err, "acquire lock %s", key)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			logger.L().Error().Err(err).Str("key", key).Msg("failed to release lock")
		}
	}, nil
}
