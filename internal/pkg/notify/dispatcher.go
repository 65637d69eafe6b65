// Package notify 以异步、不阻塞的方式投递用户通知。
//
// 通知失败永远不会影响已经提交的业务操作：队列满时丢弃并记录日志，发送失败只记录日志。
package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"nexus-delivery/internal/pkg/logger"
)

// Event 是发给某个用户的一条通知。
type Event struct {
	UserID  string            `json:"user_id"`
	Type    string            `json:"type"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	OrderID string            `json:"order_id,omitempty"`
	Data    map[string]string `json:"data,omitempty"`
}

// Sender 真正把通知送出去，例如写入 Kafka。
type Sender interface {
	Send(ctx context.Context, ev Event) error
}

type job struct {
	span trace.SpanContext
	ev   Event
}

// Dispatcher 把通知放进有界队列，由后台 worker 发送。
type Dispatcher struct {
	sender  Sender
	queue   chan job
	workers int
	wg      sync.WaitGroup
}

// NewDispatcher 创建一个 Dispatcher，queueSize 与 workers 至少为 1。
func NewDispatcher(sender Sender, queueSize, workers int) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{sender: sender, queue: make(chan job, queueSize), workers: workers}
}

// Notify 入队后立即返回。
func (d *Dispatcher) Notify(ctx context.Context, ev Event) {
	select {
	case d.queue <- job{span: trace.SpanContextFromContext(ctx), ev: ev}:
	default:
		logger.Ctx(ctx).Warn().Str("user", ev.UserID).Str("type", ev.Type).Msg("⚠️ notification queue full, dropping event")
	}
}

// Run 启动 worker，直到 ctx 结束后把队列中剩余的通知发完再返回。
func (d *Dispatcher) Run(ctx context.Context) error {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(ctx)
	}
	<-ctx.Done()
	d.wg.Wait()
	return nil
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case j := <-d.queue:
			d.send(j)
		case <-ctx.Done():
			for {
				select {
				case j := <-d.queue:
					d.send(j)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) send(j job) {
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), j.span)
	if err := d.sender.Send(ctx, j.ev); err != nil {
		logEvent(logger.Ctx(ctx).Warn().Err(err), j.ev).Msg("WARN: failed to deliver notification")
	}
}

func logEvent(e *zerolog.Event, ev Event) *zerolog.Event {
	return e.Str("user", ev.UserID).Str("type", ev.Type).Str("order", ev.OrderID)
}
