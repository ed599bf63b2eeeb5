package xcontroller

import (
	"context"
	"sync"
)

// Future 是一个只解析一次的 load/show 结果容器（spec §9 "callback-as-future"
// 设计决策）：恰好一次投递是 sync.Once 守护下 Future 解析的属性，而不是靠
// 手工穿线的布尔标志位实现。
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// NewResolvedFuture 构造一个已解析的 Future，供外围包（如 xmediation 在
// 尚未安装 Controller 时）合成一个立即可等待/可订阅的终态结果，无需
// 为此专门暴露 resolve。
func NewResolvedFuture[T any](v T) *Future[T] {
	f := newFuture[T]()
	f.resolve(v)
	return f
}

// resolve 解析该 Future；第二次及以后的调用是空操作。
func (f *Future[T]) resolve(v T) {
	f.once.Do(func() {
		f.val = v
		close(f.done)
	})
}

// Wait 阻塞直到 Future 解析或 ctx 被取消。
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Subscribe 在 Future 解析后恰好调用一次 fn，调度在独立的 goroutine 上——
// 这是"调用方回调在 caller-affine executor 上投递"的最小实现：不持有任何
// 缓存/熔断器锁时触发，公共回调式 API（LoadCallback）构建于此之上。
func (f *Future[T]) Subscribe(fn func(T)) {
	go func() {
		<-f.done
		fn(f.val)
	}()
}

// Done 返回一个在 Future 解析时关闭的 channel。
func (f *Future[T]) Done() <-chan struct{} { return f.done }
