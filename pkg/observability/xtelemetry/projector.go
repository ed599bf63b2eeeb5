package xtelemetry

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/adcore-sdk/mediation/pkg/mediation/xmodel"
	"github.com/adcore-sdk/mediation/pkg/observability/xmetrics"
	"github.com/adcore-sdk/mediation/pkg/observability/xsampling"
)

// queueCapacity 是有界、非阻塞事件队列的容量；队列满时丢弃最旧事件
// 而不是阻塞调用方。
const queueCapacity = 1024

// counters 按结果聚合一个 (placement, adapter) 的本地计数器，供宿主在不
// 接线 TelemetrySink 时也能读到汇总结果。
type counters struct {
	fill    int64
	noFill  int64
	timeout int64
	errored int64
}

// Snapshot 是 counters 在某个时刻的只读副本。
type Snapshot struct {
	Fill    int64
	NoFill  int64
	Timeout int64
	Error   int64
}

// Projector 是遥测投影器：对命中采样的事件做脱敏、记录到有界
// 延迟蓄水池、更新本地计数器、驱动 xmetrics.Observer 的 span 配对，并把
// 脱敏后的 span 批量推给宿主提供的 TelemetrySink，全程不阻塞调用方。
//
// 组合三个保留的教师包：xsampling（一致性采样门控）、xlru 风格的有界蓄
// 水池（reservoir.go）、xmetrics（otel span 配对）。
type Projector struct {
	sampler  xsampling.Sampler
	observer xmetrics.Observer
	sink     xmodel.TelemetrySink
	res      *reservoirs

	mu       sync.Mutex
	counters map[string]*counters

	queue chan xmodel.TelemetrySpan
	done  chan struct{}
	wg    sync.WaitGroup

	dropped atomic.Int64
}

// Option 配置 Projector 的构造选项。
type Option func(*Projector)

// WithSampler 设置采样策略；nil 时默认为全量采样，便于测试模式下断言
// 具体 span。
func WithSampler(s xsampling.Sampler) Option {
	return func(p *Projector) {
		if s != nil {
			p.sampler = s
		}
	}
}

// WithObserver 接入 otel 风格的 Observer，用于维护独立于 TelemetrySink 的
// 可观测性后端。
func WithObserver(o xmetrics.Observer) Option {
	return func(p *Projector) { p.observer = o }
}

// WithSink 设置终端 TelemetrySink；未设置时投影器仅维护本地计数器/蓄水池，
// 不做任何外发。
func WithSink(sink xmodel.TelemetrySink) Option {
	return func(p *Projector) { p.sink = sink }
}

// allSampler 在未显式配置采样器时作为默认值，始终采样。
type allSampler struct{}

func (allSampler) ShouldSample(context.Context) bool { return true }

// New 构造一个 Projector 并启动其后台投递 goroutine。调用方必须在进程退出
// 前调用 Close 以排空队列并停止该 goroutine。
func New(opts ...Option) *Projector {
	p := &Projector{
		sampler:  allSampler{},
		observer: xmetrics.NoopObserver{},
		res:      newReservoirs(),
		counters: make(map[string]*counters),
		queue:    make(chan xmodel.TelemetrySpan, queueCapacity),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	p.wg.Add(1)
	go p.drain()
	return p
}

// Record 记录一次适配器/S2S 调用的完整生命周期：更新本地计数器与延迟蓄水
// 池，并在采样命中时把脱敏后的这一条 span 入队供 Sink 消费。
// 调用方必须在每次 Load 尝试结束时调用（无论成功、no_fill 还是超时）。
func (p *Projector) Record(ctx context.Context, span xmodel.TelemetrySpan) {
	p.bump(span.Placement, span.Adapter, span.Outcome)
	p.res.Record(span.Placement, span.Adapter, span.LatencyMs)

	spanCtx, observerSpan := xmetrics.Start(ctx, p.observer, xmetrics.SpanOptions{
		Component: "mediation",
		Operation: "load_interstitial",
		Kind:      xmetrics.KindClient,
		Attrs: []xmetrics.Attr{
			{Key: "placement", Value: span.Placement},
			{Key: "adapter", Value: span.Adapter},
		},
	})
	_ = spanCtx
	observerSpan.End(xmetrics.Result{
		Status: observerStatus(span.Outcome),
		Attrs: []xmetrics.Attr{
			{Key: "outcome", Value: string(span.Outcome)},
			{Key: "latency_ms", Value: span.LatencyMs},
		},
	})

	if !p.sampler.ShouldSample(ctx) {
		return
	}
	span.RedactedMeta = RedactMetadata(span.RedactedMeta)
	p.enqueue(span)
}

func observerStatus(outcome xmodel.Outcome) xmetrics.Status {
	if outcome == xmodel.OutcomeFill {
		return xmetrics.StatusOK
	}
	return xmetrics.StatusError
}

// bump 更新一个 (placement, adapter) 对的本地结果计数器。
func (p *Projector) bump(placement, adapter string, outcome xmodel.Outcome) {
	key := reservoirKey(placement, adapter)
	p.mu.Lock()
	c, ok := p.counters[key]
	if !ok {
		c = &counters{}
		p.counters[key] = c
	}
	p.mu.Unlock()

	switch outcome {
	case xmodel.OutcomeFill:
		atomic.AddInt64(&c.fill, 1)
	case xmodel.OutcomeNoFill:
		atomic.AddInt64(&c.noFill, 1)
	case xmodel.OutcomeTimeout:
		atomic.AddInt64(&c.timeout, 1)
	default:
		atomic.AddInt64(&c.errored, 1)
	}
}

// Counters 返回一个 (placement, adapter) 对当前的本地计数器快照。
func (p *Projector) Counters(placement, adapter string) Snapshot {
	key := reservoirKey(placement, adapter)
	p.mu.Lock()
	c, ok := p.counters[key]
	p.mu.Unlock()
	if !ok {
		return Snapshot{}
	}
	return Snapshot{
		Fill:    atomic.LoadInt64(&c.fill),
		NoFill:  atomic.LoadInt64(&c.noFill),
		Timeout: atomic.LoadInt64(&c.timeout),
		Error:   atomic.LoadInt64(&c.errored),
	}
}

// Latencies 返回一个 (placement, adapter) 对当前的延迟分位数快照。
func (p *Projector) Latencies(placement, adapter string) (Percentiles, bool) {
	return p.res.Snapshot(placement, adapter)
}

// Dropped 返回因队列已满而被丢弃的事件数。
func (p *Projector) Dropped() int64 { return p.dropped.Load() }

// enqueue 以非阻塞方式入队一个 span；队列已满时丢弃最旧的一条腾出空间，
// 绝不阻塞调用方。
func (p *Projector) enqueue(span xmodel.TelemetrySpan) {
	select {
	case p.queue <- span:
		return
	default:
	}
	select {
	case <-p.queue:
		p.dropped.Add(1)
	default:
	}
	select {
	case p.queue <- span:
	default:
		p.dropped.Add(1)
	}
}

// drain 批量消费队列中的 span 并转发给 Sink；Sink 未配置时静默丢弃。
func (p *Projector) drain() {
	defer p.wg.Done()
	const batchSize = 32
	batch := make([]xmodel.TelemetrySpan, 0, batchSize)

	flush := func() {
		if len(batch) == 0 || p.sink == nil {
			batch = batch[:0]
			return
		}
		_ = p.sink.Emit(context.Background(), batch)
		batch = batch[:0]
	}

	for {
		select {
		case span := <-p.queue:
			batch = append(batch, span)
			if len(batch) >= batchSize {
				flush()
			}
		case <-p.done:
			for {
				select {
				case span := <-p.queue:
					batch = append(batch, span)
					if len(batch) >= batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close 排空队列中剩余的 span 并停止后台投递 goroutine。幂等。
func (p *Projector) Close() {
	select {
	case <-p.done:
		return
	default:
		close(p.done)
	}
	p.wg.Wait()
}
