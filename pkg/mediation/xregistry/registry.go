package xregistry

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/adcore-sdk/mediation/pkg/mediation/xmodel"
	"github.com/adcore-sdk/mediation/pkg/resilience/xbreaker"
	"github.com/adcore-sdk/mediation/pkg/util/xkeylock"
)

// PlatformContext 是适配器初始化时接收的平台元信息。形状参照教师仓库
// xplatform.Config 的字段，但以可传值而非全局单例的方式携带——宿主进程
// 里可能已经有自己的 xplatform.Init() 用途，注册表不应与之耦合
// （DESIGN.md 有对应记录）。
type PlatformContext struct {
	PlatformID     string
	AppID          string
	UnclassRegion  string
	Debug          bool
}

// LoadResult 是适配器一次成功竞价的结果。
type LoadResult struct {
	HandleID    string
	TTL         time.Duration
	HasTTL      bool
	PriceMicros int64
	HasPrice    bool
	Currency    string
	PartnerMeta map[string]string
}

// Adapter 是宿主实现的单个第三方需求源集成（spec 术语表 "Adapter"）。
type Adapter interface {
	Init(ctx context.Context, cfg xmodel.AdapterConfig, platform PlatformContext) error
	LoadInterstitial(ctx context.Context, placement xmodel.Placement, requestMeta map[string]string) (LoadResult, error)
	ShowInterstitial(ctx context.Context, handleID string, viewContext any, cb xmodel.ShowCallbacks) error
	ShowRewarded(ctx context.Context, handleID string, viewContext any, cb xmodel.ShowCallbacks) error
	Invalidate(handleID string)
}

// Factory 按需构造一个 Adapter 实例。
type Factory func() Adapter

type adapterState struct {
	instance     Adapter
	initSig      uint64
	hasInitSig   bool
	lastInitOK   bool
}

// Registry 持有适配器工厂与实例、按适配器串行化 init，统一 load/show/invalidate
// 调度。零值不可用，必须通过 [New] 构造。
type Registry struct {
	mu          sync.RWMutex
	factories   map[string]Factory
	states      map[string]*adapterState
	handleOwner map[string]string // handleID -> 适配器名，仅用于弱查找
	breakers    map[string]*xbreaker.Breaker
	locks       xkeylock.KeyLock
	platform    PlatformContext
	breakerOpts []xbreaker.BreakerOption
	closed      bool
	logger      *slog.Logger
}

// Option 配置 Registry 的构造选项。
type Option func(*Registry)

// WithBreakerOptions 设置每个适配器专属熔断器的构造选项：默认
// ConsecutiveFailuresPolicy + WithInterval/WithBucketPeriod 构成真正的
// 滚动窗口，而非教师默认的"无区间、累计"模式。
func WithBreakerOptions(opts ...xbreaker.BreakerOption) Option {
	return func(r *Registry) { r.breakerOpts = opts }
}

// New 构造一个空注册表。
func New(logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		factories:   make(map[string]Factory),
		states:      make(map[string]*adapterState),
		handleOwner: make(map[string]string),
		breakers:    make(map[string]*xbreaker.Breaker),
		locks:       xkeylock.New(),
		logger:      logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func normalize(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// Register 注册一个适配器工厂；大小写不敏感，init 之前最后一次注册生效。
func (r *Registry) Register(name string, factory Factory) error {
	if factory == nil {
		return ErrNilFactory
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[normalize(name)] = factory
	return nil
}

// Initialize 为每个已注册工厂即时构造一个实例。
// 适配器自身的 Init(credentials) 在 ensure_initialized 里惰性触发，此处只做
// 实例化，不做凭据相关的初始化。
func (r *Registry) Initialize(platform PlatformContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.platform = platform
	for name, factory := range r.factories {
		if _, exists := r.states[name]; exists {
			continue
		}
		r.states[name] = &adapterState{instance: factory()}
	}
}

// RuntimeEntries 按请求顺序返回已知适配器名，静默丢弃未知名称。
func (r *Registry) RuntimeEntries(names []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := r.states[normalize(n)]; ok {
			out = append(out, n)
		}
	}
	return out
}

// KnownNames 返回全部已实例化的适配器名，按字典序排序。
func (r *Registry) KnownNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.states))
	for n := range r.states {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// configSignature 计算适配器有效配置的哈希，用于判断是否需要重新 init。
// 使用 xxhash，与教师仓库 xsampling 的哈希选型一致：确定性、零分配、足够快。
func configSignature(cfg xmodel.AdapterConfig) uint64 {
	var sb strings.Builder
	sb.WriteString(strconv.FormatBool(cfg.Enabled))
	sb.WriteByte('|')
	sb.WriteString(strconv.Itoa(cfg.Priority))
	keys := make([]string, 0, len(cfg.Settings))
	for k := range cfg.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteByte('|')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(cfg.Settings[k])
	}
	return xxhash.Sum64String(sb.String())
}

// EnsureInitialized 在适配器专属锁下惰性 init：若 init 签名未变且上次成功，
// 直接跳过；签名变化或上次失败都会重新触发 Init。
func (r *Registry) EnsureInitialized(ctx context.Context, name string, cfg xmodel.AdapterConfig, timeout time.Duration) error {
	key := normalize(name)
	handle, err := r.locks.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer handle.Unlock() //nolint:errcheck // Unlock 幂等，首次调用已经释放

	r.mu.RLock()
	state, ok := r.states[key]
	platform := r.platform
	r.mu.RUnlock()
	if !ok {
		return ErrUnknownAdapter
	}

	sig := configSignature(cfg)
	if state.hasInitSig && state.initSig == sig && state.lastInitOK {
		return nil
	}

	initCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		initCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err = state.instance.Init(initCtx, cfg, platform)

	r.mu.Lock()
	state.initSig = sig
	state.hasInitSig = true
	state.lastInitOK = err == nil
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("xregistry: adapter init failed", slog.String("adapter", name), slog.Any("err", err))
		return ErrInitFailed
	}
	return nil
}

// breakerFor 惰性构造并缓存该适配器的专属熔断器：每个适配器名各持有
// 一个独立的 *xbreaker.Breaker，而非共享单个熔断器。
func (r *Registry) breakerFor(name string) *xbreaker.Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := xbreaker.NewBreaker(name, r.breakerOpts...)
	r.breakers[name] = b
	return b
}

// IsOpen 报告该适配器的熔断器当前是否处于 Open 状态，供 Controller 在
// 步骤 6 把它从候选适配器集合中过滤掉。未知适配器视为非 Open（不参与熔断门控，交由上层的"未知名称"
// 校验处理）。
func (r *Registry) IsOpen(name string) bool {
	return r.breakerFor(normalize(name)).State() == xbreaker.StateOpen
}

// LoadInterstitial 在有界超时、熔断器保护下委托给适配器。
func (r *Registry) LoadInterstitial(ctx context.Context, name string, placement xmodel.Placement, requestMeta map[string]string, timeout time.Duration) (LoadResult, error) {
	key := normalize(name)
	r.mu.RLock()
	state, ok := r.states[key]
	r.mu.RUnlock()
	if !ok {
		return LoadResult{}, ErrUnknownAdapter
	}

	loadCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		loadCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	breaker := r.breakerFor(key)
	result, err := xbreaker.Execute(loadCtx, breaker, func() (LoadResult, error) {
		return state.instance.LoadInterstitial(loadCtx, placement, requestMeta)
	})
	if err != nil {
		return LoadResult{}, err
	}
	if result.HandleID != "" {
		r.mu.Lock()
		r.handleOwner[result.HandleID] = key
		r.mu.Unlock()
	}
	return result, nil
}

// ShowInterstitial 调度适配器展示，保证每个终态回调至多投递一次。
func (r *Registry) ShowInterstitial(ctx context.Context, handleID string, viewContext any, cb xmodel.ShowCallbacks) error {
	name, ok := r.ownerOf(handleID)
	if !ok {
		return ErrUnknownHandle
	}
	return r.adapterFor(name).ShowInterstitial(ctx, handleID, viewContext, onceGuard(cb))
}

// ShowRewarded 同 ShowInterstitial，针对激励视频格式。
func (r *Registry) ShowRewarded(ctx context.Context, handleID string, viewContext any, cb xmodel.ShowCallbacks) error {
	name, ok := r.ownerOf(handleID)
	if !ok {
		return ErrUnknownHandle
	}
	return r.adapterFor(name).ShowRewarded(ctx, handleID, viewContext, onceGuard(cb))
}

// Invalidate 尽力释放运行时句柄；panic 被吞掉，绝不向外抛出。
func (r *Registry) Invalidate(handleID string) {
	if handleID == "" {
		return
	}
	name, ok := r.ownerOf(handleID)
	if !ok {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("xregistry: invalidate panicked, suppressed", slog.String("adapter", name), slog.Any("panic", rec))
		}
	}()
	r.adapterFor(name).Invalidate(handleID)

	r.mu.Lock()
	delete(r.handleOwner, handleID)
	r.mu.Unlock()
}

func (r *Registry) ownerOf(handleID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.handleOwner[handleID]
	return name, ok
}

func (r *Registry) adapterFor(name string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.states[name].instance
}

// Shutdown 清空注册表状态；已持有的句柄不再可通过本实例 invalidate。
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrAlreadyShutdown
	}
	r.closed = true
	r.states = make(map[string]*adapterState)
	r.handleOwner = make(map[string]string)
	return r.locks.Close()
}

// onceGuard 包装 ShowCallbacks，使 OnClosed/OnError/OnRewardVerified 三个终态
// 回调整体只触发一次，无论适配器如何重复调用。
func onceGuard(cb xmodel.ShowCallbacks) xmodel.ShowCallbacks {
	var once sync.Once
	fire := func(f func()) {
		once.Do(f)
	}
	guarded := cb
	if cb.OnClosed != nil {
		orig := cb.OnClosed
		guarded.OnClosed = func(reason string) { fire(func() { orig(reason) }) }
	}
	if cb.OnError != nil {
		orig := cb.OnError
		guarded.OnError = func(err *xmodel.AdapterError) { fire(func() { orig(err) }) }
	}
	if cb.OnRewardVerified != nil {
		orig := cb.OnRewardVerified
		guarded.OnRewardVerified = func(rewardType string, amount float64) {
			fire(func() { orig(rewardType, amount) })
		}
	}
	return guarded
}
