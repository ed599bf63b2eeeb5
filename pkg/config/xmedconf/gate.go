package xmedconf

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/adcore-sdk/mediation/pkg/config/xconf"
	"github.com/adcore-sdk/mediation/pkg/distributed/xdlock"
	"github.com/adcore-sdk/mediation/pkg/mediation/xclock"
	"github.com/adcore-sdk/mediation/pkg/mediation/xmodel"
)

// Fetcher 拉取远程配置的原始字节（宿主提供的 HTTP 传输在此之上，
// 核心不关心传输细节，）。
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Gate 是配置门：持有单一当前快照、按 TTL 刷新，并保证未验证的数据
// 永不暴露给调用方。
type Gate struct {
	fetcher  Fetcher
	verifier xmodel.Verifier
	store    DurableStore
	clock    xclock.Clock
	testMode bool
	publicKey []byte
	ttl      time.Duration
	// refreshLock 在 MANAGED 部署下防止多个同进程组的 Gate 实例对同一远程
	// 配置端点产生刷新惊群；BYO 单进程部署不配置它。
	refreshLock xdlock.Factory
	refreshLockKey string

	mu               sync.RWMutex
	current          xmodel.RemoteConfig
	hasCurrent       bool
	lastFetchMonotonic time.Time
}

// Option 配置 Gate 的构造选项。
type Option func(*Gate)

func WithVerifier(v xmodel.Verifier) Option { return func(g *Gate) { g.verifier = v } }

func WithPublicKey(key []byte) Option { return func(g *Gate) { g.publicKey = key } }

func WithTestMode(v bool) Option { return func(g *Gate) { g.testMode = v } }

func WithTTL(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.ttl = d
		}
	}
}

func WithDurableStore(s DurableStore) Option { return func(g *Gate) { g.store = s } }

func WithClock(c xclock.Clock) Option {
	return func(g *Gate) {
		if c != nil {
			g.clock = c
		}
	}
}

// WithRefreshLock 为 MANAGED 部署配置一个分布式刷新锁；BYO/HYBRID 下通常不传。
func WithRefreshLock(factory xdlock.Factory, key string) Option {
	return func(g *Gate) {
		g.refreshLock = factory
		g.refreshLockKey = key
	}
}

// New 构造一个 Gate；fetcher 可为 nil（此时只读持久化兜底快照，永不拉取远程）。
func New(fetcher Fetcher, opts ...Option) *Gate {
	g := &Gate{
		fetcher: fetcher,
		clock:   xclock.Real,
		ttl:     3600 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// age 返回距上次成功拉取的单调耗时；从未拉取过、或时钟倒退产生负值时一律
// 视为"必须拉取"。
func (g *Gate) age() time.Duration {
	if g.lastFetchMonotonic.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	d := g.clock.Now().Sub(g.lastFetchMonotonic)
	if d < 0 {
		return time.Duration(1<<63 - 1)
	}
	return d
}

// Load 读取当前快照；若快照已过 TTL，则尝试远程拉取并在成功时原子替换。
func (g *Gate) Load(ctx context.Context) (xmodel.RemoteConfig, error) {
	g.mu.RLock()
	stale := g.age() > g.ttl
	hasCurrent := g.hasCurrent
	g.mu.RUnlock()

	if !stale && hasCurrent {
		return g.snapshot()
	}
	return g.fetchAndActivate(ctx)
}

// Refresh 强制使当前快照失效并重新拉取。
func (g *Gate) Refresh(ctx context.Context) (xmodel.RemoteConfig, error) {
	g.mu.Lock()
	g.lastFetchMonotonic = time.Time{}
	g.mu.Unlock()
	return g.fetchAndActivate(ctx)
}

func (g *Gate) snapshot() (xmodel.RemoteConfig, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.hasCurrent {
		return xmodel.RemoteConfig{}, ErrNoCachedConfig
	}
	return g.current, nil
}

func (g *Gate) fetchAndActivate(ctx context.Context) (xmodel.RemoteConfig, error) {
	if g.refreshLock != nil {
		handle, err := g.refreshLock.TryLock(ctx, g.refreshLockKey)
		if err == nil && handle == nil {
			// 另一个实例正在刷新；直接读取当前（可能仍陈旧的）快照而非阻塞等待，
			// 陈旧但可用优于阻塞。
			return g.snapshot()
		}
		if err == nil {
			defer handle.Unlock(ctx) //nolint:errcheck // 尽力释放，不影响刷新结果
		}
	}

	if g.fetcher == nil {
		return g.loadFromDurableOrFail(ctx)
	}

	raw, err := g.fetcher.Fetch(ctx)
	if err != nil {
		return g.fallbackOnNetworkError(ctx, err)
	}

	cfg, err := g.parseAndVerify(raw)
	if err != nil {
		// 签名/schema 失败是 fatal：保留上一份快照，不激活新配置。
		if existing, ok := g.currentIfAny(); ok {
			return existing, err
		}
		return xmodel.RemoteConfig{}, err
	}

	g.activate(cfg)
	if g.store != nil {
		if persistErr := g.store.Save(ctx, raw); persistErr != nil {
			// 持久化失败不影响本次已验证快照的生效，只影响下次冷启动兜底。
			return cfg, nil
		}
	}
	return cfg, nil
}

func (g *Gate) fallbackOnNetworkError(ctx context.Context, fetchErr error) (xmodel.RemoteConfig, error) {
	if existing, ok := g.currentIfAny(); ok {
		return existing, nil
	}
	if g.store != nil {
		if cfg, ok, err := g.loadDurable(ctx); err == nil && ok {
			g.activate(cfg)
			return cfg, nil
		}
	}
	return xmodel.RemoteConfig{}, fmt.Errorf("%w: %v; %w", ErrNetwork, fetchErr, ErrNoCachedConfig)
}

func (g *Gate) loadFromDurableOrFail(ctx context.Context) (xmodel.RemoteConfig, error) {
	if existing, ok := g.currentIfAny(); ok {
		return existing, nil
	}
	if g.store == nil {
		return xmodel.RemoteConfig{}, ErrNoCachedConfig
	}
	cfg, ok, err := g.loadDurable(ctx)
	if err != nil {
		return xmodel.RemoteConfig{}, err
	}
	if !ok {
		return xmodel.RemoteConfig{}, ErrNoCachedConfig
	}
	g.activate(cfg)
	return cfg, nil
}

func (g *Gate) loadDurable(ctx context.Context) (xmodel.RemoteConfig, bool, error) {
	raw, ok, err := g.store.Load(ctx)
	if err != nil || !ok {
		return xmodel.RemoteConfig{}, false, err
	}
	cfg, parseErr := g.parseAndVerify(raw)
	if parseErr != nil {
		return xmodel.RemoteConfig{}, false, parseErr
	}
	return cfg, true, nil
}

// parseAndVerify 解析字节、校验签名与 schema，返回领域快照。
func (g *Gate) parseAndVerify(raw []byte) (xmodel.RemoteConfig, error) {
	kc, err := xconf.NewFromBytes(raw, xconf.FormatJSON)
	if err != nil {
		return xmodel.RemoteConfig{}, fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}
	var wire wireConfig
	if err := kc.Unmarshal("", &wire); err != nil {
		return xmodel.RemoteConfig{}, fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}

	cfg := wire.toDomain()
	if sig, decodeErr := base64.StdEncoding.DecodeString(wire.Signature); decodeErr == nil {
		cfg.Signature = sig
	}

	if err := validateSchema(cfg); err != nil {
		return xmodel.RemoteConfig{}, fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}

	if !g.testMode {
		if g.publicKey == nil {
			return xmodel.RemoteConfig{}, ErrMissingPublicKey
		}
		if g.verifier == nil {
			return xmodel.RemoteConfig{}, ErrMissingPublicKey
		}
		msg, err := signatureMessage(cfg)
		if err != nil {
			return xmodel.RemoteConfig{}, err
		}
		if !g.verifier.Verify(msg, cfg.Signature, g.publicKey) {
			return xmodel.RemoteConfig{}, ErrSignatureInvalid
		}
	}

	return cfg, nil
}

func (g *Gate) activate(cfg xmodel.RemoteConfig) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current = cfg
	g.hasCurrent = true
	g.lastFetchMonotonic = g.clock.Now()
}

func (g *Gate) currentIfAny() (xmodel.RemoteConfig, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current, g.hasCurrent
}

// GetPlacement 从当前快照读取一个广告位。
func (g *Gate) GetPlacement(id string) (xmodel.Placement, error) {
	cfg, ok := g.currentIfAny()
	if !ok {
		return xmodel.Placement{}, ErrNoCachedConfig
	}
	p, found := cfg.Placements[id]
	if !found {
		return xmodel.Placement{}, ErrUnknownPlacement
	}
	return p, nil
}

// AllPlacements 返回当前快照中全部广告位，按 key 字典序排列。
func (g *Gate) AllPlacements() ([]xmodel.Placement, error) {
	cfg, ok := g.currentIfAny()
	if !ok {
		return nil, ErrNoCachedConfig
	}
	keys := sortedKeys(cfg.Placements)
	out := make([]xmodel.Placement, 0, len(keys))
	for _, k := range keys {
		out = append(out, cfg.Placements[k])
	}
	return out, nil
}

// AdapterConfig 从当前快照读取一个适配器配置。
func (g *Gate) AdapterConfig(name string) (xmodel.AdapterConfig, error) {
	cfg, ok := g.currentIfAny()
	if !ok {
		return xmodel.AdapterConfig{}, ErrNoCachedConfig
	}
	a, found := cfg.Adapters[name]
	if !found {
		return xmodel.AdapterConfig{}, ErrUnknownAdapter
	}
	return a, nil
}

// FeatureFlags 返回当前快照的特性旗标。
func (g *Gate) FeatureFlags() (xmodel.FeatureFlags, error) {
	cfg, ok := g.currentIfAny()
	if !ok {
		return xmodel.FeatureFlags{}, ErrNoCachedConfig
	}
	return cfg.Features, nil
}

// ConfigHash 返回当前快照的规范化哈希。
func (g *Gate) ConfigHash() (string, error) {
	cfg, ok := g.currentIfAny()
	if !ok {
		return "", ErrNoCachedConfig
	}
	return ConfigHash(cfg)
}

// ValidateHash 按字节比较当前配置哈希与服务端提供的哈希。
func (g *Gate) ValidateHash(serverHash string) error {
	h, err := g.ConfigHash()
	if err != nil {
		return err
	}
	if h != serverHash {
		return ErrHashMismatch
	}
	return nil
}
