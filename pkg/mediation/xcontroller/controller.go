package xcontroller

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/adcore-sdk/mediation/pkg/mediation/xauction"
	"github.com/adcore-sdk/mediation/pkg/mediation/xclock"
	"github.com/adcore-sdk/mediation/pkg/mediation/xmodel"
	"github.com/adcore-sdk/mediation/pkg/mediation/xpresent"
	"github.com/adcore-sdk/mediation/pkg/mediation/xregistry"
	"github.com/adcore-sdk/mediation/pkg/util/xid"
	"github.com/adcore-sdk/mediation/pkg/util/xpool"
)

// ConfigSource 是 Controller 对配置门的最小只读依赖，由 *xmedconf.Gate 满足。
type ConfigSource interface {
	GetPlacement(id string) (xmodel.Placement, error)
	AdapterConfig(name string) (xmodel.AdapterConfig, error)
	FeatureFlags() (xmodel.FeatureFlags, error)
}

// AdapterRegistry 是 Controller 对适配器注册表的依赖，由 *xregistry.Registry 满足。
type AdapterRegistry interface {
	KnownNames() []string
	RuntimeEntries(names []string) []string
	IsOpen(name string) bool
	EnsureInitialized(ctx context.Context, name string, cfg xmodel.AdapterConfig, timeout time.Duration) error
	LoadInterstitial(ctx context.Context, name string, placement xmodel.Placement, requestMeta map[string]string, timeout time.Duration) (xregistry.LoadResult, error)
	ShowInterstitial(ctx context.Context, handleID string, viewContext any, cb xmodel.ShowCallbacks) error
	ShowRewarded(ctx context.Context, handleID string, viewContext any, cb xmodel.ShowCallbacks) error
	Invalidate(handleID string)
}

// AdCache 是 Controller 对广告缓存的依赖，由 *xadcache.Cache 满足。
type AdCache interface {
	Put(ctx context.Context, placement xmodel.Placement, ad xmodel.Ad)
	Peek(placementID string) (xmodel.Ad, bool)
	Take(placementID string) (xmodel.Ad, bool)
	IsReady(placementID string) bool
}

// S2SClient 是 Controller 对 S2S 竞价客户端的依赖，由 *xauction.Client 满足。
type S2SClient interface {
	Auction(ctx context.Context, req xauction.Request, timeout time.Duration) (xauction.Response, error)
}

// PresentationCoordinator 是 Controller 对展示协调器的依赖，由
// *xpresent.Coordinator 满足。
type PresentationCoordinator interface {
	Begin(placementID string, onForceTimeout func()) (*xpresent.Slot, error)
}

// TelemetryRecorder 是 Controller 对遥测投影器的依赖，由 *xtelemetry.Projector 满足。
type TelemetryRecorder interface {
	Record(ctx context.Context, span xmodel.TelemetrySpan)
}

// Controller 是聚合核心的中枢编排器。零值不可用，必须通过 [New] 构造。
type Controller struct {
	opts xmodel.Options

	config       ConfigSource
	registry     AdapterRegistry
	cache        AdCache
	s2s          S2SClient
	present      PresentationCoordinator
	telemetry    TelemetryRecorder
	credentials  xmodel.CredentialProvider
	markup       xmodel.MarkupRenderer
	descriptors  map[string]xmodel.AdapterDescriptor
	clock        xclock.Clock
	idGen        *xid.Generator
	networkPool  *xpool.Pool[func()]
	publisherID  string
	logger       *slog.Logger
}

// Option 配置 Controller 的构造选项。
type Option func(*Controller)

func WithS2SClient(c S2SClient) Option { return func(ctl *Controller) { ctl.s2s = c } }

func WithCredentialProvider(p xmodel.CredentialProvider) Option {
	return func(ctl *Controller) { ctl.credentials = p }
}

func WithMarkupRenderer(r xmodel.MarkupRenderer) Option { return func(ctl *Controller) { ctl.markup = r } }

// WithAdapterDescriptors 登记适配器静态描述（所需凭据 key 名等），用于
// Validation Mode 的凭据可达性检查。
func WithAdapterDescriptors(descs map[string]xmodel.AdapterDescriptor) Option {
	return func(ctl *Controller) { ctl.descriptors = descs }
}

func WithClock(c xclock.Clock) Option {
	return func(ctl *Controller) {
		if c != nil {
			ctl.clock = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(ctl *Controller) {
		if l != nil {
			ctl.logger = l
		}
	}
}

// WithPublisherID 设置 S2S 请求携带的发布方标识，也是 xlimit 限流的租户 key。
func WithPublisherID(id string) Option { return func(ctl *Controller) { ctl.publisherID = id } }

// WithNetworkConcurrency 设置适配器竞价扇出的有界并行度与队列容量
// （spec §5 "network executor"，经由教师仓库 xpool 实现准入限界）。
func WithNetworkConcurrency(workers, queueSize int) Option {
	return func(ctl *Controller) {
		if workers <= 0 {
			workers = 8
		}
		if queueSize <= 0 {
			queueSize = 256
		}
		pool, err := xpool.New(workers, queueSize, func(task func()) { task() })
		if err == nil {
			ctl.networkPool = pool
		}
	}
}

// New 构造一个 Controller。config/registry/cache/present/telemetry 均不可为 nil。
func New(
	opts xmodel.Options,
	config ConfigSource,
	registry AdapterRegistry,
	cache AdCache,
	present PresentationCoordinator,
	telemetry TelemetryRecorder,
	options ...Option,
) (*Controller, error) {
	if config == nil || registry == nil || cache == nil || present == nil || telemetry == nil {
		return nil, ErrNilDependency
	}
	idGen, err := xid.NewGenerator()
	if err != nil {
		return nil, err
	}
	ctl := &Controller{
		opts:      opts,
		config:    config,
		registry:  registry,
		cache:     cache,
		present:   present,
		telemetry: telemetry,
		clock:     xclock.Real,
		idGen:     idGen,
		logger:    slog.Default(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(ctl)
		}
	}
	if ctl.networkPool == nil {
		pool, perr := xpool.New(8, 256, func(task func()) { task() })
		if perr != nil {
			return nil, perr
		}
		ctl.networkPool = pool
	}
	return ctl, nil
}

// Shutdown 停止 Controller 拥有的网络执行池。
func (c *Controller) Shutdown(ctx context.Context) error {
	return c.networkPool.Shutdown(ctx)
}

// newTraceID 生成一个单调可排序的 traceId（教师包 xid，sonyflake/v2 支撑）。
func (c *Controller) newTraceID() string {
	id, err := c.idGen.NewString()
	if err != nil {
		// sonyflake 理论上只在时间分量溢出时失败；退化到 uuid 保证永不阻塞调用方。
		return uuid.NewString()
	}
	return id
}

func clampMs(ms int64, minMs int64) time.Duration {
	if ms < minMs {
		ms = minMs
	}
	return time.Duration(ms) * time.Millisecond
}
