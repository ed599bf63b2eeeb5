package xmodel

import "context"

// CredentialProvider 由宿主提供，按网络名解析凭据键值对。
// 核心从不持久化、从不记录日志、从不序列化凭据值本身。
type CredentialProvider interface {
	// Get 返回指定网络的凭据；网络未配置时返回 (nil, false)。
	// 在后台线程上同步调用。
	Get(network string) (map[string]string, bool)
}

// Verifier 校验远程配置签名。测试模式下可省略；生产模式缺失时必须 fail closed。
type Verifier interface {
	Verify(message, signature, publicKey []byte) bool
}

// RenderingBridge 是原生渲染桥接层的最小契约。
// 核心保证每种终态回调"恰好一次"投递。
type RenderingBridge interface {
	ShowInterstitial(ctx context.Context, handleID string, viewContext any, cb ShowCallbacks) error
	ShowRewarded(ctx context.Context, handleID string, viewContext any, cb ShowCallbacks) error
	ShowBanner(ctx context.Context, viewContainer any, handleID string) error
	// Invalidate 尽力释放运行时句柄；不得向外抛出。
	Invalidate(handleID string)
}

// ShowCallbacks 是 show 流程终态/中间回调的集合。
type ShowCallbacks struct {
	OnImpression     func(meta map[string]string)
	OnPaidEvent      func(paidEvent PaidEvent)
	OnClick          func(meta map[string]string)
	OnClosed         func(reason string)
	OnError          func(err *AdapterError)
	OnRewardVerified func(rewardType string, amount float64)
}

// PaidEvent 是适配器上报的一次计费事件。
type PaidEvent struct {
	PriceMicros int64
	Currency    string
	Precision   string
}

// TelemetrySink 接受一批已脱敏的 span/事件；核心只负责入队，传输与重试由
// sink 自己负责。
type TelemetrySink interface {
	Emit(ctx context.Context, spans []TelemetrySpan) error
}

// MarkupRenderer 负责渲染不携带运行时句柄的广告（典型为 S2S markup）：
// 当 Ad 没有 RuntimeHandleID 时，由该接口直接把 CreativePayload 作为
// markup 渲染，而不是委托给适配器注册表的 show 路径。
type MarkupRenderer interface {
	Render(ctx context.Context, viewContext any, markup []byte) error
}

// ConsentSnapshot 承载 S2S 请求所需的同意态信息，字段均可为空。
type ConsentSnapshot struct {
	GDPRApplies    *bool
	TCFString      *string
	USPrivacy      *string
	COPPA          *bool
	LimitAdTracking *bool
}
