package xauction

import (
	"context"
	"time"

	"github.com/adcore-sdk/mediation/pkg/mediation/xmodel"
	"github.com/adcore-sdk/mediation/pkg/resilience/xbreaker"
	"github.com/adcore-sdk/mediation/pkg/resilience/xlimit"
)

// Request 是一次 S2S 竞价请求。
type Request struct {
	PublisherID string
	PlacementID string
	FloorCPM    float64
	HasFloor    bool
	Adapters    []string
	Metadata    map[string]string
	AuctionType string
	Consent     xmodel.ConsentSnapshot
}

// Response 是一次成功的 S2S 竞价结果。
type Response struct {
	AdID        string
	ECPM        float64
	Markup      []byte
	TTL         time.Duration
	HasTTL      bool
	PartnerMeta map[string]string
}

// Transport 是宿主提供的 S2S HTTP 传输，具体的 HTTP client 实现不在本包范围内。
type Transport interface {
	Auction(ctx context.Context, req Request) (Response, error)
}

// Client 是 S2S 竞价客户端。
type Client struct {
	transport Transport
	rtb       *xbreaker.RetryThenBreak
	limiter   xlimit.Limiter
}

// Option 配置 Client 的构造选项。
type Option func(*Client)

// WithRetryThenBreak 让瞬时网络错误先重试，再计入熔断统计。
func WithRetryThenBreak(rtb *xbreaker.RetryThenBreak) Option {
	return func(c *Client) { c.rtb = rtb }
}

// WithLimiter 为 S2S 端点配置按 publisherId 的调用速率整形，避免单个
// 广告位的重试循环耗尽发布方的服务端竞价配额。
func WithLimiter(l xlimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// New 构造一个 S2S 客户端。
func New(transport Transport, opts ...Option) *Client {
	c := &Client{transport: transport}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Eligible 判定 S2S 竞价资格：Controller 只在 mode != BYO 且
// enableS2SWhenCapable 且存在 S2S API key 时才调用 S2S；BYO 模式下 S2S
// 永久关闭。
func Eligible(mode xmodel.Mode, enableS2SWhenCapable bool, hasAPIKey bool) bool {
	if mode == xmodel.ModeBYO {
		return false
	}
	return enableS2SWhenCapable && hasAPIKey
}

// Auction 发起一次竞价请求，timeout 由调用方夹紧到 >= 100ms 后传入。
func (c *Client) Auction(ctx context.Context, req Request, timeout time.Duration) (Response, error) {
	if c.limiter != nil {
		result, err := c.limiter.Allow(ctx, xlimit.Key{Tenant: req.PublisherID})
		if err != nil {
			return Response{}, xmodel.NewAdapterError(xmodel.ErrNetwork, "s2s rate limiter error", err)
		}
		if result != nil && !result.Allowed {
			// 限流器拒绝不是 no_fill/below_floor 分类之一，折叠为 network_error，
			// 由 Controller 沿既有的"回退到适配器竞价"路径处理。
			return Response{}, xmodel.NewAdapterError(xmodel.ErrNetwork, "s2s call throttled", nil)
		}
	}

	auctionCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		auctionCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var resp Response
	call := func(ctx context.Context) error {
		var err error
		resp, err = c.transport.Auction(ctx, req)
		return err
	}

	var err error
	if c.rtb != nil {
		err = c.rtb.Do(auctionCtx, call)
	} else {
		err = call(auctionCtx)
	}
	if err != nil {
		return Response{}, normalize(err)
	}
	return resp, nil
}

// normalize 把传输层错误折叠到封闭的错误分类上；如果传输层
// 已经返回 *xmodel.AdapterError（推荐做法），原样透传。
func normalize(err error) error {
	if ae, ok := err.(*xmodel.AdapterError); ok {
		return ae
	}
	if err == context.DeadlineExceeded {
		return xmodel.NewAdapterError(xmodel.ErrTimeout, "s2s auction timed out", err)
	}
	return xmodel.NewAdapterError(xmodel.ErrGeneric, "s2s auction failed", err)
}
