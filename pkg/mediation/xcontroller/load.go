package xcontroller

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/adcore-sdk/mediation/pkg/mediation/xauction"
	"github.com/adcore-sdk/mediation/pkg/mediation/xmodel"
	"github.com/adcore-sdk/mediation/pkg/mediation/xregistry"
)

// LoadOutcome 是一次 Load 尝试的终态结果：恰好二者之一非零值。
type LoadOutcome struct {
	Ad  xmodel.Ad
	Err *xmodel.LoadError
}

// Load 驱动一次完整的 load 流程（spec §4.6），返回一个只解析一次的 Future。
// 测试模式（Options.TestMode）下执行器退化为同步：返回时 Future 已解析。
func (c *Controller) Load(ctx context.Context, placementID string) *Future[LoadOutcome] {
	fut := newFuture[LoadOutcome]()
	run := func() { fut.resolve(c.runLoad(ctx, placementID)) }
	if c.opts.TestMode {
		run()
	} else {
		go run()
	}
	return fut
}

// LoadCallback 是公共回调式 API 的瘦适配层：在 Future 解析后恰好调用
// onLoaded 或 onError 其中之一一次（spec §9 "每次 load 恰好一次回调"）。
func (c *Controller) LoadCallback(ctx context.Context, placementID string, onLoaded func(xmodel.Ad), onError func(*xmodel.LoadError)) {
	c.Load(ctx, placementID).Subscribe(func(o LoadOutcome) {
		if o.Err != nil {
			if onError != nil {
				onError(o.Err)
			}
			return
		}
		if onLoaded != nil {
			onLoaded(o.Ad)
		}
	})
}

func (c *Controller) runLoad(ctx context.Context, placementID string) LoadOutcome {
	// 步骤 1：Validation Mode 下拒绝一切 ad load。
	if c.opts.ValidationModeEnabled {
		return failLoad(xmodel.CallerInternalError, msgValidationModeEnabled, xmodel.ErrGeneric, nil)
	}

	// 步骤 2：kill-switch。
	flags, err := c.config.FeatureFlags()
	if err != nil {
		return failLoad(xmodel.CallerInvalidPlacement, msgInvalidPlacement, xmodel.ErrConfigKind, err)
	}
	if flags.KillSwitch {
		return failLoad(xmodel.CallerInternalError, msgKillSwitchActive, xmodel.ErrConfigKind, nil)
	}

	// 步骤 3：解析广告位。
	placement, err := c.config.GetPlacement(placementID)
	if err != nil {
		return failLoad(xmodel.CallerInvalidPlacement, msgInvalidPlacement, xmodel.ErrConfigKind, err)
	}

	// 步骤 4：traceId。
	traceID := c.newTraceID()

	// 步骤 5：S2S 首试。
	if outcome, handled := c.tryS2S(ctx, traceID, placement, flags); handled {
		return outcome
	}

	// 步骤 6-12：适配器竞价扇出。
	return c.runAdapterAuction(ctx, traceID, placement)
}

func failLoad(code xmodel.CallerCode, msg string, internal xmodel.ErrorCode, cause error) LoadOutcome {
	return LoadOutcome{Err: xmodel.NewLoadError(code, msg, internal, cause)}
}

// tryS2S 尝试 S2S 首试路径；handled=true 表示本次 Load 已经有了终态结果
// （成功、或不可回退的错误），调用方不应再进行适配器竞价。
func (c *Controller) tryS2S(ctx context.Context, traceID string, placement xmodel.Placement, flags xmodel.FeatureFlags) (LoadOutcome, bool) {
	if c.s2s == nil || !xauction.Eligible(c.opts.Mode, c.opts.EnableS2SWhenCapable && flags.EnableS2SWhenCapable, c.hasS2SAPIKey()) {
		return LoadOutcome{}, false
	}

	start := c.clock.Now()
	timeout := clampMs(placement.TimeoutMs, 100)
	req := xauction.Request{
		PublisherID: c.publisherID,
		PlacementID: placement.ID,
		FloorCPM:    placement.FloorCPM,
		HasFloor:    placement.HasFloor,
		Adapters:    placement.EnabledNetworks,
		AuctionType: string(placement.AdType),
	}
	resp, err := c.s2s.Auction(ctx, req, timeout)
	latency := c.clock.Now().Sub(start).Milliseconds()

	if err == nil {
		ad := xmodel.Ad{
			ID:              uuid.NewString(),
			PlacementID:     placement.ID,
			SourceAdapter:   "s2s",
			Format:          placement.AdType,
			ECPM:            resp.ECPM,
			CreativePayload: resp.Markup,
			Metadata:        resp.PartnerMeta,
			CreatedAt:       c.clock.Now(),
		}
		if resp.HasTTL {
			ad.HasExpiry = true
			ad.ExpiryMonotonic = ad.CreatedAt.Add(resp.TTL)
		}
		c.recordSpan(ctx, traceID, placement.ID, "s2s", xmodel.OutcomeFill, latency, "", "")
		c.cache.Put(ctx, placement, ad)
		return LoadOutcome{Ad: ad}, true
	}

	ae, ok := err.(*xmodel.AdapterError)
	if !ok {
		ae = xmodel.NewAdapterError(xmodel.ErrGeneric, err.Error(), err)
	}
	if ae.Code.Recoverable() {
		// no_fill / below_floor：回退到适配器竞价，不是终态结果。
		c.recordSpan(ctx, traceID, placement.ID, "s2s", xmodel.OutcomeNoFill, latency, ae.Code, ae.Message)
		return LoadOutcome{}, false
	}

	c.recordSpan(ctx, traceID, placement.ID, "s2s", xmodel.OutcomeError, latency, ae.Code, ae.Message)
	return LoadOutcome{Err: xmodel.NewLoadError(mapS2SError(ae.Code), ae.Message, ae.Code, ae)}, true
}

func mapS2SError(code xmodel.ErrorCode) xmodel.CallerCode {
	switch code {
	case xmodel.ErrTimeout:
		return xmodel.CallerTimeout
	case xmodel.ErrNetwork, xmodel.ErrStatus5xx:
		return xmodel.CallerNetworkError
	case xmodel.ErrStatus4xx:
		return xmodel.CallerInternalError
	default:
		return xmodel.CallerInternalError
	}
}

// hasS2SAPIKey 报告凭据提供方是否为 "s2s" 网络登记了非空的 api_key。
func (c *Controller) hasS2SAPIKey() bool {
	if c.credentials == nil {
		return false
	}
	creds, ok := c.credentials.Get("s2s")
	if !ok {
		return false
	}
	v, ok := creds["api_key"]
	return ok && v != ""
}

type adapterAttempt struct {
	name   string
	result xregistry.LoadResult
	ecpm   float64
	err    error
}

// runAdapterAuction 实现 spec §4.6 步骤 6-12：有界并行扇出、收集、胜者
// 选择、句柄仲裁、缓存写入。
func (c *Controller) runAdapterAuction(ctx context.Context, traceID string, placement xmodel.Placement) LoadOutcome {
	eligible := c.eligibleAdapters(placement)
	if len(eligible) == 0 {
		return failLoad(xmodel.CallerNoFill, msgNoFill, xmodel.ErrNoFill, nil)
	}

	deadline := c.clock.Now().Add(clampMs(placement.MaxWaitMs, 1))
	auctionCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	resultCh := make(chan adapterAttempt, len(eligible))
	perAdapterTimeout := clampMs(placement.TimeoutMs, 1)

	for _, name := range eligible {
		name := name
		task := func() {
			resultCh <- c.runOneAdapter(auctionCtx, traceID, placement, name, perAdapterTimeout)
		}
		if err := c.networkPool.Submit(task); err != nil {
			resultCh <- adapterAttempt{name: name, err: err}
		}
	}

	attempts := make([]adapterAttempt, 0, len(eligible))
collect:
	for range eligible {
		select {
		case a := <-resultCh:
			attempts = append(attempts, a)
		case <-auctionCtx.Done():
			break collect // 整体截止时间已到；未到达的结果按丢弃处理，不再等待。
		}
	}

	return c.selectWinner(ctx, placement, eligible, attempts)
}

// eligibleAdapters 计算 placement.EnabledNetworks ∩ registry.knownNames()
// 减去熔断器处于 Open 状态的适配器，保留 EnabledNetworks 的顺序用于平局打破。
func (c *Controller) eligibleAdapters(placement xmodel.Placement) []string {
	known := c.registry.RuntimeEntries(placement.EnabledNetworks)
	out := make([]string, 0, len(known))
	for _, name := range known {
		if !c.registry.IsOpen(name) {
			out = append(out, name)
		}
	}
	return out
}

func (c *Controller) runOneAdapter(ctx context.Context, traceID string, placement xmodel.Placement, name string, timeout time.Duration) adapterAttempt {
	start := c.clock.Now()
	cfg, err := c.config.AdapterConfig(name)
	if err == nil {
		err = c.registry.EnsureInitialized(ctx, name, cfg, timeout)
	}
	var result xregistry.LoadResult
	if err == nil {
		result, err = c.registry.LoadInterstitial(ctx, name, placement, nil, timeout)
	}
	latency := c.clock.Now().Sub(start).Milliseconds()

	if err != nil {
		outcome := xmodel.OutcomeError
		code := xmodel.ErrGeneric
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = xmodel.OutcomeTimeout
			code = xmodel.ErrTimeout
		}
		if ae, ok := err.(*xmodel.AdapterError); ok {
			code = ae.Code
			msg = ae.Message
			if ae.Code == xmodel.ErrTimeout {
				outcome = xmodel.OutcomeTimeout
			}
		}
		c.recordSpan(ctx, traceID, placement.ID, name, outcome, latency, code, msg)
		return adapterAttempt{name: name, err: err}
	}

	ecpm := 0.0
	if result.HasPrice {
		ecpm = float64(result.PriceMicros) / 1_000_000.0
	}
	c.recordSpan(ctx, traceID, placement.ID, name, xmodel.OutcomeFill, latency, "", "")
	return adapterAttempt{name: name, result: result, ecpm: ecpm}
}

// selectWinner 选出最高 eCPM 的成功响应（平局按 eligible 中的出现顺序打
// 破），对所有其余成功响应的运行时句柄立即 invalidate，再写入缓存。
func (c *Controller) selectWinner(ctx context.Context, placement xmodel.Placement, eligible []string, attempts []adapterAttempt) LoadOutcome {
	byName := make(map[string]adapterAttempt, len(attempts))
	for _, a := range attempts {
		if a.err == nil {
			byName[a.name] = a
		}
	}

	winnerName := ""
	bestECPM := -1.0
	for _, name := range eligible {
		a, ok := byName[name]
		if !ok {
			continue
		}
		if a.ecpm > bestECPM {
			bestECPM = a.ecpm
			winnerName = name
		}
	}

	if winnerName == "" {
		return failLoad(xmodel.CallerNoFill, msgNoFill, xmodel.ErrNoFill, nil)
	}

	for name, a := range byName {
		if name == winnerName {
			continue
		}
		if a.result.HandleID != "" {
			c.registry.Invalidate(a.result.HandleID)
		}
	}

	winner := byName[winnerName]
	ad := xmodel.Ad{
		ID:              uuid.NewString(),
		PlacementID:     placement.ID,
		SourceAdapter:   winnerName,
		Format:          placement.AdType,
		ECPM:            winner.ecpm,
		Metadata:        winner.result.PartnerMeta,
		CreatedAt:       c.clock.Now(),
		RuntimeHandleID: winner.result.HandleID,
	}
	if winner.result.HasTTL {
		ad.HasExpiry = true
		ad.ExpiryMonotonic = ad.CreatedAt.Add(winner.result.TTL)
	}

	c.cache.Put(ctx, placement, ad)
	return LoadOutcome{Ad: ad}
}

func (c *Controller) recordSpan(ctx context.Context, traceID, placementID, adapter string, outcome xmodel.Outcome, latencyMs int64, errCode xmodel.ErrorCode, errMsg string) {
	c.telemetry.Record(ctx, xmodel.TelemetrySpan{
		TraceID:      traceID,
		Placement:    placementID,
		Adapter:      adapter,
		Phase:        xmodel.PhaseFinish,
		Outcome:      outcome,
		LatencyMs:    latencyMs,
		ErrorCode:    errCode,
		ErrorMessage: errMsg,
	})
}
