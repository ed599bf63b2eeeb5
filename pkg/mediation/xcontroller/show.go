package xcontroller

import (
	"context"
	"sync"

	"github.com/adcore-sdk/mediation/pkg/mediation/xmodel"
	"github.com/adcore-sdk/mediation/pkg/mediation/xpresent"
)

// Show 驱动一次展示尝试（spec §4.6 show contract）。恰好一个终态回调
// （OnClosed 或 OnError）最终会被投递，无论适配器是否行为异常——保证由
// Presentation Coordinator 的槽位看门狗与本方法内的 sync.Once 共同实现。
func (c *Controller) Show(ctx context.Context, placementID string, viewContext any, cb xmodel.ShowCallbacks) error {
	if _, ok := c.cache.Peek(placementID); !ok {
		return xmodel.NewShowError(xmodel.ShowCodeNotReady, "no ad cached for placement", nil)
	}

	var once sync.Once
	fireError := func(err *xmodel.AdapterError) {
		once.Do(func() {
			if cb.OnError != nil {
				cb.OnError(err)
			}
		})
	}

	slot, err := c.present.Begin(placementID, func() {
		fireError(xmodel.NewAdapterError(xmodel.ErrGeneric, "render_timeout", nil))
	})
	if err != nil {
		switch err {
		case xpresent.ErrAlreadyShowing:
			return xmodel.NewShowError(xmodel.ShowCodeAlreadyShowing, "placement already showing", err)
		case xpresent.ErrClosed:
			return xmodel.NewShowError(xmodel.ShowCodeNotReady, "presentation coordinator closed", err)
		default:
			return xmodel.NewShowError(xmodel.ShowCodeAdapterError, "failed to acquire presentation slot", err)
		}
	}

	ad, ok := c.cache.Take(placementID)
	if !ok {
		slot.Release()
		return xmodel.NewShowError(xmodel.ShowCodeNotReady, "ad lost to concurrent take or expiry", nil)
	}

	wrapped := cb
	wrapped.OnClosed = func(reason string) {
		once.Do(func() {
			slot.Release()
			if cb.OnClosed != nil {
				cb.OnClosed(reason)
			}
		})
	}
	wrapped.OnError = func(adErr *xmodel.AdapterError) {
		once.Do(func() {
			slot.Release()
			if cb.OnError != nil {
				cb.OnError(adErr)
			}
		})
	}

	if !ad.HasRuntimeHandle() {
		return c.showMarkupFallback(ctx, ad, viewContext, slot, wrapped)
	}

	var showErr error
	if ad.Format == xmodel.FormatRewarded || ad.Format == xmodel.FormatRewardedInterstitial {
		showErr = c.registry.ShowRewarded(ctx, ad.RuntimeHandleID, viewContext, wrapped)
	} else {
		showErr = c.registry.ShowInterstitial(ctx, ad.RuntimeHandleID, viewContext, wrapped)
	}
	if showErr != nil {
		wrapped.OnError(xmodel.NewAdapterError(xmodel.ErrGeneric, "adapter show dispatch failed", showErr))
	}
	return nil
}

// showMarkupFallback 渲染不携带运行时句柄的广告（典型为 S2S markup），
// 对应 spec §9 Open Question (c) 的决议：MarkupRenderer 是一个独立的外部
// 协作者接口，而不是 Ad 上的占位方法。
func (c *Controller) showMarkupFallback(ctx context.Context, ad xmodel.Ad, viewContext any, slot *xpresent.Slot, cb xmodel.ShowCallbacks) error {
	if c.markup == nil {
		cb.OnError(xmodel.NewAdapterError(xmodel.ErrGeneric, "no markup renderer configured", nil))
		return nil
	}
	if err := c.markup.Render(ctx, viewContext, ad.CreativePayload); err != nil {
		cb.OnError(xmodel.NewAdapterError(xmodel.ErrGeneric, "markup render failed", err))
		return nil
	}
	cb.OnClosed("completed")
	return nil
}
