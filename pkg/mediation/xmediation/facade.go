package xmediation

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/adcore-sdk/mediation/pkg/mediation/xcontroller"
	"github.com/adcore-sdk/mediation/pkg/mediation/xmodel"
)

// ErrNotInstalled 在尚未 Install 一个 Controller 时，由包级 Load/Show/
// ValidateCredentials 返回（对照 xplatform.ErrNotInitialized 的风格）。
var ErrNotInstalled = errors.New("xmediation: no controller installed, call Install first")

// global 持有当前安装的 Controller。指针在 Install 后保持不变，读路径
// 无锁；Install/ResetForTest 各自原子替换整个指针，不修改其指向的对象。
var global atomic.Pointer[xcontroller.Controller]

// Build 组装一个 Controller 但不安装它——调用方决定何时以及是否 Install。
// 分离 Build 与 Install 便于宿主应用先在后台完成配置拉取、凭据校验等
// 准备工作，再原子切换对外可见的单例。
func Build(
	opts xmodel.Options,
	config xcontroller.ConfigSource,
	registry xcontroller.AdapterRegistry,
	cache xcontroller.AdCache,
	present xcontroller.PresentationCoordinator,
	telemetry xcontroller.TelemetryRecorder,
	options ...xcontroller.Option,
) (*xcontroller.Controller, error) {
	return xcontroller.New(opts, config, registry, cache, present, telemetry, options...)
}

// Install 原子地把 ctl 设为包级单例。可重复调用，每次调用整体替换指针；
// 不负责 Shutdown 前一个 Controller，调用方若持有其引用应自行处理。
func Install(ctl *xcontroller.Controller) {
	global.Store(ctl)
}

// Current 返回当前安装的 Controller，未安装时返回 (nil, false)。
func Current() (*xcontroller.Controller, bool) {
	ctl := global.Load()
	if ctl == nil {
		return nil, false
	}
	return ctl, true
}

// ResetForTest 清空包级单例（仅用于测试）。生产代码不应调用。
func ResetForTest() {
	global.Store(nil)
}

// Load 委托给当前安装的 Controller。未安装时返回的 Future 立即以
// ErrNotInstalled 对应的 LoadError 解析，调用方无需额外判空。
func Load(ctx context.Context, placementID string) *xcontroller.Future[xcontroller.LoadOutcome] {
	ctl, ok := Current()
	if !ok {
		return failedLoadFuture()
	}
	return ctl.Load(ctx, placementID)
}

// LoadCallback 是 Load 的回调式外观，语义与 Controller.LoadCallback 一致。
func LoadCallback(ctx context.Context, placementID string, onLoaded func(xmodel.Ad), onError func(*xmodel.LoadError)) {
	ctl, ok := Current()
	if !ok {
		if onError != nil {
			onError(xmodel.NewLoadError(xmodel.CallerInternalError, "no controller installed", xmodel.ErrConfigKind, ErrNotInstalled))
		}
		return
	}
	ctl.LoadCallback(ctx, placementID, onLoaded, onError)
}

// Show 委托给当前安装的 Controller。
func Show(ctx context.Context, placementID string, viewContext any, cb xmodel.ShowCallbacks) error {
	ctl, ok := Current()
	if !ok {
		return xmodel.NewShowError(xmodel.ShowCodeNotReady, "no controller installed", ErrNotInstalled)
	}
	return ctl.Show(ctx, placementID, viewContext, cb)
}

// ValidateCredentials 委托给当前安装的 Controller（spec §6 Validation Mode）。
func ValidateCredentials(networks []string) (map[string]xmodel.ValidationResult, error) {
	ctl, ok := Current()
	if !ok {
		return nil, ErrNotInstalled
	}
	return ctl.ValidateCredentials(networks), nil
}

func failedLoadFuture() *xcontroller.Future[xcontroller.LoadOutcome] {
	fut := xcontroller.NewResolvedFuture(xcontroller.LoadOutcome{
		Err: xmodel.NewLoadError(xmodel.CallerInternalError, "no controller installed", xmodel.ErrConfigKind, ErrNotInstalled),
	})
	return fut
}
