package xregistry

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adcore-sdk/mediation/pkg/mediation/xmodel"
)

type fakeAdapter struct {
	initCalls   atomic.Int32
	initErr     error
	loadResult  LoadResult
	loadErr     error
	invalidated []string
	closedCalls atomic.Int32
}

func (a *fakeAdapter) Init(context.Context, xmodel.AdapterConfig, PlatformContext) error {
	a.initCalls.Add(1)
	return a.initErr
}

func (a *fakeAdapter) LoadInterstitial(context.Context, xmodel.Placement, map[string]string) (LoadResult, error) {
	return a.loadResult, a.loadErr
}

func (a *fakeAdapter) ShowInterstitial(_ context.Context, _ string, _ any, cb xmodel.ShowCallbacks) error {
	if cb.OnClosed != nil {
		cb.OnClosed("done")
		cb.OnClosed("done-again") // 适配器误用：重复调用终态回调
	}
	return nil
}

func (a *fakeAdapter) ShowRewarded(_ context.Context, _ string, _ any, cb xmodel.ShowCallbacks) error {
	if cb.OnRewardVerified != nil {
		cb.OnRewardVerified("coins", 10)
	}
	return nil
}

func (a *fakeAdapter) Invalidate(handleID string) {
	a.invalidated = append(a.invalidated, handleID)
}

func newTestRegistry(t *testing.T, name string, adapter *fakeAdapter) *Registry {
	t.Helper()
	r := New(nil)
	require.NoError(t, r.Register(name, func() Adapter { return adapter }))
	r.Initialize(PlatformContext{AppID: "app-1"})
	return r
}

func TestRegistry_EnsureInitialized_SkipsOnUnchangedSignature(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{}
	r := newTestRegistry(t, "acme", adapter)
	cfg := xmodel.AdapterConfig{Enabled: true, Priority: 1}

	require.NoError(t, r.EnsureInitialized(context.Background(), "acme", cfg, time.Second))
	require.NoError(t, r.EnsureInitialized(context.Background(), "acme", cfg, time.Second))
	assert.Equal(t, int32(1), adapter.initCalls.Load(), "second call with identical signature should be a no-op")

	cfg.Priority = 2
	require.NoError(t, r.EnsureInitialized(context.Background(), "acme", cfg, time.Second))
	assert.Equal(t, int32(2), adapter.initCalls.Load(), "changed signature should retrigger init")
}

func TestRegistry_EnsureInitialized_RetriesAfterFailure(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{initErr: assert.AnError}
	r := newTestRegistry(t, "acme", adapter)
	cfg := xmodel.AdapterConfig{Enabled: true}

	err := r.EnsureInitialized(context.Background(), "acme", cfg, time.Second)
	assert.ErrorIs(t, err, ErrInitFailed)

	adapter.initErr = nil
	err = r.EnsureInitialized(context.Background(), "acme", cfg, time.Second)
	assert.NoError(t, err)
	assert.Equal(t, int32(2), adapter.initCalls.Load())
}

func TestRegistry_RuntimeEntries_DropsUnknown(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, "acme", &fakeAdapter{})
	entries := r.RuntimeEntries([]string{"acme", "ghost", "ACME"})
	assert.Equal(t, []string{"acme", "ACME"}, entries)
}

func TestRegistry_LoadInterstitial_TracksHandleOwner(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{loadResult: LoadResult{HandleID: "h1"}}
	r := newTestRegistry(t, "acme", adapter)

	result, err := r.LoadInterstitial(context.Background(), "acme", xmodel.Placement{}, nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "h1", result.HandleID)

	r.Invalidate("h1")
	assert.Equal(t, []string{"h1"}, adapter.invalidated)

	// 第二次调用是 no-op（句柄已被移除弱映射）。
	r.Invalidate("h1")
	assert.Equal(t, []string{"h1"}, adapter.invalidated)
}

func TestRegistry_ShowInterstitial_TerminalCallbackFiresOnce(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{loadResult: LoadResult{HandleID: "h1"}}
	r := newTestRegistry(t, "acme", adapter)
	_, err := r.LoadInterstitial(context.Background(), "acme", xmodel.Placement{}, nil, time.Second)
	require.NoError(t, err)

	var closedCount int
	err = r.ShowInterstitial(context.Background(), "h1", nil, xmodel.ShowCallbacks{
		OnClosed: func(string) { closedCount++ },
	})
	require.NoError(t, err)
	assert.Equal(t, 1, closedCount)
}

func TestRegistry_Shutdown_IsIdempotentFailure(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, "acme", &fakeAdapter{})
	require.NoError(t, r.Shutdown())
	assert.ErrorIs(t, r.Shutdown(), ErrAlreadyShutdown)
}
