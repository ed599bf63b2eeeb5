package xpresent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/adcore-sdk/mediation/pkg/util/xkeylock"
)

// Coordinator 是展示协调器：对每个广告位维护一个 Idle/Busy
// 槽位，Busy→Idle 的转换只发生在"第一个终态回调"或"渲染超时看门狗"二者
// 之一，取决于谁先发生。底层复用 xkeylock 的非阻塞 TryAcquire 作为
// Idle→Busy 的 CAS，而不是教师仓库 xdbg 的连接级互斥——展示槽位天然是
// "按广告位一个"的资源,与 xkeylock 的"按 key 一个互斥体"模型完全对应。
type Coordinator struct {
	locks         xkeylock.KeyLock
	renderTimeout time.Duration
}

// New 构造一个展示协调器；renderTimeout <= 0 时取默认值 3500ms。
func New(renderTimeout time.Duration) *Coordinator {
	if renderTimeout <= 0 {
		renderTimeout = 3500 * time.Millisecond
	}
	return &Coordinator{
		locks:         xkeylock.New(),
		renderTimeout: renderTimeout,
	}
}

// Slot 代表一次已被授予的展示尝试。调用方必须在
// 收到第一个终态回调时调用 Release；若既不调用 Release 也不发生任何回调,
// 看门狗会在 renderTimeout 后强制释放并触发 onForceTimeout。
type Slot struct {
	placementID string
	handle      xkeylock.Handle

	mu       sync.Mutex
	released bool
	cancel   context.CancelFunc
}

// PlacementID 返回该槽位所属的广告位。
func (s *Slot) PlacementID() string { return s.placementID }

// Release 释放展示槽位；幂等——第一次调用之后的调用是空操作。调用方在
// 收到首个终态回调（onClosed/onError/onRewardVerified）时调用。
func (s *Slot) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.mu.Unlock()

	s.cancel()
	_ = s.handle.Unlock()
}

// forceRelease 由看门狗调用；返回 true 当且仅当本次调用实际执行了释放
// （即常规 Release 尚未抢先发生）。
func (s *Slot) forceRelease() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	s.released = true
	_ = s.handle.Unlock()
	return true
}

// Begin 尝试获取 placementID 的展示槽位。槽位
// 已被占用时返回 ErrAlreadyShowing；Coordinator 已关闭时返回 ErrClosed。
//
// onForceTimeout 在看门狗抢先于 Release 强制释放槽位时被调用一次，调用方
// 应在其中合成一个终态 error 回调。onForceTimeout 可以为 nil。
func (c *Coordinator) Begin(placementID string, onForceTimeout func()) (*Slot, error) {
	handle, err := c.locks.TryAcquire(placementID)
	if err != nil {
		if errors.Is(err, xkeylock.ErrClosed) {
			return nil, ErrClosed
		}
		if errors.Is(err, xkeylock.ErrLockOccupied) {
			return nil, ErrAlreadyShowing
		}
		return nil, err
	}
	if handle == nil {
		return nil, ErrAlreadyShowing
	}

	watchCtx, cancel := context.WithTimeout(context.Background(), c.renderTimeout)
	slot := &Slot{placementID: placementID, handle: handle, cancel: cancel}

	go func() {
		<-watchCtx.Done()
		if errors.Is(watchCtx.Err(), context.DeadlineExceeded) {
			if slot.forceRelease() && onForceTimeout != nil {
				onForceTimeout()
			}
		}
	}()

	return slot, nil
}

// Close 关闭协调器；后续 Begin 调用返回 ErrClosed。已授予的槽位不受影响,
// 仍可正常 Release。
func (c *Coordinator) Close() error {
	return c.locks.Close()
}
