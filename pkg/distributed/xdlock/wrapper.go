package xdlock

import (
	"github.com/go-redsync/redsync/v4"
)

// =============================================================================
// Redis (redsync) 类型别名
// =============================================================================

// Redsync 是 redsync.Redsync 的类型别名。
// 用于 RedisFactory.Redsync() 方法的返回类型。
//
// Redsync 提供 Redlock 算法支持（多节点模式）。
type Redsync = *redsync.Redsync
