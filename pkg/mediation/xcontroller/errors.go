package xcontroller

import "errors"

// ErrNilDependency 在构造 Controller 时缺少必需协作者时返回。
var ErrNilDependency = errors.New("xcontroller: nil required dependency")

// 已知的内部错误消息，与 spec §7 disposition 表一一对应，从不参与调用方
// 可见的控制流判断（只作为 LoadError/ShowError.Message 暴露给诊断）。
const (
	msgValidationModeEnabled = "validation_mode_enabled"
	msgKillSwitchActive      = "kill_switch_active"
	msgInvalidPlacement      = "invalid_placement"
	msgNoFill                = "no_fill"
)
