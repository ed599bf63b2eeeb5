package xpresent

import "errors"

var (
	// ErrAlreadyShowing 表示该广告位的展示槽位已被占用。
	ErrAlreadyShowing = errors.New("xpresent: placement is already showing")

	// ErrClosed 表示 Coordinator 已关闭，不再接受新的展示尝试。
	ErrClosed = errors.New("xpresent: coordinator closed")
)
