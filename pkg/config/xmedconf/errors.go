package xmedconf

import "errors"

// 配置门失败分类，与错误处理 disposition 表一一对应。
var (
	// ErrMissingPublicKey 生产模式下缺少验签公钥，fatal。
	ErrMissingPublicKey = errors.New("xmedconf: missing public key in production mode")
	// ErrSignatureInvalid 签名校验未通过，fatal——保留上一份快照。
	ErrSignatureInvalid = errors.New("xmedconf: signature invalid")
	// ErrSchemaInvalid schema 校验未通过，fatal——保留上一份快照。
	ErrSchemaInvalid = errors.New("xmedconf: schema invalid")
	// ErrNetwork 远程拉取失败（I/O 错误）。
	ErrNetwork = errors.New("xmedconf: network error fetching remote config")
	// ErrNoCachedConfig 冷启动且拉取失败、无可用缓存快照时返回。
	ErrNoCachedConfig = errors.New("xmedconf: no cached config available")
	// ErrUnknownPlacement 请求的广告位不存在于当前快照。
	ErrUnknownPlacement = errors.New("xmedconf: unknown placement")
	// ErrUnknownAdapter 请求的适配器不存在于当前快照。
	ErrUnknownAdapter = errors.New("xmedconf: unknown adapter")
	// ErrHashMismatch ValidateHash 发现哈希不一致。
	ErrHashMismatch = errors.New("xmedconf: config hash mismatch")

	ErrBlankConfigID     = errors.New("xmedconf: blank config id")
	ErrNonPositiveVersion = errors.New("xmedconf: non-positive version")
	ErrNonPositiveTimestamp = errors.New("xmedconf: non-positive timestamp")
	ErrBlankPlacementKey = errors.New("xmedconf: blank placement map key")
)
