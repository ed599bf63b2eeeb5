package xmedconf

import "github.com/adcore-sdk/mediation/pkg/mediation/xmodel"

// validateSchema 校验远程配置的结构完整性：拒绝 blank configId、
// 非正 version/timestamp，以及任何 key 为空、placementId 为空、
// timeoutMs/maxWaitMs 越界的广告位。
func validateSchema(cfg xmodel.RemoteConfig) error {
	if cfg.ConfigID == "" {
		return ErrBlankConfigID
	}
	if cfg.Version <= 0 {
		return ErrNonPositiveVersion
	}
	if cfg.Timestamp <= 0 {
		return ErrNonPositiveTimestamp
	}
	for key, p := range cfg.Placements {
		if key == "" {
			return ErrBlankPlacementKey
		}
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}
