package xmedconf

import (
	"sort"

	"github.com/adcore-sdk/mediation/pkg/mediation/xmodel"
)

// wireConfig 是远程配置的 JSON 线上格式；字段名保持原样的
// camelCase，与 config_hash() 的规范化字段名一致。
type wireConfig struct {
	ConfigID  string                      `json:"configId"`
	AppID     string                      `json:"appId"`
	Version   int64                       `json:"version"`
	Timestamp int64                       `json:"timestamp"`
	Placements map[string]wirePlacement  `json:"placements"`
	Adapters   map[string]wireAdapter    `json:"adapters"`
	Features   wireFeatures              `json:"features"`
	Signature  string                    `json:"signature"` // base64, 签名消息见 canonical.go
}

type wirePlacement struct {
	PlacementID     string   `json:"placementId"`
	AdType          string   `json:"adType"`
	EnabledNetworks []string `json:"enabledNetworks"`
	TimeoutMs       int64    `json:"timeoutMs"`
	MaxWaitMs       int64    `json:"maxWaitMs"`
	FloorPrice      *float64 `json:"floorPrice,omitempty"`
	RefreshInterval *int64   `json:"refreshInterval,omitempty"`
}

type wireAdapter struct {
	Enabled  bool              `json:"enabled"`
	Priority int               `json:"priority"`
	Settings map[string]string `json:"settings,omitempty"`
}

type wireFeatures struct {
	KillSwitch           bool                `json:"killSwitch"`
	TelemetryEnabled     bool                `json:"telemetryEnabled"`
	TLSPins              map[string][]string `json:"tlsPins,omitempty"`
	OMSDKEnabled         bool                `json:"omSdkEnabled"`
	Experimental         bool                `json:"experimental"`
	EnableS2SWhenCapable bool                `json:"enableS2SWhenCapable"`
}

// toDomain 把线上格式转换为不可变的领域快照。调用前必须已通过 validateSchema。
func (w wireConfig) toDomain() xmodel.RemoteConfig {
	placements := make(map[string]xmodel.Placement, len(w.Placements))
	for key, wp := range w.Placements {
		p := xmodel.Placement{
			ID:              wp.PlacementID,
			AdType:          xmodel.AdFormat(wp.AdType),
			EnabledNetworks: append([]string(nil), wp.EnabledNetworks...),
			TimeoutMs:       wp.TimeoutMs,
			MaxWaitMs:       wp.MaxWaitMs,
		}
		if wp.FloorPrice != nil {
			p.HasFloor = true
			p.FloorCPM = *wp.FloorPrice
		}
		if wp.RefreshInterval != nil {
			p.HasRefreshInterval = true
			p.RefreshIntervalSeconds = *wp.RefreshInterval
		}
		placements[key] = p
	}

	adapters := make(map[string]xmodel.AdapterConfig, len(w.Adapters))
	for key, wa := range w.Adapters {
		adapters[key] = xmodel.AdapterConfig{
			Enabled:  wa.Enabled,
			Priority: wa.Priority,
			Settings: wa.Settings,
		}
	}

	return xmodel.RemoteConfig{
		ConfigID:   w.ConfigID,
		AppID:      w.AppID,
		Version:    w.Version,
		Timestamp:  w.Timestamp,
		Placements: placements,
		Adapters:   adapters,
		Features: xmodel.FeatureFlags{
			KillSwitch:           w.Features.KillSwitch,
			TelemetryEnabled:     w.Features.TelemetryEnabled,
			TLSPins:              w.Features.TLSPins,
			OMSDKEnabled:         w.Features.OMSDKEnabled,
			Experimental:         w.Features.Experimental,
			EnableS2SWhenCapable: w.Features.EnableS2SWhenCapable,
		},
	}
}

// sortedKeys 返回 map 按字典序排序后的 key 列表，供规范化序列化使用。
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
