package xmedconf

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gowebpki/jcs"

	"github.com/adcore-sdk/mediation/pkg/mediation/xmodel"
)

// canonicalPlacement 是 config_hash() 定义的广告位规范化形状
// ：{adType, enabledNetworks(sorted), floorPrice, maxWaitMs,
// refreshInterval or 0, timeoutMs}。字段名按字典序书写，与 JCS 的 key 排序
// 结果一致，便于直接对照阅读。
type canonicalPlacement struct {
	AdType          string   `json:"adType"`
	EnabledNetworks []string `json:"enabledNetworks"`
	FloorPrice      float64  `json:"floorPrice"`
	MaxWaitMs       int64    `json:"maxWaitMs"`
	RefreshInterval int64    `json:"refreshInterval"`
	TimeoutMs       int64    `json:"timeoutMs"`
}

type canonicalAdapter struct {
	Enabled  bool `json:"enabled"`
	Priority int  `json:"priority"`
}

// canonicalFeatures 是已知布尔特性旗标的显式有序集合。
type canonicalFeatures struct {
	EnableS2SWhenCapable bool `json:"enableS2SWhenCapable"`
	Experimental         bool `json:"experimental"`
	KillSwitch           bool `json:"killSwitch"`
	OMSDKEnabled         bool `json:"omSdkEnabled"`
	TelemetryEnabled     bool `json:"telemetryEnabled"`
}

type canonicalDoc struct {
	AppID      string                         `json:"appId"`
	Version    int64                          `json:"version"`
	Placements map[string]canonicalPlacement `json:"placements"`
	Adapters   map[string]canonicalAdapter   `json:"adapters"`
	Features   canonicalFeatures             `json:"features"`
}

// canonicalize 构建规范化文档并返回其 JCS（RFC 8785）规范字节：Go
// map 按 key 字典序输出是 encoding/json 的既有行为，JCS 额外规范化数字
// 格式，使哈希与 map 迭代顺序、Go 版本的浮点打印规则都无关。
func canonicalize(cfg xmodel.RemoteConfig) ([]byte, error) {
	doc := canonicalDoc{
		AppID:      cfg.AppID,
		Version:    cfg.Version,
		Placements: make(map[string]canonicalPlacement, len(cfg.Placements)),
		Adapters:   make(map[string]canonicalAdapter, len(cfg.Adapters)),
		Features: canonicalFeatures{
			EnableS2SWhenCapable: cfg.Features.EnableS2SWhenCapable,
			Experimental:         cfg.Features.Experimental,
			KillSwitch:           cfg.Features.KillSwitch,
			OMSDKEnabled:         cfg.Features.OMSDKEnabled,
			TelemetryEnabled:     cfg.Features.TelemetryEnabled,
		},
	}
	for key, p := range cfg.Placements {
		networks := append([]string(nil), p.EnabledNetworks...)
		sort.Strings(networks)
		var refresh int64
		if p.HasRefreshInterval {
			refresh = p.RefreshIntervalSeconds
		}
		doc.Placements[key] = canonicalPlacement{
			AdType:          string(p.AdType),
			EnabledNetworks: networks,
			FloorPrice:      p.FloorCPM,
			MaxWaitMs:       p.MaxWaitMs,
			RefreshInterval: refresh,
			TimeoutMs:       p.TimeoutMs,
		}
	}
	for key, a := range cfg.Adapters {
		doc.Adapters[key] = canonicalAdapter{Enabled: a.Enabled, Priority: a.Priority}
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("xmedconf: marshal canonical doc: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("xmedconf: jcs transform: %w", err)
	}
	return canonical, nil
}

// ConfigHash 计算规范化配置的哈希：返回 "v1:<小写十六进制 sha256>"。
func ConfigHash(cfg xmodel.RemoteConfig) (string, error) {
	canonical, err := canonicalize(cfg)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return "v1:" + hex.EncodeToString(sum[:]), nil
}

// signatureMessage 规范化待验签消息：{config_id, version, timestamp} 的 JCS 字节。
func signatureMessage(cfg xmodel.RemoteConfig) ([]byte, error) {
	raw, err := json.Marshal(struct {
		ConfigID  string `json:"config_id"`
		Version   int64  `json:"version"`
		Timestamp int64  `json:"timestamp"`
	}{cfg.ConfigID, cfg.Version, cfg.Timestamp})
	if err != nil {
		return nil, fmt.Errorf("xmedconf: marshal signature message: %w", err)
	}
	return jcs.Transform(raw)
}
