package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/adcore-sdk/mediation/pkg/context/xplatform"
	"github.com/adcore-sdk/mediation/pkg/mediation/xadcache"
	"github.com/adcore-sdk/mediation/pkg/mediation/xcontroller"
	"github.com/adcore-sdk/mediation/pkg/mediation/xmodel"
	"github.com/adcore-sdk/mediation/pkg/mediation/xpresent"
	"github.com/adcore-sdk/mediation/pkg/mediation/xregistry"
)

// platformContextFromEnv 在 --platform-id 给定时通过 xplatform 的全局单例
// 构造 PlatformContext：宿主进程通常已经在启动阶段调用过 xplatform.Init()，
// 离线模拟器复用同一条路径而不是另起一套平台元信息的校验逻辑。未给出
// platformID 时退回到零值 PlatformContext，与此前的行为一致。
func platformContextFromEnv(platformID string, unclassRegion string) (xregistry.PlatformContext, error) {
	if platformID == "" {
		return xregistry.PlatformContext{}, nil
	}
	if err := xplatform.Init(xplatform.Config{PlatformID: platformID, UnclassRegionID: unclassRegion}); err != nil {
		return xregistry.PlatformContext{}, err
	}
	cfg, err := xplatform.GetConfig()
	if err != nil {
		return xregistry.PlatformContext{}, err
	}
	return xregistry.PlatformContext{
		PlatformID:    cfg.PlatformID,
		UnclassRegion: cfg.UnclassRegionID,
	}, nil
}

// scriptedAdapter 是一条脚本化竞价剧本：固定延迟、固定 eCPM（微美元），
// 可选地以固定错误收尾。模拟器从不发起任何网络调用。
type scriptedAdapter struct {
	Name     string `json:"Name"`
	DelayMs  int64  `json:"DelayMs"`
	ECPMMicros int64 `json:"ECPMMicros"`
	Fail     bool   `json:"Fail"`
}

type auctionScript struct {
	PlacementID     string             `json:"PlacementID"`
	AdType          string             `json:"AdType"`
	TimeoutMs       int64              `json:"TimeoutMs"`
	MaxWaitMs       int64              `json:"MaxWaitMs"`
	Adapters        []scriptedAdapter  `json:"Adapters"`
}

// scriptAdapterRuntime 是 scriptedAdapter 在 xregistry.Adapter 接口下的执行体。
type scriptAdapterRuntime struct{ script scriptedAdapter }

func (s scriptAdapterRuntime) Init(context.Context, xmodel.AdapterConfig, xregistry.PlatformContext) error {
	return nil
}

func (s scriptAdapterRuntime) LoadInterstitial(ctx context.Context, _ xmodel.Placement, _ map[string]string) (xregistry.LoadResult, error) {
	select {
	case <-time.After(time.Duration(s.script.DelayMs) * time.Millisecond):
	case <-ctx.Done():
		return xregistry.LoadResult{}, ctx.Err()
	}
	if s.script.Fail {
		return xregistry.LoadResult{}, xmodel.NewAdapterError(xmodel.ErrGeneric, "scripted failure", nil)
	}
	return xregistry.LoadResult{HandleID: "sim-" + s.script.Name, HasPrice: true, PriceMicros: s.script.ECPMMicros}, nil
}

func (s scriptAdapterRuntime) ShowInterstitial(context.Context, string, any, xmodel.ShowCallbacks) error {
	return nil
}

func (s scriptAdapterRuntime) ShowRewarded(context.Context, string, any, xmodel.ShowCallbacks) error {
	return nil
}

func (s scriptAdapterRuntime) Invalidate(string) {}

type simulationConfig struct{ placement xmodel.Placement }

func (c simulationConfig) GetPlacement(id string) (xmodel.Placement, error) { return c.placement, nil }
func (c simulationConfig) AdapterConfig(string) (xmodel.AdapterConfig, error) {
	return xmodel.AdapterConfig{Enabled: true}, nil
}
func (c simulationConfig) FeatureFlags() (xmodel.FeatureFlags, error) { return xmodel.FeatureFlags{}, nil }

func createAuctionCommand() *cli.Command {
	return &cli.Command{
		Name:  "auction",
		Usage: "离线竞价模拟",
		Commands: []*cli.Command{
			createAuctionSimulateCommand(),
		},
	}
}

func createAuctionSimulateCommand() *cli.Command {
	var platformID, unclassRegion string
	return &cli.Command{
		Name:      "simulate",
		Usage:     "基于脚本化适配器剧本模拟一次竞价的胜者选择，不发起任何网络调用",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "platform-id",
				Usage:       "通过 xplatform.Init 设置平台 ID，以便脚本化适配器收到非零值 PlatformContext",
				Destination: &platformID,
			},
			&cli.StringFlag{
				Name:        "unclass-region",
				Usage:       "与 --platform-id 搭配使用的未分类区域 ID",
				Destination: &unclassRegion,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return &exitError{code: 2}
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "读取文件失败: %v\n", err)
				return &exitError{code: 1}
			}
			var script auctionScript
			if err := json.Unmarshal(raw, &script); err != nil {
				fmt.Fprintf(os.Stderr, "解析失败: %v\n", err)
				return &exitError{code: 1}
			}
			if script.TimeoutMs <= 0 {
				script.TimeoutMs = 5000
			}
			if script.MaxWaitMs <= 0 {
				script.MaxWaitMs = 10000
			}

			reg := xregistry.New(nil)
			names := make([]string, 0, len(script.Adapters))
			for _, a := range script.Adapters {
				a := a
				if err := reg.Register(a.Name, func() xregistry.Adapter { return scriptAdapterRuntime{script: a} }); err != nil {
					return err
				}
				names = append(names, a.Name)
			}
			platform, err := platformContextFromEnv(platformID, unclassRegion)
			if err != nil {
				fmt.Fprintf(os.Stderr, "初始化平台信息失败: %v\n", err)
				return &exitError{code: 2}
			}
			reg.Initialize(platform)

			cache := xadcache.New(xadcache.WithInvalidator(reg))
			present := xpresent.New(time.Second)
			opts, err := xmodel.Build(xmodel.WithTestMode(true))
			if err != nil {
				return err
			}
			placement := xmodel.Placement{
				ID:              script.PlacementID,
				AdType:          xmodel.AdFormat(script.AdType),
				EnabledNetworks: names,
				TimeoutMs:       script.TimeoutMs,
				MaxWaitMs:       script.MaxWaitMs,
			}
			if placement.ID == "" {
				placement.ID = "sim"
			}
			if placement.AdType == "" {
				placement.AdType = xmodel.FormatInterstitial
			}

			ctl, err := xcontroller.New(opts, simulationConfig{placement: placement}, reg, cache, present, nopTelemetry{})
			if err != nil {
				return err
			}

			outcome, err := ctl.Load(ctx, placement.ID).Wait(ctx)
			if err != nil {
				return err
			}
			out, _ := json.MarshalIndent(outcome, "", "  ")
			fmt.Println(string(out))
			if outcome.Err != nil {
				return &exitError{code: 1}
			}
			return nil
		},
	}
}
