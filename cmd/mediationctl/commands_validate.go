package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/adcore-sdk/mediation/pkg/mediation/xadcache"
	"github.com/adcore-sdk/mediation/pkg/mediation/xcontroller"
	"github.com/adcore-sdk/mediation/pkg/mediation/xmodel"
	"github.com/adcore-sdk/mediation/pkg/mediation/xpresent"
	"github.com/adcore-sdk/mediation/pkg/mediation/xregistry"
)

// credentialFile 是 "validate credentials" 命令接受的输入格式：
// descriptors 登记每个适配器所需的凭据 key，credentials 是宿主凭据仓库
// 的静态快照（真实部署里这部分通常来自 Keychain/Keystore，离线工具只
// 能消费一份导出快照）。
type credentialFile struct {
	Descriptors []xmodel.AdapterDescriptor  `json:"Descriptors"`
	Credentials map[string]map[string]string `json:"Credentials"`
}

type staticCredentialProvider map[string]map[string]string

func (p staticCredentialProvider) Get(network string) (map[string]string, bool) {
	creds, ok := p[network]
	return creds, ok
}

// nopConfig/nopCache/nopPresent/nopTelemetry 满足 xcontroller 的协作者
// 接口，但在 "validate credentials" 路径上从不被调用——Validation Mode
// 只读取 descriptors/credentials，不触碰配置、缓存或展示。
type nopConfig struct{}

func (nopConfig) GetPlacement(string) (xmodel.Placement, error)       { return xmodel.Placement{}, xmodel.ErrBlankPlacementID }
func (nopConfig) AdapterConfig(string) (xmodel.AdapterConfig, error) { return xmodel.AdapterConfig{}, nil }
func (nopConfig) FeatureFlags() (xmodel.FeatureFlags, error)         { return xmodel.FeatureFlags{}, nil }

type nopTelemetry struct{}

func (nopTelemetry) Record(context.Context, xmodel.TelemetrySpan) {}

func createValidateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Validation Mode 相关检查",
		Commands: []*cli.Command{
			createValidateCredentialsCommand(),
		},
	}
}

func createValidateCredentialsCommand() *cli.Command {
	return &cli.Command{
		Name:      "credentials",
		Usage:     "驱动 Validation Mode，检查凭据文件是否覆盖每个适配器的必需 key",
		ArgsUsage: "<file> [network...]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return &exitError{code: 2}
			}
			networks := cmd.Args().Slice()[1:]

			raw, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "读取文件失败: %v\n", err)
				return &exitError{code: 1}
			}
			var doc credentialFile
			if err := json.Unmarshal(raw, &doc); err != nil {
				fmt.Fprintf(os.Stderr, "解析失败: %v\n", err)
				return &exitError{code: 1}
			}

			descriptors := make(map[string]xmodel.AdapterDescriptor, len(doc.Descriptors))
			for _, d := range doc.Descriptors {
				descriptors[d.Name] = d
			}

			reg := xregistry.New(nil)
			reg.Initialize(xregistry.PlatformContext{})
			cache := xadcache.New(xadcache.WithInvalidator(reg))
			present := xpresent.New(time.Second)
			opts, err := xmodel.Build(xmodel.WithValidationModeEnabled(true))
			if err != nil {
				return err
			}
			ctl, err := xcontroller.New(opts, nopConfig{}, reg, cache, present, nopTelemetry{},
				xcontroller.WithAdapterDescriptors(descriptors),
				xcontroller.WithCredentialProvider(staticCredentialProvider(doc.Credentials)))
			if err != nil {
				return err
			}

			results := ctl.ValidateCredentials(networks)
			out, _ := json.MarshalIndent(results, "", "  ")
			fmt.Println(string(out))

			for _, r := range results {
				if !r.Success {
					return &exitError{code: 1}
				}
			}
			return nil
		},
	}
}
