package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/adcore-sdk/mediation/pkg/config/xmedconf"
	"github.com/adcore-sdk/mediation/pkg/util/xjson"
)

// configHashOutput/configValidateOutput 是 --json 模式下的打印结构，字段
// 名称与 spec §7 的诊断输出保持一致。
type configHashOutput struct {
	ConfigHash string `json:"configHash"`
}

type configValidateOutput struct {
	ConfigID string `json:"configId"`
	Version  int64  `json:"version"`
	Hash     string `json:"hash"`
}

// fileFetcher 把本地文件内容适配成 xmedconf.Fetcher，供离线命令复用
// Gate 内部真实的 parseAndVerify/validateSchema 路径，而不是在 CLI
// 里另写一份校验逻辑。
type fileFetcher struct{ path string }

func (f fileFetcher) Fetch(context.Context) ([]byte, error) {
	return os.ReadFile(f.path)
}

func createConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "远程配置文件的离线诊断",
		Commands: []*cli.Command{
			createConfigHashCommand(),
			createConfigValidateCommand(),
			createConfigWatchCommand(),
		},
	}
}

func createConfigHashCommand() *cli.Command {
	var asJSON bool
	return &cli.Command{
		Name:      "hash",
		Usage:     "打印配置文件的规范化哈希（config_hash）",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "以 JSON 对象而非裸字符串打印结果，便于管道接入其他工具",
				Destination: &asJSON,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return &exitError{code: 2}
			}
			gate := xmedconf.New(fileFetcher{path: path}, xmedconf.WithTestMode(true))
			if _, err := gate.Load(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "加载失败: %v\n", err)
				return &exitError{code: 1}
			}
			hash, err := gate.ConfigHash()
			if err != nil {
				fmt.Fprintf(os.Stderr, "计算哈希失败: %v\n", err)
				return &exitError{code: 1}
			}
			if asJSON {
				fmt.Println(xjson.Pretty(configHashOutput{ConfigHash: hash}))
				return nil
			}
			fmt.Println(hash)
			return nil
		},
	}
}

func createConfigValidateCommand() *cli.Command {
	var skipSignature, asJSON bool
	return &cli.Command{
		Name:      "validate",
		Usage:     "校验 schema 与（可选）签名，打印失败分类",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "skip-signature",
				Usage:       "跳过签名校验，仅做 schema 校验（真实签名校验需要宿主提供的 Verifier，离线工具无法自带）",
				Value:       true,
				Destination: &skipSignature,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "以 JSON 对象而非单行文本打印结果，便于管道接入其他工具",
				Destination: &asJSON,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return &exitError{code: 2}
			}
			gate := xmedconf.New(fileFetcher{path: path}, xmedconf.WithTestMode(skipSignature))
			cfg, err := gate.Load(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "校验失败: %v\n", classifyConfigError(err))
				return &exitError{code: 1}
			}
			hash, hashErr := xmedconf.ConfigHash(cfg)
			if hashErr != nil {
				fmt.Fprintf(os.Stderr, "计算哈希失败: %v\n", hashErr)
				return &exitError{code: 1}
			}
			if asJSON {
				fmt.Println(xjson.Pretty(configValidateOutput{ConfigID: cfg.ConfigID, Version: cfg.Version, Hash: hash}))
				return nil
			}
			fmt.Printf("ok configId=%s version=%d hash=%s\n", cfg.ConfigID, cfg.Version, hash)
			return nil
		},
	}
}

// classifyConfigError 把内部错误折叠回 spec §7 disposition 表里的已知分类名，
// 未知错误原样返回。
func classifyConfigError(err error) string {
	switch {
	case errors.Is(err, xmedconf.ErrSchemaInvalid):
		return "schema_invalid: " + err.Error()
	case errors.Is(err, xmedconf.ErrSignatureInvalid):
		return "signature_invalid: " + err.Error()
	case errors.Is(err, xmedconf.ErrMissingPublicKey):
		return "missing_public_key: " + err.Error()
	case errors.Is(err, xmedconf.ErrNetwork):
		return "network_error: " + err.Error()
	default:
		return err.Error()
	}
}
