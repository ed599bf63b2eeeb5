package xcontroller

import (
	"strings"

	"github.com/adcore-sdk/mediation/pkg/mediation/xmodel"
)

// maskedValue 掩码一个凭据值：长度 <= 4 时整体替换为 "****"，否则保留前两个
// 字符、其余逐字符替换为 "*"，不把完整值带入 Validation Mode 的
// 诊断结果（spec §6 "结果只包含非敏感 detail key，值被掩码"）。
func maskedValue(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return "****"
	}
	return v[:2] + strings.Repeat("*", len(v)-2)
}

// ValidateCredentials 驱动 Validation Mode 的凭据可达性检查（spec §6）：
// 对每个请求的网络（为空时检查全部已知适配器），在宿主提供的
// CredentialProvider 上同步核对 AdapterDescriptor.RequiredCredKeys 是否都
// 能解析到值；从不发起任何广告请求。
func (c *Controller) ValidateCredentials(networks []string) map[string]xmodel.ValidationResult {
	targets := networks
	if len(targets) == 0 {
		targets = c.registry.KnownNames()
	}

	out := make(map[string]xmodel.ValidationResult, len(targets))
	for _, name := range targets {
		out[name] = c.validateOne(name)
	}
	return out
}

func (c *Controller) validateOne(name string) xmodel.ValidationResult {
	desc, known := c.descriptors[name]
	if !known {
		return xmodel.ValidationResult{Code: xmodel.ValidationCodeUnknownAdapter, Message: "adapter not registered"}
	}

	if c.credentials == nil {
		return xmodel.ValidationResult{Code: xmodel.ValidationCodeMissingCredential, Message: "no credential provider configured"}
	}

	creds, ok := c.credentials.Get(name)
	details := make(map[string]string, len(desc.RequiredCredKeys))
	missing := make([]string, 0)
	for _, key := range desc.RequiredCredKeys {
		if !ok {
			missing = append(missing, key)
			continue
		}
		v, present := creds[key]
		if !present || v == "" {
			missing = append(missing, key)
			continue
		}
		details[truncateKey(key)] = maskedValue(v)
	}

	if len(missing) > 0 {
		return xmodel.ValidationResult{
			Code:            xmodel.ValidationCodeMissingCredential,
			Message:         "missing credential keys: " + strings.Join(missing, ","),
			RedactedDetails: details,
		}
	}
	return xmodel.ValidationResult{Success: true, Code: xmodel.ValidationCodeOK, RedactedDetails: details}
}

// truncateKey 截断过长的凭据 key 名，防止反常的超长 key 污染诊断输出。
func truncateKey(key string) string {
	const maxLen = 32
	if len(key) <= maxLen {
		return key
	}
	return key[:maxLen]
}
