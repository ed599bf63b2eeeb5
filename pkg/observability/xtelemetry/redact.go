package xtelemetry

import "strings"

// MaskToken 替换任何被判定为敏感的元数据值。
const MaskToken = "***"

// maxMetaKeys / maxKeyLen / maxValueLen 限定元数据字符串的长度与
// key 数量上限。
const (
	maxMetaKeys = 16
	maxKeyLen   = 64
	maxValueLen = 256
)

// sensitiveSubstrings 是凭据相关 key 名的匹配模式。
//
// placement_id 故意不在此列：它是调用方指定的非 PII 标识，聚合分析
// 所必须，不应脱敏。
var sensitiveSubstrings = []string{"key", "secret", "token", "password", "credential"}

// isSensitiveKey 报告一个元数据 key 是否匹配预声明的敏感模式。
func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, pattern := range sensitiveSubstrings {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// RedactMetadata 返回元数据的脱敏副本：敏感 key 的值替换为 [MaskToken]，
// key 数量与长度越界时截断，绝不修改入参。
func RedactMetadata(meta map[string]string) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, min(len(meta), maxMetaKeys))
	count := 0
	for k, v := range meta {
		if count >= maxMetaKeys {
			break
		}
		key := truncate(k, maxKeyLen)
		value := v
		if isSensitiveKey(key) {
			value = MaskToken
		} else {
			value = truncate(value, maxValueLen)
		}
		out[key] = value
		count++
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
