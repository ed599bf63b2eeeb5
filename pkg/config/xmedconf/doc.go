// Package xmedconf 实现聚合核心的配置门：拉取、验签、模式校验、TTL 缓存、
// 持久化兜底与规范化哈希。解析复用教师仓库 xconf 对 koanf 的
// 封装；持久化兜底复用 xcache 的 Memory/Redis 包装；规范化哈希使用
// gowebpki/jcs（RFC 8785 JCS），与 Mindburn-Labs-helm 示例中
// pkg/canonicalize 的用法相同——同一个库，同一个理由：JSON 的字节级
// 规范化不应受 Go map 迭代顺序影响。
package xmedconf
