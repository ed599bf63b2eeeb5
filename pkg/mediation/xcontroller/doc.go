// Package xcontroller 实现聚合核心的中枢编排器（spec §4.6 Mediation
// Controller）：kill-switch/验证模式门控、可选的 S2S 首试、有界并行的
// 适配器竞价、最高 eCPM 胜者选择、缓存写入与展示仲裁的协调，全部收拢在
// 这一个包里，和教师仓库把一个子系统的编排状态收拢在单个 Manager 类型
// （如 xauth.TokenManager）里的风格一致。
package xcontroller
