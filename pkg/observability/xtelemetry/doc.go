// Package xtelemetry 实现遥测投影器：非阻塞、采样、脱敏的事件发射
// 。组合三个保留的教师包而非写一个全新实现：
// xsampling（一致性采样）、直接基于 hashicorp/golang-lru 的有界延迟蓄水池、
// xmetrics（otel 指标与 span 配对）。
package xtelemetry
