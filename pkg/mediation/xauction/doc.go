// Package xauction 实现 S2S（服务端到服务端）竞价客户端：单次请求、
// 归一化错误分类、经由教师仓库 xbreaker.RetryThenBreak 做瞬时重试与熔断
// 记账的分离，以及可选的 xlimit 调用速率整形。
package xauction
