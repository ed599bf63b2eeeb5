// Package xpresent 实现展示协调器：按广告位序列化并发的 show 请求，
// 保证展示槽位在终态回调或超时两者之一发生时确定性释放。
// 结构上照搬教师仓库 xdbg.Session 的 "mutex+closed bool+
// context.WithTimeout 看门狗" 形状，把"调试会话超时强制关闭"泛化为
// "展示尝试超时强制释放"。
package xpresent
