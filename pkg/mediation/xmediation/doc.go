// Package xmediation 是聚合核心面向宿主应用的单例门面（spec §9
// "Global singleton"）：持有一个 atomic.Pointer[xcontroller.Controller]，
// 构造与安装分离——Build 只组装，Install 才让它对 Load/Show 的包级
// 入口可见，和教师仓库 xplatform.Init() 的"先构造配置对象、再整体原子
// 替换"风格一致，而不是在构造函数内部直接改写全局状态。
package xmediation
