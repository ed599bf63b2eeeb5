// Package xregistry 实现适配器注册表：持有宿主在启动时注册的适配器工厂、
// 惰性实例化、按适配器串行化的 init 幂等性，以及统一的 load/show/invalidate
// 调度。
package xregistry
