// Package xadcache 实现每广告位单槽位缓存：TTL 淘汰、一次性消费、
// 对非赢家运行时句柄的确定性失效。不同于教师仓库
// pkg/storage/xcache 那种"多 key、各自独立 TTL"的通用 KV 封装，这里的
// 不变式是"至多一个存活值，新值原子性地取代旧值"——因此是一个专门实现，
// 所有广告位的操作由同一把 sync.Mutex 串行化。
package xadcache
