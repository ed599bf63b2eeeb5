package xtelemetry

import (
	"sort"
	"sync"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const reservoirCapacity = 200

// Percentiles 是一个 (placement, adapter) 对的延迟分位数快照。
type Percentiles struct {
	P50 int64
	P95 int64
	P99 int64
}

// reservoirs 按 "(placement, adapter)" key 持有有界延迟蓄水池。
//  的 "FIFO-bounded to 200 entries" 用容量为 200、无 TTL 淘汰的
// hashicorp/golang-lru 过期表实现：容量淘汰即 FIFO，与教师仓库 xlru 对
// expirable.LRU 的封装选型一致（这里直接用底层库，因为需要的是"一个 key
// 对应一组值"的蓄水池而非"一个 key 对应一个值"的缓存语义，xlru.Cache[K,V]
// 不直接提供前者）。
type reservoirs struct {
	mu    sync.Mutex
	byKey map[string]*expirable.LRU[int64, int64]
	seq   map[string]int64
}

func newReservoirs() *reservoirs {
	return &reservoirs{
		byKey: make(map[string]*expirable.LRU[int64, int64]),
		seq:   make(map[string]int64),
	}
}

func reservoirKey(placement, adapter string) string { return placement + "|" + adapter }

// Record 追加一个延迟样本（毫秒）到对应 (placement, adapter) 的蓄水池。
func (r *reservoirs) Record(placement, adapter string, latencyMs int64) {
	key := reservoirKey(placement, adapter)
	r.mu.Lock()
	defer r.mu.Unlock()
	lru, ok := r.byKey[key]
	if !ok {
		lru = expirable.NewLRU[int64, int64](reservoirCapacity, nil, 0)
		r.byKey[key] = lru
	}
	r.seq[key]++
	lru.Add(r.seq[key], latencyMs)
}

// Snapshot 对当前蓄水池排序后计算 p50/p95/p99。
func (r *reservoirs) Snapshot(placement, adapter string) (Percentiles, bool) {
	key := reservoirKey(placement, adapter)
	r.mu.Lock()
	lru, ok := r.byKey[key]
	r.mu.Unlock()
	if !ok {
		return Percentiles{}, false
	}

	values := make([]int64, 0, reservoirCapacity)
	for _, k := range lru.Keys() {
		if v, ok := lru.Peek(k); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return Percentiles{}, false
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	pick := func(p float64) int64 {
		idx := int(p * float64(len(values)-1))
		return values[idx]
	}
	return Percentiles{P50: pick(0.50), P95: pick(0.95), P99: pick(0.99)}, true
}
