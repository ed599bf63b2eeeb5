package xmedconf

import (
	"context"

	"github.com/adcore-sdk/mediation/pkg/storage/xcache"
)

// DurableStore 持久化上一份成功拉取的配置快照，供冷启动/网络故障时兜底
// 。两种实现都复用教师仓库的
// xcache 包装，而不是引入新的存储依赖。
type DurableStore interface {
	Load(ctx context.Context) ([]byte, bool, error)
	Save(ctx context.Context, payload []byte) error
}

const durableKey = "xmedconf:snapshot"

// memoryDurableStore 用 xcache.Memory（ristretto）做进程内兜底，
// 用于 testMode 或单进程 BYO 部署——没有共享 Redis 时的默认选择。
type memoryDurableStore struct {
	mem xcache.Memory
}

// NewMemoryDurableStore 基于 xcache.Memory 构造 DurableStore。
func NewMemoryDurableStore(mem xcache.Memory) DurableStore {
	return &memoryDurableStore{mem: mem}
}

func (s *memoryDurableStore) Load(_ context.Context) ([]byte, bool, error) {
	payload, ok := s.mem.Client().Get(durableKey)
	if !ok {
		return nil, false, nil
	}
	return payload, true, nil
}

func (s *memoryDurableStore) Save(_ context.Context, payload []byte) error {
	s.mem.Client().Set(durableKey, payload, int64(len(payload)))
	s.mem.Wait()
	return nil
}

// redisDurableStore 用 xcache.Redis 做跨进程共享兜底，典型用于 MANAGED
// 模式下同一托管网关的多个实例共享一份最近成功快照。
type redisDurableStore struct {
	r   xcache.Redis
	key string
}

// NewRedisDurableStore 基于 xcache.Redis 构造 DurableStore，key 通常按
// appId 命名空间化以区分不同发布方。
func NewRedisDurableStore(r xcache.Redis, key string) DurableStore {
	if key == "" {
		key = durableKey
	}
	return &redisDurableStore{r: r, key: key}
}

func (s *redisDurableStore) Load(ctx context.Context) ([]byte, bool, error) {
	payload, err := s.r.Client().Get(ctx, s.key).Bytes()
	if err != nil {
		return nil, false, nil //nolint:nilerr // 缓存未命中等同"无快照"，不是拉取失败
	}
	return payload, true, nil
}

func (s *redisDurableStore) Save(ctx context.Context, payload []byte) error {
	return s.r.Client().Set(ctx, s.key, payload, 0).Err()
}
