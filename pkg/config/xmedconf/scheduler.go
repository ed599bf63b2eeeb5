package xmedconf

import (
	"context"

	"github.com/adcore-sdk/mediation/pkg/distributed/xcron"
)

// ScheduleRefresh 把一个 Gate 的周期性 Refresh 挂到教师仓库的 xcron 调度器
// 上，供 MANAGED 模式下的托管网关部署做舰队级配置刷新协调（而不是让每个
// Load 调用各自触发一次 TTL 到期重拉）。cronSpec 是 robfig/cron 表达式，
// 例如 "@every 5m"。Gate 自身的 refreshLock（见 WithRefreshLock）负责同一
// 舰队内多实例的惊群保护，调度器只负责定时触发。
func ScheduleRefresh(sched xcron.Scheduler, gate *Gate, cronSpec string, opts ...xcron.JobOption) (xcron.JobID, error) {
	return sched.AddFunc(cronSpec, func(ctx context.Context) error {
		_, err := gate.Refresh(ctx)
		return err
	}, opts...)
}
