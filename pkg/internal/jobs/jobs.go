// Package jobs 注册论文库的后台定时任务（基于 scheduler）.
package jobs

import (
	"context"
	"errors"

	"github.com/yeisme/papervault/pkg/configs"
	"github.com/yeisme/papervault/pkg/internal/service"
	"github.com/yeisme/papervault/pkg/log"
	"github.com/yeisme/papervault/pkg/scheduler"
)

// JobReconcileOrphans 孤儿对象清理任务名.
const JobReconcileOrphans = "paper.reconcile_orphans"

// RegisterCronJobs 按配置注册定时任务. 清理任务关闭时不注册任何任务.
func RegisterCronJobs(ctx context.Context, sched *scheduler.Scheduler, svc *service.PaperService, cfg configs.PaperConfig) error {
	if sched == nil {
		return errors.New("scheduler is nil")
	}

	if svc == nil {
		return errors.New("paper service is nil")
	}

	if !cfg.ReconcileEnabled {
		return nil
	}

	return sched.AddCron(ctx, JobReconcileOrphans, cfg.ReconcileCron, func(ctx context.Context) error {
		return reconcile(ctx, svc)
	})
}

func reconcile(ctx context.Context, svc *service.PaperService) error {
	l := log.Component("jobs").With().Str("job", JobReconcileOrphans).Logger()

	report, err := svc.Reconcile(ctx)
	if err != nil {
		l.Error().Err(err).Msg("reconcile failed")
		return err
	}

	if len(report.Removed) > 0 || len(report.Failed) > 0 {
		l.Info().Strs("removed", report.Removed).Strs("failed", report.Failed).Msg("orphans reconciled")
	}

	return nil
}
