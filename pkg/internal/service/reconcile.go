package service

import (
	"context"
	"time"

	"github.com/yeisme/papervault/pkg/internal/errs"
	"github.com/yeisme/papervault/pkg/internal/storage/blob"
	"github.com/yeisme/papervault/pkg/internal/types"
	"github.com/yeisme/papervault/pkg/metrics"
	"github.com/yeisme/papervault/pkg/queue"
	"github.com/yeisme/papervault/pkg/tracing"
)

// Reconcile 删除没有任何记录引用、且早于宽限期的对象.
// 宽限期内的对象可能属于仍在入库中的请求，不会被处理.
// 单个对象删除失败只计入报告，不中断本轮清理.
func (s *PaperService) Reconcile(ctx context.Context) (report *types.ReconcileReport, err error) {
	ctx, span := tracing.StartSpan(ctx, "paper.reconcile")
	defer func() { tracing.EndSpan(span, err) }()

	objects, err := s.blob.List(ctx, s.blob.Prefix())
	if err != nil {
		return nil, asCategory(err, errs.CategoryStorage, "paper.reconcile")
	}

	report = &types.ReconcileReport{Scanned: len(objects), Removed: []string{}}

	cutoff := s.now().Add(-s.cfg.ReconcileGrace)

	candidates := make([]blob.ObjectMetadata, 0)
	keys := make([]string, 0)

	for _, obj := range objects {
		if !obj.LastModified.Before(cutoff) {
			continue
		}

		candidates = append(candidates, obj)
		keys = append(keys, obj.Key)
	}

	report.Candidates = len(candidates)
	if len(candidates) == 0 {
		return report, nil
	}

	referenced, err := s.repo.ObjectKeys(ctx, keys)
	if err != nil {
		return nil, err
	}

	for _, obj := range candidates {
		if referenced[obj.Key] {
			continue
		}

		if err := s.blob.Delete(ctx, obj.Key); err != nil {
			s.log.Warn().Err(err).Str("object_key", obj.Key).Msg("remove orphan failed")
			report.Failed = append(report.Failed, obj.Key)

			continue
		}

		report.Removed = append(report.Removed, obj.Key)
		metrics.OrphansRemovedTotal.Inc()

		if err := s.events.OrphanRemoved(ctx, queue.OrphanRemovedPayload{
			Object: queue.ObjectRef{
				ObjectKey:   obj.Key,
				ETag:        obj.ETag,
				Size:        obj.Size,
				ContentType: obj.ContentType,
			},
			LastModified: obj.LastModified,
		}, traceOpts(span)...); err != nil {
			s.log.Warn().Err(err).Str("object_key", obj.Key).Msg("publish orphan removed failed")
		}
	}

	s.log.Info().
		Int("scanned", report.Scanned).
		Int("candidates", report.Candidates).
		Int("removed", len(report.Removed)).
		Int("failed", len(report.Failed)).
		Dur("grace", s.cfg.ReconcileGrace).
		Time("cutoff", cutoff.Truncate(time.Second)).
		Msg("reconcile finished")

	return report, nil
}
