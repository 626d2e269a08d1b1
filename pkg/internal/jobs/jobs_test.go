package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/papervault/pkg/configs"
	"github.com/yeisme/papervault/pkg/internal/jobs"
	"github.com/yeisme/papervault/pkg/internal/model"
	"github.com/yeisme/papervault/pkg/internal/repository"
	"github.com/yeisme/papervault/pkg/internal/service"
	"github.com/yeisme/papervault/pkg/internal/storage/blob"
	"github.com/yeisme/papervault/pkg/scheduler"
)

func TestReconcileJobRemovesOrphans(t *testing.T) {
	old := time.Now().Add(-48 * time.Hour)
	store := blob.NewMemoryStore("", blob.WithMemoryClock(func() time.Time { return old }))

	_, err := store.Upload(context.Background(), []byte("%PDF"), "orphan.pdf", model.MimeTypePDF)
	require.NoError(t, err)

	cfg := configs.PaperConfig{ReconcileEnabled: true, ReconcileCron: "0 0 1 1 *", ReconcileGrace: time.Hour}
	svc := service.NewPaperService(service.Deps{Repo: repository.NewMemory(), Blob: store, Config: cfg})

	sched, err := scheduler.NewScheduler()
	require.NoError(t, err)
	sched.Start()
	t.Cleanup(func() { _ = sched.Stop() })

	require.NoError(t, jobs.RegisterCronJobs(context.Background(), sched, svc, cfg))
	require.NoError(t, sched.RunNow(jobs.JobReconcileOrphans))

	assert.Eventually(t, func() bool { return store.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestRegisterSkipsWhenDisabled(t *testing.T) {
	sched, err := scheduler.NewScheduler()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Stop() })

	svc := service.NewPaperService(service.Deps{Repo: repository.NewMemory(), Blob: blob.NewMemoryStore("")})

	require.NoError(t, jobs.RegisterCronJobs(context.Background(), sched, svc, configs.PaperConfig{}))
	assert.Empty(t, sched.GetJobInfos())
	assert.Error(t, jobs.RegisterCronJobs(context.Background(), nil, svc, configs.PaperConfig{}))
}
