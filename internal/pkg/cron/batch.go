package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/batch"
)

type BatchJobs struct {
	batchService batch.BatchService
	interval     time.Duration
}

func NewBatchJobs(batchService batch.BatchService, interval time.Duration) *BatchJobs {
	return &BatchJobs{
		batchService: batchService,
		interval:     interval,
	}
}

func (j *BatchJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob("evict_idle_batches", j.interval, j.EvictIdleBatches)
}

// EvictIdleBatches drops batch sessions nobody has touched within the idle TTL.
func (j *BatchJobs) EvictIdleBatches(ctx context.Context) error {
	evicted, err := j.batchService.EvictIdle(ctx)
	if err != nil {
		return err
	}
	if evicted > 0 {
		slog.Info("Cron: evicted idle batches", "count", evicted)
	}
	return nil
}
