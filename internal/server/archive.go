package server

import (
	"context"
	"time"

	"quizbuzzer/internal/db"

	"go.uber.org/zap"
)

const (
	archiveBuffer  = 1000
	flushInterval  = 500 * time.Millisecond
	flushBatchSize = 50
	finalFlushWait = 5 * time.Second
)

type flushFunc func(ctx context.Context, events []db.RoomEvent) error

// batchWriter collects archive events and hands them to flush every
// flushInterval or once flushBatchSize are queued. flush must not retain the
// slice. Events still queued when ctx ends are flushed once more.
func batchWriter(ctx context.Context, in <-chan db.RoomEvent, flush flushFunc, log *zap.Logger) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]db.RoomEvent, 0, flushBatchSize)
	write := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := flush(ctx, batch); err != nil {
			log.Error("archive flush failed", zap.Int("events", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			for len(in) > 0 {
				batch = append(batch, <-in)
			}
			finalCtx, cancel := context.WithTimeout(context.Background(), finalFlushWait)
			write(finalCtx)
			cancel()
			return
		case ev := <-in:
			batch = append(batch, ev)
			if len(batch) >= flushBatchSize {
				write(ctx)
			}
		case <-ticker.C:
			write(ctx)
		}
	}
}
