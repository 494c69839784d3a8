package main

import (
	"time"

	"nereus/pkg/broker"
	"nereus/pkg/util/context"
)

// sweep deletes finished jobs older than maxAge every interval until ctx is done.
func (h handlers) sweep(ctx context.Context, maxAge, interval time.Duration) {
	ctx.Logger().Infof("retention enabled: finished jobs are deleted %s after they end", maxAge)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			h.expire(ctx, maxAge, now)
		}
	}
}

// expire deletes finished jobs that ended more than maxAge before now.
func (h handlers) expire(ctx context.Context, maxAge time.Duration, now time.Time) int {
	ids, err := h.registry.Expired(ctx, maxAge, now)
	if err != nil {
		ctx.Logger().Errorf("cannot list expired jobs: %s", err)
		return 0
	}
	n := 0
	for _, id := range ids {
		jctx := context.WithJobID(ctx, id)
		if err := h.store.DeleteJob(jctx, id); err != nil {
			jctx.Logger().Errorf("cannot delete expired job: %s", err)
			continue
		}
		jctx.Logger().Info("expired job deleted")
		broker.Notify(jctx, h.broker, broker.TypeDeleted, "expired")
		n++
	}
	return n
}
