package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/Arax734/bookshare-app-sub001/internal/logger"
)

// storeGCInterval is how often badger's value log is compacted.
const storeGCInterval = 1 * time.Hour

// StoreGCJob runs periodic value log garbage collection.
type StoreGCJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (j *StoreGCJob) Shutdown() error {
	j.cancel()
	<-j.done
	return nil
}

// ProvideStoreGCJob provides the periodic store garbage collection job.
func ProvideStoreGCJob(i do.Injector) (*StoreGCJob, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(storeGCInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				start := time.Now()
				if err := storeHandle.RunGC(); err != nil {
					log.Warn("Store garbage collection failed", "error", err)
				} else {
					log.Debug("Store garbage collection completed", "duration", time.Since(start))
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Store garbage collection job started", "interval", storeGCInterval)

	return &StoreGCJob{cancel: cancel, done: done}, nil
}
