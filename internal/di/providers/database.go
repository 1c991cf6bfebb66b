package providers

import (
	"context"
	"sync"

	"github.com/samber/do/v2"

	"github.com/Arax734/bookshare-app-sub001/internal/config"
	"github.com/Arax734/bookshare-app-sub001/internal/logger"
	"github.com/Arax734/bookshare-app-sub001/internal/sse"
	"github.com/Arax734/bookshare-app-sub001/internal/store"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the badger store. Shutdown may be called both by the
// container and by main; only the first call closes the database.
type StoreHandle struct {
	*store.Store
	once sync.Once
	err  error
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	h.once.Do(func() { h.err = h.Store.Close() })
	return h.err
}

// ProvideStore opens the document store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := store.New(cfg.Data.DBPath(), log.Logger)
	if err != nil {
		return nil, err
	}

	stats, err := db.Stats(context.Background())
	if err != nil {
		log.Warn("Failed to count documents", "error", err)
	} else {
		log.Info("Store ready",
			"users", stats[store.CollectionUsers],
			"reviews", stats[store.CollectionReviews],
			"exchanges", stats[store.CollectionExchanges],
		)
	}

	return &StoreHandle{Store: db}, nil
}
