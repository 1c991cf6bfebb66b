package providers

import (
	"github.com/samber/do/v2"

	"github.com/Arax734/bookshare-app-sub001/internal/catalog"
	"github.com/Arax734/bookshare-app-sub001/internal/config"
	"github.com/Arax734/bookshare-app-sub001/internal/logger"
)

// CatalogClientHandle wraps the catalog client with shutdown capability.
type CatalogClientHandle struct {
	*catalog.Client
}

// Shutdown implements do.Shutdownable.
func (h *CatalogClientHandle) Shutdown() error {
	h.Client.Close()
	return nil
}

// ProvideCatalogClient provides the external catalog client.
func ProvideCatalogClient(i do.Injector) (*CatalogClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	cacheHandle := do.MustInvoke[*CatalogCacheHandle](i)

	// A typed nil *cache.Cache must not reach the client as a non-nil interface.
	var c catalog.Cache
	if cacheHandle.Cache != nil {
		c = cacheHandle.Cache
	}

	client := catalog.New(catalog.Config{
		BaseURL:          cfg.Catalog.BaseURL,
		Timeout:          cfg.Catalog.Timeout,
		RequestsPerSec:   cfg.Catalog.RequestsPerSec,
		Burst:            cfg.Catalog.Burst,
		RetryAttempts:    cfg.Catalog.RetryAttempts,
		RetryDelay:       cfg.Catalog.RetryDelay,
		BreakerThreshold: cfg.Catalog.BreakerThreshold,
	}, log.Logger, c)

	log.Info("Catalog client initialized",
		"base_url", cfg.Catalog.BaseURL,
		"requests_per_sec", cfg.Catalog.RequestsPerSec,
		"cached", c != nil,
	)

	return &CatalogClientHandle{Client: client}, nil
}
