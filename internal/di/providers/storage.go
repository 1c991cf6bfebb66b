package providers

import (
	"time"

	"github.com/samber/do/v2"

	"github.com/Arax734/bookshare-app-sub001/internal/catalog/cache"
	"github.com/Arax734/bookshare-app-sub001/internal/config"
	"github.com/Arax734/bookshare-app-sub001/internal/logger"
)

// cacheJanitorInterval is how often expired catalog entries are purged.
const cacheJanitorInterval = 30 * time.Minute

// CatalogCacheHandle wraps the sqlite book detail cache. Cache is nil when
// caching is disabled.
type CatalogCacheHandle struct {
	*cache.Cache
}

// Shutdown implements do.Shutdownable.
func (h *CatalogCacheHandle) Shutdown() error {
	if h.Cache == nil {
		return nil
	}
	return h.Cache.Close()
}

// ProvideCatalogCache opens the catalog detail cache and starts its janitor.
func ProvideCatalogCache(i do.Injector) (*CatalogCacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Catalog.CacheTTL <= 0 {
		log.Info("Catalog cache disabled by configuration")
		return &CatalogCacheHandle{}, nil
	}

	c, err := cache.Open(cfg.Data.CachePath(), cfg.Catalog.CacheTTL, log.Logger)
	if err != nil {
		return nil, err
	}
	c.StartJanitor(cacheJanitorInterval)

	log.Info("Catalog cache opened",
		"path", cfg.Data.CachePath(),
		"ttl", cfg.Catalog.CacheTTL,
	)

	return &CatalogCacheHandle{Cache: c}, nil
}
