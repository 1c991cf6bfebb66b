package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/Arax734/bookshare-app-sub001/internal/api"
	"github.com/Arax734/bookshare-app-sub001/internal/config"
	"github.com/Arax734/bookshare-app-sub001/internal/logger"
	"github.com/Arax734/bookshare-app-sub001/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	handler *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	h.handler.Close()
	return err
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	catalogHandle := do.MustInvoke[*CatalogClientHandle](i)
	identity := do.MustInvoke[*Identity](i)
	log := do.MustInvoke[*logger.Logger](i)

	services := &api.Services{
		Catalog:         catalogHandle.Client,
		Ratings:         do.MustInvoke[*service.RatingService](i),
		Recommendations: do.MustInvoke[*service.RecommendationService](i),
		Exchanges:       do.MustInvoke[*service.ExchangeService](i),
		Library:         do.MustInvoke[*service.LibraryService](i),
		Contacts:        do.MustInvoke[*service.ContactService](i),
		Reviews:         do.MustInvoke[*service.ReviewService](i),
		Users:           do.MustInvoke[*service.UserService](i),
		Notifications:   do.MustInvoke[*service.NotificationService](i),
	}

	handler := api.NewServer(cfg, storeHandle.Store, services, identity.Verifier, sseHandle.Manager, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr, "allowed_origins", cfg.Server.AllowedOrigins)

	return &HTTPServerHandle{Server: srv, handler: handler}, nil
}
