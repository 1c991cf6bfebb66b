package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/Arax734/bookshare-app-sub001/internal/auth"
	"github.com/Arax734/bookshare-app-sub001/internal/config"
	"github.com/Arax734/bookshare-app-sub001/internal/logger"
)

// Identity groups the configured identity provider's capabilities.
// Deleter is nil for providers without remote accounts.
type Identity struct {
	Verifier auth.Verifier
	Deleter  auth.AccountDeleter
}

// ProvideIdentity provides the token verifier for the configured provider.
func ProvideIdentity(i do.Injector) (*Identity, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Auth.Provider == config.AuthProviderFirebase {
		verifier, err := auth.NewFirebaseVerifier(context.Background(), cfg.Auth.FirebaseProjectID, cfg.Auth.CredentialsFile)
		if err != nil {
			return nil, err
		}
		log.Info("Firebase identity provider initialized", "project_id", cfg.Auth.FirebaseProjectID)
		return &Identity{Verifier: verifier, Deleter: verifier}, nil
	}

	tokens, err := TokenServiceFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	log.Warn("Local identity provider in use; mint tokens with the bookshare CLI",
		"session_ttl", cfg.Auth.SessionTTL,
	)
	return &Identity{Verifier: tokens}, nil
}

// TokenServiceFromConfig builds the PASETO token service for the local provider.
func TokenServiceFromConfig(cfg *config.Config) (*auth.TokenService, error) {
	key, err := auth.LocalKey(cfg.Auth.LocalSecret, cfg.Auth.LocalKeyPath)
	if err != nil {
		return nil, err
	}
	return auth.NewTokenService(key, cfg.Auth.SessionTTL)
}
