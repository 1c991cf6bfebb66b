package auth

import (
	"context"
	"errors"
	"time"

	"github.com/Arax734/bookshare-app-sub001/internal/domain"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("auth: invalid token")

// Verifier turns a presented token into a verified identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*domain.Identity, error)
}

// AccountDeleter removes an account at the identity provider. Verifiers
// without a remote account store do not implement it.
type AccountDeleter interface {
	DeleteAccount(ctx context.Context, uid string) error
}

// SessionClaims represents the claims stored in a local PASETO session token.
type SessionClaims struct {
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"name,omitempty"`
	PhotoURL    string `json:"picture,omitempty"`

	// Standard PASETO claims
	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}

// Identity converts the claims to the caller identity.
func (c *SessionClaims) Identity() *domain.Identity {
	return &domain.Identity{
		UID:         c.Subject,
		Email:       c.Email,
		DisplayName: c.DisplayName,
		PhotoURL:    c.PhotoURL,
	}
}
