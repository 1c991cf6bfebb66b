package auth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/Arax734/bookshare-app-sub001/internal/domain"
)

// FirebaseVerifier verifies Firebase Authentication ID tokens.
type FirebaseVerifier struct {
	client *fbauth.Client
}

// NewFirebaseVerifier initialises the Admin SDK for projectID. With an empty
// credentialsFile the SDK falls back to application default credentials.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (*FirebaseVerifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}

	return &FirebaseVerifier{client: client}, nil
}

// Verify checks the ID token signature, audience and expiry.
func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*domain.Identity, error) {
	t, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return identityFromClaims(t.UID, t.Claims), nil
}

// DeleteAccount removes the Firebase user.
func (v *FirebaseVerifier) DeleteAccount(ctx context.Context, uid string) error {
	if err := v.client.DeleteUser(ctx, uid); err != nil && !fbauth.IsUserNotFound(err) {
		return fmt.Errorf("delete firebase user: %w", err)
	}
	return nil
}

func identityFromClaims(uid string, claims map[string]any) *domain.Identity {
	str := func(key string) string {
		s, _ := claims[key].(string)
		return s
	}
	return &domain.Identity{
		UID:         uid,
		Email:       str("email"),
		DisplayName: str("name"),
		PhotoURL:    str("picture"),
	}
}
