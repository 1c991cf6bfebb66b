package domain

import (
	"time"

	"github.com/Arax734/bookshare-app-sub001/internal/color"
	domainerrors "github.com/Arax734/bookshare-app-sub001/internal/errors"
)

// User is the app-level mirror of an identity provider account.
// It is created lazily on the first authenticated request.
type User struct {
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	PhotoURL    string    `json:"photoURL"`
	PhoneNumber string    `json:"phoneNumber"`
	Bio         string    `json:"bio"`
}

// Validate checks a decoded or newly built user document.
func (u *User) Validate() error {
	if u.UID == "" {
		return domainerrors.Validation("user requires uid")
	}
	return nil
}

// Name returns the display name, falling back to the email address.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}

// Public returns the fields other users may see.
func (u *User) Public() UserProfile {
	return UserProfile{
		UID:         u.UID,
		DisplayName: u.Name(),
		PhotoURL:    u.PhotoURL,
		AvatarColor: color.ForUser(u.UID),
		Bio:         u.Bio,
	}
}

// UserProfile is the public view of a user.
type UserProfile struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
	AvatarColor string `json:"avatarColor"`
	Bio         string `json:"bio,omitempty"`
}

// Identity is the verified caller as reported by the identity provider.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
}
