package domain

import (
	"strings"
	"time"

	domainerrors "github.com/Arax734/bookshare-app-sub001/internal/errors"
	"github.com/Arax734/bookshare-app-sub001/internal/normalize"
)

// Rating bounds and the preference threshold used by recommendations.
const (
	MinRating       = 1
	MaxRating       = 10
	HighRatingFloor = 7
)

// Review is a user's rating and comment for a book.
// The display name and photo are denormalized from the author's profile.
type Review struct {
	CreatedAt       time.Time `json:"createdAt"`
	ID              string    `json:"id"`
	BookID          string    `json:"bookId"`
	UserID          string    `json:"userId"`
	Comment         string    `json:"comment"`
	UserDisplayName string    `json:"userDisplayName"`
	UserPhotoURL    string    `json:"userPhotoURL"`
	Rating          int       `json:"rating"`
}

// IsHighRated reports whether the review signals a positive preference.
func (r *Review) IsHighRated() bool {
	return r.Rating >= HighRatingFloor
}

// Validate checks a decoded or newly built review.
func (r *Review) Validate() error {
	if r.ID == "" || r.UserID == "" {
		return domainerrors.Validation("review requires id and userId")
	}
	if err := validateBookID(r.BookID); err != nil {
		return err
	}
	if r.Rating < MinRating || r.Rating > MaxRating {
		return domainerrors.Validationf("rating must be between %d and %d", MinRating, MaxRating)
	}
	return nil
}

func validateBookID(bookID string) error {
	if strings.TrimSpace(bookID) == "" {
		return domainerrors.Validation("bookId is required")
	}
	if normalize.BookID(bookID) != bookID {
		return domainerrors.Validationf("bookId %q is not in canonical form", bookID)
	}
	return nil
}
