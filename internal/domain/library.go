package domain

import (
	"time"

	domainerrors "github.com/Arax734/bookshare-app-sub001/internal/errors"
)

// OwnershipStatus marks an owned copy as available for exchange.
type OwnershipStatus string

// StatusForExchange is the only non-null ownership status.
const StatusForExchange OwnershipStatus = "forExchange"

// BookOwnership asserts that a user physically owns a copy of a book.
type BookOwnership struct {
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
	Status    *OwnershipStatus `json:"status"`
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	BookID    string           `json:"bookId"`
}

// ForExchange reports whether the owner offers the copy for exchange.
func (o *BookOwnership) ForExchange() bool {
	return o.Status != nil && *o.Status == StatusForExchange
}

// SetForExchange toggles the exchange availability flag.
func (o *BookOwnership) SetForExchange(available bool) {
	if available {
		s := StatusForExchange
		o.Status = &s
	} else {
		o.Status = nil
	}
	o.UpdatedAt = time.Now()
}

// TransferTo moves the record to a new owner. The exchange flag belongs to
// the previous owner's intent and is cleared.
func (o *BookOwnership) TransferTo(userID string, at time.Time) {
	o.UserID = userID
	o.Status = nil
	o.UpdatedAt = at
}

// Validate checks a decoded or newly built ownership record.
func (o *BookOwnership) Validate() error {
	if o.ID == "" || o.UserID == "" {
		return domainerrors.Validation("ownership requires id and userId")
	}
	if o.Status != nil && *o.Status != StatusForExchange {
		return domainerrors.Validationf("unknown ownership status %q", *o.Status)
	}
	return validateBookID(o.BookID)
}

// BookMarker is a wishlist (desire) or favorite entry.
type BookMarker struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	BookID    string    `json:"bookId"`
}

// Validate checks a decoded or newly built marker.
func (m *BookMarker) Validate() error {
	if m.ID == "" || m.UserID == "" {
		return domainerrors.Validation("marker requires id and userId")
	}
	return validateBookID(m.BookID)
}

// LibraryList names one of a user's per-book lists.
type LibraryList string

// Library lists.
const (
	ListOwned     LibraryList = "owned"
	ListDesired   LibraryList = "desired"
	ListFavorites LibraryList = "favorites"
)

// ParseLibraryList returns the list named by s.
func ParseLibraryList(s string) (LibraryList, bool) {
	switch LibraryList(s) {
	case ListOwned, ListDesired, ListFavorites:
		return LibraryList(s), true
	}
	return "", false
}

// LibraryEntry is a list entry with its resolved book, as returned to clients.
type LibraryEntry struct {
	AddedAt     time.Time `json:"addedAt"`
	Book        Book      `json:"book"`
	ID          string    `json:"id"`
	BookID      string    `json:"bookId"`
	ForExchange bool      `json:"forExchange,omitempty"`
}
