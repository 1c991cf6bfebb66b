package domain

import (
	"time"

	domainerrors "github.com/Arax734/bookshare-app-sub001/internal/errors"
)

// ContactStatus is the state of a contact edge.
type ContactStatus string

// Contact states.
const (
	ContactPending  ContactStatus = "pending"
	ContactAccepted ContactStatus = "accepted"
)

// UserContact is a directed edge from the inviting user to the invited one.
// An accepted edge is symmetric; both directions must be queried.
type UserContact struct {
	CreatedAt  time.Time     `json:"createdAt"`
	AcceptedAt *time.Time    `json:"acceptedAt,omitempty"`
	ID         string        `json:"id"`
	UserID     string        `json:"userId"`
	ContactID  string        `json:"contactId"`
	Status     ContactStatus `json:"status"`
}

// Involves reports whether userID is either end of the edge.
func (c *UserContact) Involves(userID string) bool {
	return c.UserID == userID || c.ContactID == userID
}

// Other returns the far end of the edge as seen from userID.
func (c *UserContact) Other(userID string) string {
	if c.UserID == userID {
		return c.ContactID
	}
	return c.UserID
}

// Validate checks a decoded or newly built contact edge.
func (c *UserContact) Validate() error {
	if c.ID == "" || c.UserID == "" || c.ContactID == "" {
		return domainerrors.Validation("contact requires id, userId and contactId")
	}
	if c.UserID == c.ContactID {
		return domainerrors.Validation("a user cannot be their own contact")
	}
	switch c.Status {
	case ContactPending, ContactAccepted:
		return nil
	}
	return domainerrors.Validationf("unknown contact status %q", c.Status)
}

// PairKey identifies the unordered pair of users on an edge.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// Contact is an accepted contact with their public profile.
type Contact struct {
	Since   time.Time   `json:"since"`
	Profile UserProfile `json:"profile"`
	EdgeID  string      `json:"edgeId"`
}
