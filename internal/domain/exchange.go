package domain

import (
	"bytes"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	domainerrors "github.com/Arax734/bookshare-app-sub001/internal/errors"
	"github.com/Arax734/bookshare-app-sub001/internal/normalize"
)

// ExchangeStatus is the state of an exchange proposal.
type ExchangeStatus string

// Exchange states. Every state except pending is terminal.
const (
	ExchangePending   ExchangeStatus = "pending"
	ExchangeCompleted ExchangeStatus = "completed"
	ExchangeDeclined  ExchangeStatus = "declined"
	ExchangeCancelled ExchangeStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed.
func (s ExchangeStatus) IsTerminal() bool {
	return s == ExchangeCompleted || s == ExchangeDeclined || s == ExchangeCancelled
}

func (s ExchangeStatus) valid() bool {
	return s == ExchangePending || s.IsTerminal()
}

// ErrExchangeNotPending is returned for a transition out of a terminal state.
var ErrExchangeNotPending = domainerrors.Conflict("exchange is no longer pending")

// Exchange is a proposed swap of books between a proposer (UserID) and a
// recipient (ContactID).
type Exchange struct {
	CreatedAt    time.Time      `json:"createdAt"`
	StatusDate   *time.Time     `json:"statusDate,omitempty"`
	ID           string         `json:"id"`
	UserID       string         `json:"userId"`
	ContactID    string         `json:"contactId"`
	Status       ExchangeStatus `json:"status"`
	UserBooks    []BookRef      `json:"userBooks"`
	ContactBooks []BookRef      `json:"contactBooks"`
}

// Accept moves a pending exchange to completed. Only the recipient may accept.
func (e *Exchange) Accept(actorID string, at time.Time) error {
	if actorID != e.ContactID {
		return domainerrors.Forbidden("only the recipient can accept this exchange")
	}
	return e.transition(ExchangeCompleted, at)
}

// Decline moves a pending exchange to declined. Only the recipient may decline.
func (e *Exchange) Decline(actorID string, at time.Time) error {
	if actorID != e.ContactID {
		return domainerrors.Forbidden("only the recipient can decline this exchange")
	}
	return e.transition(ExchangeDeclined, at)
}

// Cancel withdraws a pending exchange. Only the proposer may cancel.
func (e *Exchange) Cancel(actorID string, at time.Time) error {
	if actorID != e.UserID {
		return domainerrors.Forbidden("only the proposer can cancel this exchange")
	}
	return e.transition(ExchangeCancelled, at)
}

func (e *Exchange) transition(to ExchangeStatus, at time.Time) error {
	if e.Status != ExchangePending {
		return ErrExchangeNotPending
	}
	e.Status = to
	e.StatusDate = &at
	return nil
}

// Involves reports whether userID is a party to the exchange.
func (e *Exchange) Involves(userID string) bool {
	return e.UserID == userID || e.ContactID == userID
}

// SortTime is the history ordering key: the status date, else creation time.
func (e *Exchange) SortTime() time.Time {
	if e.StatusDate != nil {
		return *e.StatusDate
	}
	return e.CreatedAt
}

// UserBookIDs returns the padded ids offered by the proposer.
func (e *Exchange) UserBookIDs() []string {
	return refIDs(e.UserBooks)
}

// ContactBookIDs returns the padded ids requested from the recipient.
func (e *Exchange) ContactBookIDs() []string {
	return refIDs(e.ContactBooks)
}

func refIDs(refs []BookRef) []string {
	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.ID()
	}
	return ids
}

// Validate checks a decoded or newly built exchange.
func (e *Exchange) Validate() error {
	if e.ID == "" || e.UserID == "" || e.ContactID == "" {
		return domainerrors.Validation("exchange requires id, userId and contactId")
	}
	if !e.Status.valid() {
		return domainerrors.Validationf("unknown exchange status %q", e.Status)
	}
	for _, r := range append(append([]BookRef{}, e.UserBooks...), e.ContactBooks...) {
		if err := validateBookID(r.ID()); err != nil {
			return err
		}
	}
	return nil
}

// BookRefKind tags the BookRef variant.
type BookRefKind string

// BookRef variants.
const (
	RefResolved   BookRefKind = "resolved"
	RefUnresolved BookRefKind = "unresolved"
)

// BookRef is either Resolved (book details captured when the exchange was
// written) or Unresolved (only the padded id is known).
type BookRef struct {
	book *Book
	id   string
}

// Resolved returns a reference carrying book details.
func Resolved(b Book) BookRef {
	return BookRef{id: normalize.BookID(string(b.ID)), book: &b}
}

// Unresolved returns a reference carrying only an id.
func Unresolved(bookID string) BookRef {
	return BookRef{id: normalize.BookID(bookID)}
}

// ID returns the padded book id.
func (r BookRef) ID() string { return r.id }

// Kind returns the variant tag.
func (r BookRef) Kind() BookRefKind {
	if r.book != nil {
		return RefResolved
	}
	return RefUnresolved
}

// Book returns the captured details for a resolved reference.
func (r BookRef) Book() (Book, bool) {
	if r.book == nil {
		return Book{}, false
	}
	return *r.book, true
}

type bookRefWire struct {
	Book *Book       `json:"book,omitempty"`
	Kind BookRefKind `json:"kind"`
	ID   string      `json:"id"`
}

// MarshalJSON writes the canonical tagged shape.
func (r BookRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(bookRefWire{Kind: r.Kind(), ID: r.id, Book: r.book})
}

// UnmarshalJSON accepts the canonical tagged shape as well as the legacy
// shapes: a bare id (string or number) or an inline book object, which is
// resolved only if it carries a title.
func (r *BookRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("book reference is empty")
	}

	if data[0] != '{' {
		var id FlexString
		if err := json.Unmarshal(data, &id); err != nil {
			return fmt.Errorf("decode book reference: %w", err)
		}
		if id == "" {
			return fmt.Errorf("book reference has no id")
		}
		*r = Unresolved(string(id))
		return nil
	}

	var probe struct {
		Book  *Book       `json:"book"`
		Kind  BookRefKind `json:"kind"`
		ID    FlexString  `json:"id"`
		Title string      `json:"title"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("decode book reference: %w", err)
	}

	switch probe.Kind {
	case RefResolved:
		if probe.Book == nil {
			return fmt.Errorf("resolved book reference without book")
		}
		ref := Resolved(*probe.Book)
		if ref.id == "" {
			ref.id = normalize.BookID(string(probe.ID))
		}
		*r = ref
	case RefUnresolved:
		*r = Unresolved(string(probe.ID))
	case "":
		if probe.Title != "" {
			var legacy Book
			if err := json.Unmarshal(data, &legacy); err != nil {
				return fmt.Errorf("decode legacy book reference: %w", err)
			}
			*r = Resolved(legacy)
		} else {
			*r = Unresolved(string(probe.ID))
		}
	default:
		return fmt.Errorf("unknown book reference kind %q", probe.Kind)
	}

	if r.id == "" {
		return fmt.Errorf("book reference has no id")
	}
	return nil
}
