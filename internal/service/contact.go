package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Arax734/bookshare-app-sub001/internal/domain"
	domainerrors "github.com/Arax734/bookshare-app-sub001/internal/errors"
	"github.com/Arax734/bookshare-app-sub001/internal/id"
	"github.com/Arax734/bookshare-app-sub001/internal/store"
)

// Invite is a pending contact request addressed to the user.
type Invite struct {
	CreatedAt time.Time          `json:"createdAt"`
	From      domain.UserProfile `json:"from"`
	EdgeID    string             `json:"edgeId"`
}

// ContactService manages the contact graph. An edge points from the
// inviting user to the invited one and is symmetric once accepted.
type ContactService struct {
	store     *store.Store
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewContactService creates a new contact service. A nil publisher disables
// notifications.
func NewContactService(store *store.Store, publisher Publisher, logger *slog.Logger) *ContactService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &ContactService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Invite sends a contact request from userID to contactID.
func (s *ContactService) Invite(ctx context.Context, userID, contactID string) (*domain.UserContact, error) {
	if contactID == "" {
		return nil, domainerrors.Validation("contactId is required")
	}
	if contactID == userID {
		return nil, domainerrors.Validation("you cannot add yourself as a contact")
	}

	edgeID, err := id.Generate(id.PrefixContact)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to create contact")
	}
	edge := &domain.UserContact{
		ID:        edgeID,
		UserID:    userID,
		ContactID: contactID,
		Status:    domain.ContactPending,
		CreatedAt: s.now(),
	}

	err = s.store.Update(ctx, func(tx *store.Tx) error {
		if _, err := s.store.Users.GetTx(tx, contactID); err != nil {
			if store.IsNotFound(err) {
				return domainerrors.NotFound("user not found")
			}
			return err
		}
		if _, err := s.store.ContactBetweenTx(tx, userID, contactID); err == nil {
			return domainerrors.Conflict("a contact or invitation already exists")
		} else if !store.IsNotFound(err) {
			return err
		}
		return s.store.Contacts.InsertTx(tx, edge)
	})
	if err != nil {
		if store.IsAlreadyExists(err) {
			return nil, domainerrors.Conflict("a contact or invitation already exists")
		}
		return nil, storeError(err, "failed to create contact")
	}

	s.logger.Info("contact invited", "user_id", userID, "contact_id", contactID)
	s.publisher.ContactChanged(ctx, edge)
	return edge, nil
}

// Accept accepts a pending invitation. Only the invited user may accept.
func (s *ContactService) Accept(ctx context.Context, edgeID, actorID string) (*domain.UserContact, error) {
	var edge *domain.UserContact
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		edge, err = s.edgeTx(tx, edgeID, actorID)
		if err != nil {
			return err
		}
		if edge.ContactID != actorID {
			return domainerrors.Forbidden("only the invited user can accept this invitation")
		}
		if edge.Status != domain.ContactPending {
			return domainerrors.Conflict("invitation is no longer pending")
		}
		now := s.now()
		edge.Status = domain.ContactAccepted
		edge.AcceptedAt = &now
		return s.store.Contacts.ReplaceTx(tx, edge)
	})
	if err != nil {
		return nil, storeError(err, "failed to accept contact")
	}

	s.logger.Info("contact accepted", "edge_id", edge.ID, "user_id", edge.UserID, "contact_id", edge.ContactID)
	s.publisher.ContactChanged(ctx, edge)
	return edge, nil
}

// Remove deletes an edge. Either party may remove it, whatever its status.
func (s *ContactService) Remove(ctx context.Context, edgeID, actorID string) error {
	var edge *domain.UserContact
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		edge, err = s.edgeTx(tx, edgeID, actorID)
		if err != nil {
			return err
		}
		return s.store.Contacts.DeleteTx(tx, edge.ID)
	})
	if err != nil {
		return storeError(err, "failed to remove contact")
	}

	s.logger.Info("contact removed", "edge_id", edge.ID, "actor", actorID)
	s.publisher.ContactChanged(ctx, edge)
	return nil
}

func (s *ContactService) edgeTx(tx *store.Tx, edgeID, actorID string) (*domain.UserContact, error) {
	edge, err := s.store.Contacts.GetTx(tx, edgeID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, domainerrors.NotFound("contact not found")
		}
		return nil, err
	}
	if !edge.Involves(actorID) {
		return nil, domainerrors.NotFound("contact not found")
	}
	return edge, nil
}

// List returns the user's accepted contacts in both directions.
func (s *ContactService) List(ctx context.Context, userID string) ([]domain.Contact, error) {
	contacts := []domain.Contact{}
	err := s.store.View(ctx, func(tx *store.Tx) error {
		edges, err := s.store.ContactsOfTx(tx, userID)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if e.Status != domain.ContactAccepted {
				continue
			}
			since := e.CreatedAt
			if e.AcceptedAt != nil {
				since = *e.AcceptedAt
			}
			contacts = append(contacts, domain.Contact{
				EdgeID:  e.ID,
				Since:   since,
				Profile: s.profileTx(tx, e.Other(userID)),
			})
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err, "failed to list contacts")
	}
	return contacts, nil
}

// Invites returns pending invitations addressed to the user.
func (s *ContactService) Invites(ctx context.Context, userID string) ([]Invite, error) {
	invites := []Invite{}
	err := s.store.View(ctx, func(tx *store.Tx) error {
		edges, err := s.store.Contacts.FindTx(tx, "contact", userID)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if e.Status != domain.ContactPending {
				continue
			}
			invites = append(invites, Invite{
				EdgeID:    e.ID,
				CreatedAt: e.CreatedAt,
				From:      s.profileTx(tx, e.UserID),
			})
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err, "failed to list invitations")
	}
	return invites, nil
}

// AreContacts reports whether two users share an accepted edge.
func (s *ContactService) AreContacts(ctx context.Context, a, b string) (bool, error) {
	var ok bool
	err := s.store.View(ctx, func(tx *store.Tx) error {
		edge, err := s.store.ContactBetweenTx(tx, a, b)
		if err != nil {
			if store.IsNotFound(err) {
				return nil
			}
			return err
		}
		ok = edge.Status == domain.ContactAccepted
		return nil
	})
	return ok, storeError(err, "failed to check contact")
}

func (s *ContactService) profileTx(tx *store.Tx, uid string) domain.UserProfile {
	u, err := s.store.Users.GetTx(tx, uid)
	if err != nil {
		return (&domain.User{UID: uid}).Public()
	}
	return u.Public()
}
