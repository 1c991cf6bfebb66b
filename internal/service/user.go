package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Arax734/bookshare-app-sub001/internal/auth"
	"github.com/Arax734/bookshare-app-sub001/internal/domain"
	domainerrors "github.com/Arax734/bookshare-app-sub001/internal/errors"
	"github.com/Arax734/bookshare-app-sub001/internal/store"
	"github.com/Arax734/bookshare-app-sub001/internal/validation"
)

// UpdateUserRequest contains optional fields to update.
type UpdateUserRequest struct {
	DisplayName *string `json:"displayName,omitempty" validate:"omitempty,max=100"`
	PhotoURL    *string `json:"photoURL,omitempty" validate:"omitempty,url"`
	PhoneNumber *string `json:"phoneNumber,omitempty" validate:"omitempty,max=32"`
	Bio         *string `json:"bio,omitempty" validate:"omitempty,max=500"`
}

// DeleteSummary counts what an account deletion removed or closed.
type DeleteSummary struct {
	Reviews           int `json:"reviews"`
	OwnedBooks        int `json:"ownedBooks"`
	Desires           int `json:"desires"`
	Favorites         int `json:"favorites"`
	Contacts          int `json:"contacts"`
	ExchangesCanceled int `json:"exchangesCanceled"`
	ExchangesDeclined int `json:"exchangesDeclined"`
}

// UserService manages the app-level user documents.
type UserService struct {
	store     *store.Store
	publisher Publisher
	deleter   auth.AccountDeleter
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewUserService creates a new user service. deleter may be nil when the
// identity provider keeps no remote accounts.
func NewUserService(store *store.Store, publisher Publisher, deleter auth.AccountDeleter, logger *slog.Logger) *UserService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &UserService{
		store:     store,
		publisher: publisher,
		deleter:   deleter,
		validator: validation.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// Ensure returns the user document for a verified identity, creating it on
// first sight.
func (s *UserService) Ensure(ctx context.Context, ident *domain.Identity) (*domain.User, error) {
	if ident == nil || ident.UID == "" {
		return nil, domainerrors.Unauthorized("missing identity")
	}

	u, err := s.store.Users.Get(ctx, ident.UID)
	if err == nil {
		return u, nil
	}
	if !store.IsNotFound(err) {
		return nil, storeError(err, "failed to load user")
	}

	now := s.now()
	u = &domain.User{
		UID:         ident.UID,
		Email:       ident.Email,
		DisplayName: ident.DisplayName,
		PhotoURL:    ident.PhotoURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Users.Insert(ctx, u); err != nil {
		// Another request created it first.
		if store.IsAlreadyExists(err) || errors.Is(err, store.ErrConflict) {
			return s.Get(ctx, ident.UID)
		}
		return nil, storeError(err, "failed to create user")
	}

	s.logger.Info("user created", "user_id", u.UID)
	return u, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, uid string) (*domain.User, error) {
	u, err := s.store.Users.Get(ctx, uid)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, domainerrors.NotFound("user not found")
		}
		return nil, storeError(err, "failed to load user")
	}
	return u, nil
}

// Profile returns the public profile of a user.
func (s *UserService) Profile(ctx context.Context, uid string) (*domain.UserProfile, error) {
	u, err := s.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	p := u.Public()
	return &p, nil
}

// Update changes the given fields of a user. A new display name or photo is
// copied to the user's reviews in the same transaction.
func (s *UserService) Update(ctx context.Context, uid string, req UpdateUserRequest) (*domain.User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var u *domain.User
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		u, err = s.store.Users.GetTx(tx, uid)
		if err != nil {
			if store.IsNotFound(err) {
				return domainerrors.NotFound("user not found")
			}
			return err
		}

		oldName, oldPhoto := u.Name(), u.PhotoURL
		if req.DisplayName != nil {
			u.DisplayName = strings.TrimSpace(*req.DisplayName)
		}
		if req.PhotoURL != nil {
			u.PhotoURL = *req.PhotoURL
		}
		if req.PhoneNumber != nil {
			u.PhoneNumber = strings.TrimSpace(*req.PhoneNumber)
		}
		if req.Bio != nil {
			u.Bio = *req.Bio
		}
		u.UpdatedAt = s.now()

		if err := s.store.Users.ReplaceTx(tx, u); err != nil {
			return err
		}
		if u.Name() == oldName && u.PhotoURL == oldPhoto {
			return nil
		}

		reviews, err := s.store.Reviews.FindTx(tx, "user", uid)
		if err != nil {
			return err
		}
		for _, r := range reviews {
			r.UserDisplayName = u.Name()
			r.UserPhotoURL = u.PhotoURL
			if err := s.store.Reviews.ReplaceTx(tx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err, "failed to update user")
	}
	return u, nil
}

// Delete removes a user and everything they own in one transaction: reviews,
// library lists and contacts. Pending exchanges they proposed are cancelled
// and pending exchanges addressed to them are declined; finished exchanges
// stay in the other party's history.
//
// TODO: split into batches when a cascade exceeds badger.ErrTxnTooBig.
func (s *UserService) Delete(ctx context.Context, uid string) (*DeleteSummary, error) {
	var (
		summary DeleteSummary
		touched []*domain.Exchange
		removed []*domain.UserContact
	)

	err := s.store.Update(ctx, func(tx *store.Tx) error {
		if _, err := s.store.Users.GetTx(tx, uid); err != nil {
			if store.IsNotFound(err) {
				return domainerrors.NotFound("user not found")
			}
			return err
		}

		var err error
		if summary.Reviews, err = deleteAll(tx, s.store.Reviews, "user", uid, func(r *domain.Review) string { return r.ID }); err != nil {
			return err
		}
		if summary.OwnedBooks, err = deleteAll(tx, s.store.Ownership, "user", uid, func(o *domain.BookOwnership) string { return o.ID }); err != nil {
			return err
		}
		if summary.Desires, err = deleteAll(tx, s.store.Desires, "user", uid, markerID); err != nil {
			return err
		}
		if summary.Favorites, err = deleteAll(tx, s.store.Favorites, "user", uid, markerID); err != nil {
			return err
		}

		edges, err := s.store.ContactsOfTx(tx, uid)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if err := s.store.Contacts.DeleteTx(tx, e.ID); err != nil {
				return err
			}
		}
		summary.Contacts = len(edges)
		removed = edges

		proposed, received, err := s.store.ExchangesOfTx(tx, uid)
		if err != nil {
			return err
		}
		now := s.now()
		for _, ex := range proposed {
			if ex.Status != domain.ExchangePending {
				continue
			}
			if err := ex.Cancel(uid, now); err != nil {
				return err
			}
			if err := s.store.Exchanges.ReplaceTx(tx, ex); err != nil {
				return err
			}
			summary.ExchangesCanceled++
			touched = append(touched, ex)
		}
		for _, ex := range received {
			if ex.Status != domain.ExchangePending {
				continue
			}
			if err := ex.Decline(uid, now); err != nil {
				return err
			}
			if err := s.store.Exchanges.ReplaceTx(tx, ex); err != nil {
				return err
			}
			summary.ExchangesDeclined++
			touched = append(touched, ex)
		}

		return s.store.Users.DeleteTx(tx, uid)
	})
	if err != nil {
		return nil, storeError(err, "failed to delete user")
	}

	s.logger.Info("user deleted",
		"user_id", uid,
		"reviews", summary.Reviews,
		"owned_books", summary.OwnedBooks,
		"contacts", summary.Contacts,
		"exchanges_cancelled", summary.ExchangesCanceled,
		"exchanges_declined", summary.ExchangesDeclined,
	)

	for _, ex := range touched {
		s.publisher.ExchangeChanged(ctx, ex)
	}
	for _, e := range removed {
		s.publisher.ContactChanged(ctx, e)
	}

	if s.deleter != nil {
		if err := s.deleter.DeleteAccount(ctx, uid); err != nil {
			// Local data is already gone; the remote account can be removed by hand.
			s.logger.Error("failed to delete identity provider account", "user_id", uid, "error", err)
		}
	}
	return &summary, nil
}

func markerID(m *domain.BookMarker) string { return m.ID }

func deleteAll[T any](tx *store.Tx, c *store.Collection[T], index, value string, idOf func(*T) string) (int, error) {
	docs, err := c.FindTx(tx, index, value)
	if err != nil {
		return 0, err
	}
	for _, d := range docs {
		if err := c.DeleteTx(tx, idOf(d)); err != nil {
			return 0, err
		}
	}
	return len(docs), nil
}
