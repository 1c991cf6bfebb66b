package service

import (
	"context"
	"log/slog"

	"github.com/Arax734/bookshare-app-sub001/internal/domain"
	"github.com/Arax734/bookshare-app-sub001/internal/sse"
	"github.com/Arax734/bookshare-app-sub001/internal/store"
)

// contactRemoved is the status reported for an edge that no longer exists.
const contactRemoved = "removed"

// Counts are a user's outstanding notifications.
type Counts struct {
	PendingInvites   int `json:"pendingInvites"`
	PendingExchanges int `json:"pendingExchanges"`
}

// Notifier delivers an event to one user's live connections.
type Notifier interface {
	EmitToUser(userID string, event sse.Event)
}

// presence is implemented by notifiers that know who is listening.
type presence interface {
	UserConnected(userID string) bool
}

// NotificationService computes notification counts and pushes updates to
// both parties of every exchange or contact write.
type NotificationService struct {
	store    *store.Store
	notifier Notifier
	logger   *slog.Logger
}

// NewNotificationService creates a new notification service. A nil notifier
// disables live updates; counts are still computed on demand.
func NewNotificationService(store *store.Store, notifier Notifier, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// Counts returns pending invitations and pending exchanges addressed to the
// user.
func (s *NotificationService) Counts(ctx context.Context, userID string) (*Counts, error) {
	var c Counts
	err := s.store.View(ctx, func(tx *store.Tx) error {
		edges, err := s.store.Contacts.FindTx(tx, "contact", userID)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if e.Status == domain.ContactPending {
				c.PendingInvites++
			}
		}

		received, err := s.store.Exchanges.FindTx(tx, "contact", userID)
		if err != nil {
			return err
		}
		for _, ex := range received {
			if ex.Status == domain.ExchangePending {
				c.PendingExchanges++
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err, "failed to load notifications")
	}
	return &c, nil
}

// Snapshot returns the user's counts for a new event stream.
func (s *NotificationService) Snapshot(ctx context.Context, userID string) (any, error) {
	return s.Counts(ctx, userID)
}

// ExchangeChanged notifies both parties of an exchange.
func (s *NotificationService) ExchangeChanged(ctx context.Context, ex *domain.Exchange) {
	if s.notifier == nil {
		return
	}
	for _, uid := range []string{ex.UserID, ex.ContactID} {
		s.notifier.EmitToUser(uid, sse.NewExchangeEvent(uid, ex.ID, string(ex.Status)))
		s.pushCounts(ctx, uid)
	}
}

// ContactChanged notifies both ends of a contact edge.
func (s *NotificationService) ContactChanged(ctx context.Context, edge *domain.UserContact) {
	if s.notifier == nil {
		return
	}
	status := string(edge.Status)
	if _, err := s.store.Contacts.Get(ctx, edge.ID); store.IsNotFound(err) {
		status = contactRemoved
	}
	for _, uid := range []string{edge.UserID, edge.ContactID} {
		s.notifier.EmitToUser(uid, sse.NewContactEvent(uid, edge.Other(uid), status))
		s.pushCounts(ctx, uid)
	}
}

func (s *NotificationService) pushCounts(ctx context.Context, userID string) {
	if p, ok := s.notifier.(presence); ok && !p.UserConnected(userID) {
		return
	}
	counts, err := s.Counts(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to compute notification counts", "user_id", userID, "error", err)
		return
	}
	s.notifier.EmitToUser(userID, sse.NewNotificationsEvent(userID, counts))
}
