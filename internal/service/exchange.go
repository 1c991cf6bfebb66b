package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/Arax734/bookshare-app-sub001/internal/domain"
	domainerrors "github.com/Arax734/bookshare-app-sub001/internal/errors"
	"github.com/Arax734/bookshare-app-sub001/internal/id"
	"github.com/Arax734/bookshare-app-sub001/internal/metrics"
	"github.com/Arax734/bookshare-app-sub001/internal/normalize"
	"github.com/Arax734/bookshare-app-sub001/internal/store"
	"github.com/Arax734/bookshare-app-sub001/internal/validation"
)

// ExchangeRole selects which of a user's exchanges to list.
type ExchangeRole string

// Exchange list roles.
const (
	RoleIncoming ExchangeRole = "incoming"
	RoleOutgoing ExchangeRole = "outgoing"
	RoleHistory  ExchangeRole = "history"
)

// Accept outcomes.
const (
	OutcomeAccepted                   = "accepted"
	OutcomeAcceptedWithTransferErrors = "accepted_with_transfer_errors"
)

// ProposeRequest is a new exchange proposal.
type ProposeRequest struct {
	RecipientID  string   `json:"recipientId" validate:"required"`
	UserBooks    []string `json:"userBooks" validate:"dive,bookid"`
	ContactBooks []string `json:"contactBooks" validate:"dive,bookid"`
}

// TransferFailure records a book whose ownership could not be moved when an
// exchange was accepted.
type TransferFailure struct {
	BookID string `json:"bookId"`
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// AcceptResult is the outcome of accepting an exchange. The exchange is
// completed even when some transfers failed.
type AcceptResult struct {
	Exchange *domain.Exchange  `json:"exchange"`
	Outcome  string            `json:"outcome"`
	Failures []TransferFailure `json:"failures"`
}

// ExchangeView is an exchange with every book resolved and the other
// party's profile, as returned to clients.
type ExchangeView struct {
	CreatedAt    time.Time             `json:"createdAt"`
	StatusDate   *time.Time            `json:"statusDate,omitempty"`
	Counterparty domain.UserProfile    `json:"counterparty"`
	ID           string                `json:"id"`
	UserID       string                `json:"userId"`
	ContactID    string                `json:"contactId"`
	Status       domain.ExchangeStatus `json:"status"`
	UserBooks    []domain.Book         `json:"userBooks"`
	ContactBooks []domain.Book         `json:"contactBooks"`
}

// ExchangeService runs the exchange proposal workflow.
type ExchangeService struct {
	store     *store.Store
	catalog   Catalog
	publisher Publisher
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewExchangeService creates a new exchange service. A nil publisher
// disables notifications.
func NewExchangeService(store *store.Store, catalog Catalog, publisher Publisher, logger *slog.Logger) *ExchangeService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &ExchangeService{
		store:     store,
		catalog:   catalog,
		publisher: publisher,
		validator: validation.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// Propose creates a pending exchange from proposerID to the recipient.
func (s *ExchangeService) Propose(ctx context.Context, proposerID string, req ProposeRequest) (*domain.Exchange, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.RecipientID == proposerID {
		return nil, domainerrors.Validation("you cannot propose an exchange to yourself")
	}

	userBooks := normalize.BookIDs(req.UserBooks)
	contactBooks := normalize.BookIDs(req.ContactBooks)
	if len(userBooks)+len(contactBooks) == 0 {
		return nil, domainerrors.Validation("an exchange needs at least one book")
	}

	// Resolve outside the transaction; catalog calls are slow.
	resolved := resolveBooks(ctx, s.catalog, append(slices.Clone(userBooks), contactBooks...), s.logger)

	exchangeID, err := id.Generate(id.PrefixExchange)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to create exchange")
	}
	ex := &domain.Exchange{
		ID:           exchangeID,
		UserID:       proposerID,
		ContactID:    req.RecipientID,
		Status:       domain.ExchangePending,
		UserBooks:    bookRefs(userBooks, resolved),
		ContactBooks: bookRefs(contactBooks, resolved),
		CreatedAt:    s.now(),
	}

	err = s.store.Update(ctx, func(tx *store.Tx) error {
		edge, err := s.store.ContactBetweenTx(tx, proposerID, req.RecipientID)
		if err != nil && !store.IsNotFound(err) {
			return err
		}
		if edge == nil || edge.Status != domain.ContactAccepted {
			return domainerrors.Forbidden("you can only propose exchanges to your contacts")
		}

		if err := s.requireOwned(tx, proposerID, userBooks, "you do not own book %s"); err != nil {
			return err
		}
		if err := s.requireOwned(tx, req.RecipientID, contactBooks, "your contact does not own book %s"); err != nil {
			return err
		}

		proposed, err := s.store.Exchanges.FindTx(tx, "user", proposerID)
		if err != nil {
			return err
		}
		for _, other := range proposed {
			if other.Status == domain.ExchangePending && other.ContactID == req.RecipientID &&
				sameBooks(other.UserBookIDs(), userBooks) && sameBooks(other.ContactBookIDs(), contactBooks) {
				return domainerrors.Conflict("an identical exchange is already pending")
			}
		}

		return s.store.Exchanges.InsertTx(tx, ex)
	})
	if err != nil {
		return nil, storeError(err, "failed to create exchange")
	}

	metrics.ExchangeTransitions.WithLabelValues(string(domain.ExchangePending)).Inc()
	s.logger.Info("exchange proposed",
		"exchange_id", ex.ID,
		"user_id", proposerID,
		"contact_id", req.RecipientID,
		"user_books", len(userBooks),
		"contact_books", len(contactBooks),
	)
	s.publisher.ExchangeChanged(ctx, ex)
	return ex, nil
}

func (s *ExchangeService) requireOwned(tx *store.Tx, userID string, bookIDs []string, format string) error {
	for _, bookID := range bookIDs {
		if _, err := s.store.OwnershipTx(tx, userID, bookID); err != nil {
			if store.IsNotFound(err) {
				return domainerrors.Validationf(format, bookID)
			}
			return err
		}
	}
	return nil
}

// Accept completes a pending exchange and moves ownership of every listed
// book to the other party, all in one transaction. A book whose ownership
// record is missing is reported in the result and does not abort the rest.
func (s *ExchangeService) Accept(ctx context.Context, exchangeID, actorID string) (*AcceptResult, error) {
	var result *AcceptResult

	err := s.store.Update(ctx, func(tx *store.Tx) error {
		ex, err := s.exchangeTx(tx, exchangeID, actorID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := ex.Accept(actorID, now); err != nil {
			return err
		}

		var failures []TransferFailure
		for _, bookID := range ex.UserBookIDs() {
			f, err := s.transfer(tx, bookID, ex.UserID, ex.ContactID, now)
			if err != nil {
				return err
			}
			if f != nil {
				failures = append(failures, *f)
			}
		}
		for _, bookID := range ex.ContactBookIDs() {
			f, err := s.transfer(tx, bookID, ex.ContactID, ex.UserID, now)
			if err != nil {
				return err
			}
			if f != nil {
				failures = append(failures, *f)
			}
		}

		if err := s.store.Exchanges.ReplaceTx(tx, ex); err != nil {
			return err
		}

		result = &AcceptResult{Exchange: ex, Outcome: OutcomeAccepted, Failures: failures}
		if len(failures) > 0 {
			result.Outcome = OutcomeAcceptedWithTransferErrors
		} else {
			result.Failures = []TransferFailure{}
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err, "failed to accept exchange")
	}

	for _, f := range result.Failures {
		s.logger.Warn("ownership transfer failed",
			"exchange_id", exchangeID,
			"book_id", f.BookID,
			"from", f.From,
			"to", f.To,
			"reason", f.Reason,
		)
		metrics.OwnershipTransferFailures.Inc()
	}
	metrics.ExchangeTransitions.WithLabelValues(string(domain.ExchangeCompleted)).Inc()
	s.logger.Info("exchange accepted", "exchange_id", exchangeID, "outcome", result.Outcome)
	s.publisher.ExchangeChanged(ctx, result.Exchange)
	return result, nil
}

// transfer moves one ownership record. A missing record is a failure, not an
// error. If the receiver already owns a copy the giver's record is removed.
func (s *ExchangeService) transfer(tx *store.Tx, bookID, from, to string, at time.Time) (*TransferFailure, error) {
	own, err := s.store.OwnershipTx(tx, from, bookID)
	if err != nil {
		if store.IsNotFound(err) {
			return &TransferFailure{BookID: bookID, From: from, To: to, Reason: "ownership record not found"}, nil
		}
		return nil, err
	}

	_, err = s.store.OwnershipTx(tx, to, bookID)
	switch {
	case err == nil:
		return nil, s.store.Ownership.DeleteTx(tx, own.ID)
	case !store.IsNotFound(err):
		return nil, err
	}

	own.TransferTo(to, at)
	return nil, s.store.Ownership.ReplaceTx(tx, own)
}

// Decline rejects a pending exchange. Only the recipient may decline.
func (s *ExchangeService) Decline(ctx context.Context, exchangeID, actorID string) (*domain.Exchange, error) {
	return s.transition(ctx, exchangeID, actorID, (*domain.Exchange).Decline, "failed to decline exchange")
}

// Cancel withdraws a pending exchange. Only the proposer may cancel.
func (s *ExchangeService) Cancel(ctx context.Context, exchangeID, actorID string) (*domain.Exchange, error) {
	return s.transition(ctx, exchangeID, actorID, (*domain.Exchange).Cancel, "failed to cancel exchange")
}

func (s *ExchangeService) transition(
	ctx context.Context,
	exchangeID, actorID string,
	apply func(*domain.Exchange, string, time.Time) error,
	failMsg string,
) (*domain.Exchange, error) {
	var ex *domain.Exchange
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		ex, err = s.exchangeTx(tx, exchangeID, actorID)
		if err != nil {
			return err
		}
		if err := apply(ex, actorID, s.now()); err != nil {
			return err
		}
		return s.store.Exchanges.ReplaceTx(tx, ex)
	})
	if err != nil {
		return nil, storeError(err, failMsg)
	}

	metrics.ExchangeTransitions.WithLabelValues(string(ex.Status)).Inc()
	s.logger.Info("exchange updated", "exchange_id", ex.ID, "status", ex.Status, "actor", actorID)
	s.publisher.ExchangeChanged(ctx, ex)
	return ex, nil
}

// exchangeTx loads an exchange the actor is a party to. Exchanges of other
// users are reported as missing.
func (s *ExchangeService) exchangeTx(tx *store.Tx, exchangeID, actorID string) (*domain.Exchange, error) {
	ex, err := s.store.Exchanges.GetTx(tx, exchangeID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, domainerrors.NotFound("exchange not found")
		}
		return nil, err
	}
	if !ex.Involves(actorID) {
		return nil, domainerrors.NotFound("exchange not found")
	}
	return ex, nil
}

// Get returns one exchange the user is a party to.
func (s *ExchangeService) Get(ctx context.Context, exchangeID, userID string) (*ExchangeView, error) {
	ex, err := s.store.Exchanges.Get(ctx, exchangeID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, domainerrors.NotFound("exchange not found")
		}
		return nil, storeError(err, "failed to load exchange")
	}
	if !ex.Involves(userID) {
		return nil, domainerrors.NotFound("exchange not found")
	}
	views := s.views(ctx, userID, []*domain.Exchange{ex})
	return &views[0], nil
}

// List returns the user's exchanges for a role: incoming and outgoing are
// pending proposals, history is every finished exchange newest first.
func (s *ExchangeService) List(ctx context.Context, userID string, role ExchangeRole) ([]ExchangeView, error) {
	proposed, received, err := s.store.ExchangesOf(ctx, userID)
	if err != nil {
		return nil, storeError(err, "failed to list exchanges")
	}

	var selected []*domain.Exchange
	switch role {
	case RoleIncoming:
		selected = filterExchanges(received, func(e *domain.Exchange) bool { return e.Status == domain.ExchangePending })
	case RoleOutgoing:
		selected = filterExchanges(proposed, func(e *domain.Exchange) bool { return e.Status == domain.ExchangePending })
	case RoleHistory:
		selected = filterExchanges(append(proposed, received...), func(e *domain.Exchange) bool { return e.Status.IsTerminal() })
	default:
		return nil, domainerrors.Validationf("unknown exchange role %q", role)
	}

	if role == RoleHistory {
		slices.SortStableFunc(selected, func(a, b *domain.Exchange) int {
			return b.SortTime().Compare(a.SortTime())
		})
	} else {
		slices.SortStableFunc(selected, func(a, b *domain.Exchange) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
	}

	return s.views(ctx, userID, selected), nil
}

// views resolves books and counterparties for a set of exchanges.
func (s *ExchangeService) views(ctx context.Context, userID string, exchanges []*domain.Exchange) []ExchangeView {
	var pending []string
	others := make(map[string]struct{})
	for _, ex := range exchanges {
		for _, ref := range append(slices.Clone(ex.UserBooks), ex.ContactBooks...) {
			if ref.Kind() == domain.RefUnresolved {
				pending = append(pending, ref.ID())
			}
		}
		if ex.UserID == userID {
			others[ex.ContactID] = struct{}{}
		} else {
			others[ex.UserID] = struct{}{}
		}
	}
	resolved := resolveBooks(ctx, s.catalog, normalize.BookIDs(pending), s.logger)
	profiles := s.profiles(ctx, others)

	views := make([]ExchangeView, 0, len(exchanges))
	for _, ex := range exchanges {
		other := ex.UserID
		if other == userID {
			other = ex.ContactID
		}
		views = append(views, ExchangeView{
			ID:           ex.ID,
			UserID:       ex.UserID,
			ContactID:    ex.ContactID,
			Status:       ex.Status,
			CreatedAt:    ex.CreatedAt,
			StatusDate:   ex.StatusDate,
			Counterparty: profiles[other],
			UserBooks:    refBooks(ex.UserBooks, resolved),
			ContactBooks: refBooks(ex.ContactBooks, resolved),
		})
	}
	return views
}

func (s *ExchangeService) profiles(ctx context.Context, uids map[string]struct{}) map[string]domain.UserProfile {
	out := make(map[string]domain.UserProfile, len(uids))
	err := s.store.View(ctx, func(tx *store.Tx) error {
		for uid := range uids {
			u, err := s.store.Users.GetTx(tx, uid)
			if err != nil {
				if !errors.Is(err, store.ErrNotFound) {
					s.logger.Warn("failed to load counterparty", "user_id", uid, "error", err)
				}
				continue
			}
			out[uid] = u.Public()
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("failed to load counterparties", "users", len(uids), "error", err)
	}

	// Deleted or unreadable users show as a bare profile.
	for uid := range uids {
		if _, ok := out[uid]; !ok {
			out[uid] = (&domain.User{UID: uid}).Public()
		}
	}
	return out
}

func bookRefs(ids []string, resolved map[string]domain.Book) []domain.BookRef {
	refs := make([]domain.BookRef, len(ids))
	for i, bookID := range ids {
		if b, ok := resolved[bookID]; ok {
			b.ID = domain.FlexString(bookID)
			refs[i] = domain.Resolved(b)
		} else {
			refs[i] = domain.Unresolved(bookID)
		}
	}
	return refs
}

func refBooks(refs []domain.BookRef, resolved map[string]domain.Book) []domain.Book {
	books := make([]domain.Book, len(refs))
	for i, ref := range refs {
		if b, ok := ref.Book(); ok {
			books[i] = b
			continue
		}
		books[i] = bookOrPlaceholder(resolved, ref.ID())
	}
	return books
}

func filterExchanges(exchanges []*domain.Exchange, keep func(*domain.Exchange) bool) []*domain.Exchange {
	out := make([]*domain.Exchange, 0, len(exchanges))
	for _, ex := range exchanges {
		if keep(ex) {
			out = append(out, ex)
		}
	}
	return out
}

// sameBooks compares two padded id sets regardless of order.
func sameBooks(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}
