package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Arax734/bookshare-app-sub001/internal/domain"
	domainerrors "github.com/Arax734/bookshare-app-sub001/internal/errors"
	"github.com/Arax734/bookshare-app-sub001/internal/id"
	"github.com/Arax734/bookshare-app-sub001/internal/normalize"
	"github.com/Arax734/bookshare-app-sub001/internal/store"
	"github.com/Arax734/bookshare-app-sub001/internal/validation"
)

// ReviewRequest is a new review of a book.
type ReviewRequest struct {
	Comment string `json:"comment" validate:"max=2000"`
	Rating  int    `json:"rating" validate:"gte=1,lte=10"`
}

// ReviewService creates and lists book reviews.
type ReviewService struct {
	store     *store.Store
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewReviewService creates a new review service.
func NewReviewService(store *store.Store, logger *slog.Logger) *ReviewService {
	return &ReviewService{
		store:     store,
		validator: validation.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// Create stores the user's review of a book. A user reviews a book once.
func (s *ReviewService) Create(ctx context.Context, userID, bookID string, req ReviewRequest) (*domain.Review, error) {
	if err := s.validator.Var("bookId", bookID, "bookid"); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	reviewID, err := id.Generate(id.PrefixReview)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to create review")
	}
	review := &domain.Review{
		ID:        reviewID,
		UserID:    userID,
		BookID:    normalize.BookID(bookID),
		Rating:    req.Rating,
		Comment:   strings.TrimSpace(req.Comment),
		CreatedAt: s.now(),
	}

	err = s.store.Update(ctx, func(tx *store.Tx) error {
		if u, err := s.store.Users.GetTx(tx, userID); err == nil {
			review.UserDisplayName = u.Name()
			review.UserPhotoURL = u.PhotoURL
		} else if !store.IsNotFound(err) {
			return err
		}
		return s.store.Reviews.InsertTx(tx, review)
	})
	if err != nil {
		if store.IsAlreadyExists(err) {
			return nil, domainerrors.Conflict("you have already reviewed this book")
		}
		return nil, storeError(err, "failed to create review")
	}

	s.logger.Info("review created", "review_id", review.ID, "user_id", userID, "book_id", review.BookID, "rating", review.Rating)
	return review, nil
}

// ForBook returns the reviews of a book, newest first.
func (s *ReviewService) ForBook(ctx context.Context, bookID string) ([]*domain.Review, error) {
	reviews, err := s.store.ReviewsForBook(ctx, normalize.BookID(bookID))
	if err != nil {
		return nil, storeError(err, "failed to load reviews")
	}
	if reviews == nil {
		reviews = []*domain.Review{}
	}
	return reviews, nil
}

// ByUser returns a user's reviews, newest first.
func (s *ReviewService) ByUser(ctx context.Context, userID string) ([]*domain.Review, error) {
	reviews, err := s.store.ReviewsByUser(ctx, userID)
	if err != nil {
		return nil, storeError(err, "failed to load reviews")
	}
	if reviews == nil {
		reviews = []*domain.Review{}
	}
	return reviews, nil
}
