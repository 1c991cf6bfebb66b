package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/Arax734/bookshare-app-sub001/internal/domain"
	"github.com/Arax734/bookshare-app-sub001/internal/normalize"
	"github.com/Arax734/bookshare-app-sub001/internal/store"
)

// RatingService aggregates stored reviews into per-book rating summaries.
type RatingService struct {
	store  *store.Store
	logger *slog.Logger
}

// NewRatingService creates a new rating service.
func NewRatingService(store *store.Store, logger *slog.Logger) *RatingService {
	return &RatingService{
		store:  store,
		logger: logger,
	}
}

// GetBookRatings returns the average (rounded to one decimal) and count of
// a book's reviews. With no reviews Average is nil.
func (s *RatingService) GetBookRatings(ctx context.Context, bookID string) (domain.RatingSummary, error) {
	reviews, err := s.store.ReviewsForBook(ctx, normalize.BookID(bookID))
	if err != nil {
		return domain.RatingSummary{}, fmt.Errorf("load reviews for %s: %w", bookID, err)
	}

	ratings := make([]int, len(reviews))
	for i, r := range reviews {
		ratings[i] = r.Rating
	}
	return Summarize(ratings), nil
}

// AttachRatings sets Rating on each book concurrently. A book whose lookup
// fails is left without a rating.
func (s *RatingService) AttachRatings(ctx context.Context, books []domain.Book) {
	var g errgroup.Group
	g.SetLimit(fanoutLimit)
	for i := range books {
		g.Go(func() error {
			summary, err := s.GetBookRatings(ctx, string(books[i].ID))
			if err != nil {
				s.logger.Debug("rating lookup failed", "book_id", books[i].ID, "error", err)
				return nil
			}
			books[i].Rating = &summary
			return nil
		})
	}
	_ = g.Wait()
}

// Summarize computes the rating summary of a set of ratings.
func Summarize(ratings []int) domain.RatingSummary {
	if len(ratings) == 0 {
		return domain.RatingSummary{}
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	avg := round1(float64(sum) / float64(len(ratings)))
	return domain.RatingSummary{Average: &avg, Total: len(ratings)}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
