package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Arax734/bookshare-app-sub001/internal/catalog"
	"github.com/Arax734/bookshare-app-sub001/internal/domain"
	domainerrors "github.com/Arax734/bookshare-app-sub001/internal/errors"
	"github.com/Arax734/bookshare-app-sub001/internal/normalize"
	"github.com/Arax734/bookshare-app-sub001/internal/service"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchBooks",
		Method:      http.MethodGet,
		Path:        "/api/books",
		Summary:     "Search books",
		Description: "Searches the national library catalog by title, author, ISBN or free text",
		Tags:        []string{"Books"},
	}, s.handleSearchBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        "/api/books/{id}",
		Summary:     "Get book",
		Description: "Returns the catalog record as the catalog sent it. withRating=true attaches the rating summary",
		Tags:        []string{"Books"},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBookRatings",
		Method:      http.MethodGet,
		Path:        "/api/books/{id}/ratings",
		Summary:     "Get book ratings",
		Description: "Returns the average rating and review count of a book",
		Tags:        []string{"Reviews"},
	}, s.handleGetBookRatings)

	huma.Register(s.api, huma.Operation{
		OperationID: "listBookReviews",
		Method:      http.MethodGet,
		Path:        "/api/books/{id}/reviews",
		Summary:     "List reviews",
		Description: "Returns the reviews of a book, newest first",
		Tags:        []string{"Reviews"},
	}, s.handleListBookReviews)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createBookReview",
		Method:        http.MethodPost,
		Path:          "/api/books/{id}/reviews",
		Summary:       "Review a book",
		Description:   "Rates a book from 1 to 10 with an optional comment. One review per user and book.",
		Tags:          []string{"Reviews"},
		DefaultStatus: http.StatusCreated,
		Security:      authenticated,
	}, s.handleCreateBookReview)
}

// === DTOs ===

// SearchBooksInput contains parameters for searching the catalog.
type SearchBooksInput struct {
	Search     string `query:"search" doc:"Search text"`
	SearchType string `query:"searchType" doc:"title, author or isbn; anything else searches all fields"`
	Limit      int    `query:"limit" doc:"Max results (default 10)"`
	SinceID    string `query:"sinceId" doc:"Pagination cursor from a previous nextPage"`
}

// SearchBooksOutput wraps one page of results.
type SearchBooksOutput struct {
	Body domain.SearchResult
}

// BookPathInput addresses a catalog record.
type BookPathInput struct {
	ID string `path:"id" doc:"Catalog record id"`
}

// GetBookInput addresses a catalog record.
type GetBookInput struct {
	ID         string `path:"id" doc:"Catalog record id"`
	WithRating bool   `query:"withRating" doc:"Attach the rating summary"`
}

// BookOutput wraps a catalog record.
type BookOutput struct {
	Body domain.Book
}

// RatingsOutput wraps a rating summary.
type RatingsOutput struct {
	Body domain.RatingSummary
}

// ReviewsResponse lists reviews.
type ReviewsResponse struct {
	Reviews []*domain.Review `json:"reviews" doc:"Reviews, newest first"`
}

// ReviewsOutput wraps a review list.
type ReviewsOutput struct {
	Body ReviewsResponse
}

// CreateReviewInput contains the new review.
type CreateReviewInput struct {
	ID   string `path:"id" doc:"Catalog record id"`
	Body struct {
		Rating  int    `json:"rating" doc:"Rating from 1 to 10"`
		Comment string `json:"comment,omitempty" doc:"Optional comment"`
	}
}

// ReviewOutput wraps a single review.
type ReviewOutput struct {
	Body *domain.Review
}

// === Handlers ===

func (s *Server) handleSearchBooks(ctx context.Context, input *SearchBooksInput) (*SearchBooksOutput, error) {
	result, err := s.services.Catalog.Search(ctx, catalog.SearchParams{
		Search:     input.Search,
		SearchType: input.SearchType,
		SinceID:    input.SinceID,
		Limit:      input.Limit,
	})
	if err != nil {
		return nil, s.catalogError(err, "Failed to fetch books", "search", input.Search)
	}
	if result.Bibs == nil {
		result.Bibs = []domain.Book{}
	}
	return &SearchBooksOutput{Body: *result}, nil
}

func (s *Server) handleGetBook(ctx context.Context, input *GetBookInput) (*BookOutput, error) {
	book, err := s.services.Catalog.GetBook(ctx, input.ID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, domainerrors.NotFound("Book not found")
		}
		return nil, s.catalogError(err, "Failed to fetch book details", "book_id", input.ID)
	}
	if !input.WithRating {
		return &BookOutput{Body: *book}, nil
	}

	summary, err := s.services.Ratings.GetBookRatings(ctx, input.ID)
	if err != nil {
		s.logger.Warn("failed to attach rating", "book_id", input.ID, "error", err)
	} else {
		book.Rating = &summary
	}
	return &BookOutput{Body: *book}, nil
}

// catalogError forwards upstream statuses verbatim and hides everything
// else behind a fixed 500 message.
func (s *Server) catalogError(err error, msg string, attrs ...any) error {
	var upstream *catalog.UpstreamError
	if errors.As(err, &upstream) {
		return domainerrors.Upstream(upstream.Status)
	}
	s.logger.Error(msg, append(attrs, "error", err)...)
	return domainerrors.UpstreamUnavailable(msg).WithCause(err)
}

func (s *Server) handleGetBookRatings(ctx context.Context, input *BookPathInput) (*RatingsOutput, error) {
	summary, err := s.services.Ratings.GetBookRatings(ctx, input.ID)
	if err != nil {
		s.logger.Error("failed to load ratings", "book_id", input.ID, "error", err)
		return nil, domainerrors.Internal("Failed to fetch ratings").WithCause(err)
	}
	return &RatingsOutput{Body: summary}, nil
}

func (s *Server) handleListBookReviews(ctx context.Context, input *BookPathInput) (*ReviewsOutput, error) {
	reviews, err := s.services.Reviews.ForBook(ctx, normalize.BookID(input.ID))
	if err != nil {
		return nil, err
	}
	return &ReviewsOutput{Body: ReviewsResponse{Reviews: reviews}}, nil
}

func (s *Server) handleCreateBookReview(ctx context.Context, input *CreateReviewInput) (*ReviewOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	review, err := s.services.Reviews.Create(ctx, userID, normalize.BookID(input.ID), service.ReviewRequest{
		Rating:  input.Body.Rating,
		Comment: input.Body.Comment,
	})
	if err != nil {
		return nil, err
	}
	return &ReviewOutput{Body: review}, nil
}
