package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Arax734/bookshare-app-sub001/internal/domain"
	domainerrors "github.com/Arax734/bookshare-app-sub001/internal/errors"
	"github.com/Arax734/bookshare-app-sub001/internal/service"
)

const recommendationsFailed = "Failed to fetch recommendations"

func (s *Server) registerRecommendationRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getRecommendations",
		Method:      http.MethodGet,
		Path:        "/api/recommendations",
		Summary:     "Get recommendations",
		Description: "Returns unreviewed books for the user's top genres, authors, languages and decades, with review statistics",
		Tags:        []string{"Recommendations"},
	}, s.handleGetRecommendations)

	huma.Register(s.api, huma.Operation{
		OperationID: "getRecommendationCategories",
		Method:      http.MethodGet,
		Path:        "/api/recommendations/categories",
		Summary:     "Get preferred categories",
		Description: "Returns the user's top three genres, authors and languages from reviews rated 7 or higher",
		Tags:        []string{"Recommendations"},
	}, s.handleGetRecommendationCategories)

	huma.Register(s.api, huma.Operation{
		OperationID: "getRecommendationBooks",
		Method:      http.MethodGet,
		Path:        "/api/recommendations/books",
		Summary:     "Get books for a category",
		Description: "Returns unreviewed books for one genre, author or language",
		Tags:        []string{"Recommendations"},
	}, s.handleGetRecommendationBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getFilteredRecommendations",
		Method:      http.MethodGet,
		Path:        "/api/recommendations/filtered",
		Summary:     "Filtered browse",
		Description: "Returns unreviewed books matching any combination of genre, author and language",
		Tags:        []string{"Recommendations"},
	}, s.handleGetFilteredRecommendations)
}

// === DTOs ===

// RecommendationsInput names the user to recommend for.
type RecommendationsInput struct {
	UserID string `query:"userId" doc:"User to recommend for"`
}

// RecommendationsOutput wraps the full recommendation view.
type RecommendationsOutput struct {
	Body *service.Recommendations
}

// CategoriesResponse contains the user's preferred categories.
type CategoriesResponse struct {
	Categories *service.Categories `json:"categories"`
}

// CategoriesOutput wraps the preferred categories.
type CategoriesOutput struct {
	Body CategoriesResponse
}

// CategoryBooksInput selects one category.
type CategoryBooksInput struct {
	UserID   string `query:"userId" doc:"User to recommend for"`
	Type     string `query:"type" doc:"genre, author or language"`
	Category string `query:"category" doc:"Category value"`
}

// BooksResponse lists candidate books.
type BooksResponse struct {
	Books []domain.Book `json:"books"`
}

// BooksOutput wraps candidate books.
type BooksOutput struct {
	Body BooksResponse
}

// FilteredInput selects books by any combination of filters.
type FilteredInput struct {
	UserID   string `query:"userId" doc:"User to recommend for"`
	Genre    string `query:"genre" doc:"Genre filter"`
	Author   string `query:"author" doc:"Author filter, matched loosely"`
	Language string `query:"language" doc:"Language filter"`
	Limit    int    `query:"limit" doc:"Max results (default 12)"`
}

// === Handlers ===

func (s *Server) handleGetRecommendations(ctx context.Context, input *RecommendationsInput) (*RecommendationsOutput, error) {
	recs, err := s.services.Recommendations.GetRecommendations(ctx, input.UserID)
	if err != nil {
		return nil, s.recommendationError(err, input.UserID)
	}
	return &RecommendationsOutput{Body: recs}, nil
}

func (s *Server) handleGetRecommendationCategories(ctx context.Context, input *RecommendationsInput) (*CategoriesOutput, error) {
	cats, err := s.services.Recommendations.GetCategories(ctx, input.UserID)
	if err != nil {
		return nil, s.recommendationError(err, input.UserID)
	}
	return &CategoriesOutput{Body: CategoriesResponse{Categories: cats}}, nil
}

func (s *Server) handleGetRecommendationBooks(ctx context.Context, input *CategoryBooksInput) (*BooksOutput, error) {
	books, err := s.services.Recommendations.GetBooksForCategory(ctx, input.UserID, input.Type, input.Category)
	if err != nil {
		return nil, s.recommendationError(err, input.UserID)
	}
	return &BooksOutput{Body: BooksResponse{Books: books}}, nil
}

func (s *Server) handleGetFilteredRecommendations(ctx context.Context, input *FilteredInput) (*BooksOutput, error) {
	books, err := s.services.Recommendations.Filtered(ctx, input.UserID, service.FilterParams{
		Genre:    input.Genre,
		Author:   input.Author,
		Language: input.Language,
		Limit:    input.Limit,
	})
	if err != nil {
		return nil, s.recommendationError(err, input.UserID)
	}
	return &BooksOutput{Body: BooksResponse{Books: books}}, nil
}

// recommendationError passes parameter errors through and hides the rest.
func (s *Server) recommendationError(err error, userID string) error {
	if errors.Is(err, domainerrors.ErrValidation) {
		return err
	}
	s.logger.Error("recommendations failed", "user_id", userID, "error", err)
	return domainerrors.Internal(recommendationsFailed).WithCause(err)
}
