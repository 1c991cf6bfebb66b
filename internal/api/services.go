package api

import (
	"context"

	"github.com/Arax734/bookshare-app-sub001/internal/catalog"
	"github.com/Arax734/bookshare-app-sub001/internal/domain"
	"github.com/Arax734/bookshare-app-sub001/internal/service"
)

// Catalog is the part of the catalog gateway the HTTP layer calls directly.
type Catalog interface {
	GetBook(ctx context.Context, id string) (*domain.Book, error)
	Search(ctx context.Context, p catalog.SearchParams) (*domain.SearchResult, error)
}

// Services groups all business logic services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Catalog         Catalog
	Ratings         *service.RatingService
	Recommendations *service.RecommendationService
	Exchanges       *service.ExchangeService
	Library         *service.LibraryService
	Contacts        *service.ContactService
	Reviews         *service.ReviewService
	Users           *service.UserService
	Notifications   *service.NotificationService
}
