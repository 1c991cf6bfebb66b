package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Arax734/bookshare-app-sub001/internal/domain"
	"github.com/Arax734/bookshare-app-sub001/internal/normalize"
)

func (s *Server) registerLibraryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "toggleLibraryBook",
		Method:      http.MethodPut,
		Path:        "/api/library/{list}/{bookId}",
		Summary:     "Toggle library entry",
		Description: "Adds the book to the list, or removes it when already present",
		Tags:        []string{"Library"},
		Security:    authenticated,
	}, s.handleToggleLibraryBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "setExchangeStatus",
		Method:      http.MethodPut,
		Path:        "/api/library/owned/{bookId}/status",
		Summary:     "Set exchange availability",
		Description: "Marks an owned book as available or unavailable for exchange",
		Tags:        []string{"Library"},
		Security:    authenticated,
	}, s.handleSetExchangeStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "listUserLibrary",
		Method:      http.MethodGet,
		Path:        "/api/users/{id}/library/{list}",
		Summary:     "List library",
		Description: "Returns a user's owned, desired or favorite books, newest first",
		Tags:        []string{"Library"},
		Security:    authenticated,
	}, s.handleListUserLibrary)
}

// === DTOs ===

// ToggleLibraryInput addresses one list entry.
type ToggleLibraryInput struct {
	List   string `path:"list" enum:"owned,desired,favorites" doc:"Library list"`
	BookID string `path:"bookId" doc:"Catalog record id"`
}

// ToggleLibraryResponse reports whether the book is now on the list.
type ToggleLibraryResponse struct {
	Active bool `json:"active" doc:"True when the book was added"`
}

// ToggleLibraryOutput wraps the toggle result.
type ToggleLibraryOutput struct {
	Body ToggleLibraryResponse
}

// SetExchangeStatusInput changes an owned book's availability.
type SetExchangeStatusInput struct {
	BookID string `path:"bookId" doc:"Catalog record id"`
	Body   struct {
		ForExchange bool `json:"forExchange" doc:"Whether the book is offered for exchange"`
	}
}

// OwnershipOutput wraps an ownership record.
type OwnershipOutput struct {
	Body *domain.BookOwnership
}

// ListLibraryInput addresses a user's list.
type ListLibraryInput struct {
	ID   string `path:"id" doc:"User ID"`
	List string `path:"list" enum:"owned,desired,favorites" doc:"Library list"`
}

// LibraryResponse lists entries with resolved books.
type LibraryResponse struct {
	Entries []domain.LibraryEntry `json:"entries"`
}

// LibraryOutput wraps a library listing.
type LibraryOutput struct {
	Body LibraryResponse
}

// === Handlers ===

func (s *Server) handleToggleLibraryBook(ctx context.Context, input *ToggleLibraryInput) (*ToggleLibraryOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	active, err := s.services.Library.Toggle(ctx, userID, domain.LibraryList(input.List), normalize.BookID(input.BookID))
	if err != nil {
		return nil, err
	}
	return &ToggleLibraryOutput{Body: ToggleLibraryResponse{Active: active}}, nil
}

func (s *Server) handleSetExchangeStatus(ctx context.Context, input *SetExchangeStatusInput) (*OwnershipOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	own, err := s.services.Library.SetForExchange(ctx, userID, normalize.BookID(input.BookID), input.Body.ForExchange)
	if err != nil {
		return nil, err
	}
	return &OwnershipOutput{Body: own}, nil
}

func (s *Server) handleListUserLibrary(ctx context.Context, input *ListLibraryInput) (*LibraryOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	entries, err := s.services.Library.List(ctx, input.ID, domain.LibraryList(input.List))
	if err != nil {
		return nil, err
	}
	return &LibraryOutput{Body: LibraryResponse{Entries: entries}}, nil
}
