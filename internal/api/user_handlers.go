package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Arax734/bookshare-app-sub001/internal/domain"
	"github.com/Arax734/bookshare-app-sub001/internal/service"
)

func (s *Server) registerUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      http.MethodGet,
		Path:        "/api/me",
		Summary:     "Get current user",
		Description: "Returns the authenticated user's profile",
		Tags:        []string{"Users"},
		Security:    authenticated,
	}, s.handleGetCurrentUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateCurrentUser",
		Method:      http.MethodPatch,
		Path:        "/api/me",
		Summary:     "Update current user",
		Description: "Updates profile fields. A new name or photo is copied onto the user's reviews.",
		Tags:        []string{"Users"},
		Security:    authenticated,
	}, s.handleUpdateCurrentUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteCurrentUser",
		Method:      http.MethodDelete,
		Path:        "/api/me",
		Summary:     "Delete account",
		Description: "Deletes the account with its reviews, lists and contacts. Pending exchanges are closed.",
		Tags:        []string{"Users"},
		Security:    authenticated,
	}, s.handleDeleteCurrentUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "getUserProfile",
		Method:      http.MethodGet,
		Path:        "/api/users/{id}",
		Summary:     "Get user profile",
		Description: "Returns another user's public profile",
		Tags:        []string{"Users"},
		Security:    authenticated,
	}, s.handleGetUserProfile)

	huma.Register(s.api, huma.Operation{
		OperationID: "getUserReviews",
		Method:      http.MethodGet,
		Path:        "/api/users/{id}/reviews",
		Summary:     "List user reviews",
		Description: "Returns a user's reviews, newest first",
		Tags:        []string{"Reviews"},
		Security:    authenticated,
	}, s.handleGetUserReviews)
}

// === DTOs ===

// UserOutput wraps the authenticated user's document.
type UserOutput struct {
	Body *domain.User
}

// UpdateUserInput contains the fields to change.
type UpdateUserInput struct {
	Body service.UpdateUserRequest
}

// DeleteUserOutput reports what an account deletion removed.
type DeleteUserOutput struct {
	Body *service.DeleteSummary
}

// UserPathInput addresses a user.
type UserPathInput struct {
	ID string `path:"id" doc:"User ID"`
}

// ProfileOutput wraps a public profile.
type ProfileOutput struct {
	Body *domain.UserProfile
}

// === Handlers ===

func (s *Server) handleGetCurrentUser(ctx context.Context, _ *struct{}) (*UserOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.services.Users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: user}, nil
}

func (s *Server) handleUpdateCurrentUser(ctx context.Context, input *UpdateUserInput) (*UserOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.services.Users.Update(ctx, userID, input.Body)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: user}, nil
}

func (s *Server) handleDeleteCurrentUser(ctx context.Context, _ *struct{}) (*DeleteUserOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	summary, err := s.services.Users.Delete(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &DeleteUserOutput{Body: summary}, nil
}

func (s *Server) handleGetUserProfile(ctx context.Context, input *UserPathInput) (*ProfileOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	profile, err := s.services.Users.Profile(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &ProfileOutput{Body: profile}, nil
}

func (s *Server) handleGetUserReviews(ctx context.Context, input *UserPathInput) (*ReviewsOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	reviews, err := s.services.Reviews.ByUser(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &ReviewsOutput{Body: ReviewsResponse{Reviews: reviews}}, nil
}
