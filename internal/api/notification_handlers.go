package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Arax734/bookshare-app-sub001/internal/service"
)

func (s *Server) registerNotificationRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getNotifications",
		Method:      http.MethodGet,
		Path:        "/api/notifications",
		Summary:     "Get notification counts",
		Description: "Returns pending contact invitations and pending incoming exchanges. Live updates are pushed on /api/events.",
		Tags:        []string{"Notifications"},
		Security:    authenticated,
	}, s.handleGetNotifications)
}

// NotificationsOutput wraps the notification counts.
type NotificationsOutput struct {
	Body *service.Counts
}

func (s *Server) handleGetNotifications(ctx context.Context, _ *struct{}) (*NotificationsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	counts, err := s.services.Notifications.Counts(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &NotificationsOutput{Body: counts}, nil
}
