package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Arax734/bookshare-app-sub001/internal/domain"
	"github.com/Arax734/bookshare-app-sub001/internal/service"
)

func (s *Server) registerContactRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listContacts",
		Method:      http.MethodGet,
		Path:        "/api/contacts",
		Summary:     "List contacts",
		Description: "Returns accepted contacts in both directions with their profiles",
		Tags:        []string{"Contacts"},
		Security:    authenticated,
	}, s.handleListContacts)

	huma.Register(s.api, huma.Operation{
		OperationID: "listContactInvites",
		Method:      http.MethodGet,
		Path:        "/api/contacts/invites",
		Summary:     "List invitations",
		Description: "Returns pending contact invitations addressed to the user",
		Tags:        []string{"Contacts"},
		Security:    authenticated,
	}, s.handleListContactInvites)

	huma.Register(s.api, huma.Operation{
		OperationID:   "inviteContact",
		Method:        http.MethodPost,
		Path:          "/api/contacts",
		Summary:       "Invite contact",
		Description:   "Sends a contact invitation to another user",
		Tags:          []string{"Contacts"},
		DefaultStatus: http.StatusCreated,
		Security:      authenticated,
	}, s.handleInviteContact)

	huma.Register(s.api, huma.Operation{
		OperationID: "acceptContact",
		Method:      http.MethodPost,
		Path:        "/api/contacts/{id}/accept",
		Summary:     "Accept invitation",
		Description: "Accepts a pending invitation. Only the invited user may accept.",
		Tags:        []string{"Contacts"},
		Security:    authenticated,
	}, s.handleAcceptContact)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeContact",
		Method:      http.MethodDelete,
		Path:        "/api/contacts/{id}",
		Summary:     "Remove contact",
		Description: "Removes a contact or withdraws an invitation. Either party may remove.",
		Tags:        []string{"Contacts"},
		Security:    authenticated,
	}, s.handleRemoveContact)
}

// === DTOs ===

// ContactsResponse lists accepted contacts.
type ContactsResponse struct {
	Contacts []domain.Contact `json:"contacts"`
}

// ContactsOutput wraps the contact list.
type ContactsOutput struct {
	Body ContactsResponse
}

// InvitesResponse lists pending invitations.
type InvitesResponse struct {
	Invites []service.Invite `json:"invites"`
}

// InvitesOutput wraps the invitation list.
type InvitesOutput struct {
	Body InvitesResponse
}

// InviteContactInput names the user to invite.
type InviteContactInput struct {
	Body struct {
		ContactID string `json:"contactId" doc:"User to invite"`
	}
}

// ContactEdgeOutput wraps a contact edge.
type ContactEdgeOutput struct {
	Body *domain.UserContact
}

// ContactPathInput addresses a contact edge.
type ContactPathInput struct {
	ID string `path:"id" doc:"Contact edge ID"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message" doc:"Result message"`
}

// MessageOutput wraps an acknowledgement.
type MessageOutput struct {
	Body MessageResponse
}

// === Handlers ===

func (s *Server) handleListContacts(ctx context.Context, _ *struct{}) (*ContactsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	contacts, err := s.services.Contacts.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ContactsOutput{Body: ContactsResponse{Contacts: contacts}}, nil
}

func (s *Server) handleListContactInvites(ctx context.Context, _ *struct{}) (*InvitesOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	invites, err := s.services.Contacts.Invites(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &InvitesOutput{Body: InvitesResponse{Invites: invites}}, nil
}

func (s *Server) handleInviteContact(ctx context.Context, input *InviteContactInput) (*ContactEdgeOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	edge, err := s.services.Contacts.Invite(ctx, userID, input.Body.ContactID)
	if err != nil {
		return nil, err
	}
	return &ContactEdgeOutput{Body: edge}, nil
}

func (s *Server) handleAcceptContact(ctx context.Context, input *ContactPathInput) (*ContactEdgeOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	edge, err := s.services.Contacts.Accept(ctx, input.ID, userID)
	if err != nil {
		return nil, err
	}
	return &ContactEdgeOutput{Body: edge}, nil
}

func (s *Server) handleRemoveContact(ctx context.Context, input *ContactPathInput) (*MessageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Contacts.Remove(ctx, input.ID, userID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Contact removed"}}, nil
}
