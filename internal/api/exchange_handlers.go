package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Arax734/bookshare-app-sub001/internal/domain"
	"github.com/Arax734/bookshare-app-sub001/internal/service"
)

func (s *Server) registerExchangeRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "proposeExchange",
		Method:        http.MethodPost,
		Path:          "/api/exchanges",
		Summary:       "Propose exchange",
		Description:   "Proposes swapping owned books with an accepted contact",
		Tags:          []string{"Exchanges"},
		DefaultStatus: http.StatusCreated,
		Security:      authenticated,
	}, s.handleProposeExchange)

	huma.Register(s.api, huma.Operation{
		OperationID: "listExchanges",
		Method:      http.MethodGet,
		Path:        "/api/exchanges",
		Summary:     "List exchanges",
		Description: "Returns pending incoming or outgoing exchanges, or the closed exchange history",
		Tags:        []string{"Exchanges"},
		Security:    authenticated,
	}, s.handleListExchanges)

	huma.Register(s.api, huma.Operation{
		OperationID: "getExchange",
		Method:      http.MethodGet,
		Path:        "/api/exchanges/{id}",
		Summary:     "Get exchange",
		Description: "Returns one exchange with resolved books",
		Tags:        []string{"Exchanges"},
		Security:    authenticated,
	}, s.handleGetExchange)

	huma.Register(s.api, huma.Operation{
		OperationID: "acceptExchange",
		Method:      http.MethodPost,
		Path:        "/api/exchanges/{id}/accept",
		Summary:     "Accept exchange",
		Description: "Completes the exchange and transfers ownership of every book. Transfers that fail are reported, not fatal.",
		Tags:        []string{"Exchanges"},
		Security:    authenticated,
	}, s.handleAcceptExchange)

	huma.Register(s.api, huma.Operation{
		OperationID: "declineExchange",
		Method:      http.MethodPost,
		Path:        "/api/exchanges/{id}/decline",
		Summary:     "Decline exchange",
		Description: "Declines a pending exchange. Only the recipient may decline.",
		Tags:        []string{"Exchanges"},
		Security:    authenticated,
	}, s.handleDeclineExchange)

	huma.Register(s.api, huma.Operation{
		OperationID: "cancelExchange",
		Method:      http.MethodPost,
		Path:        "/api/exchanges/{id}/cancel",
		Summary:     "Cancel exchange",
		Description: "Withdraws a pending exchange. Only the proposer may cancel.",
		Tags:        []string{"Exchanges"},
		Security:    authenticated,
	}, s.handleCancelExchange)
}

// === DTOs ===

// ProposeExchangeInput contains the proposal.
type ProposeExchangeInput struct {
	Body struct {
		RecipientID  string   `json:"recipientId" doc:"Contact to exchange with"`
		UserBooks    []string `json:"userBooks,omitempty" doc:"Books offered by the proposer"`
		ContactBooks []string `json:"contactBooks,omitempty" doc:"Books requested from the recipient"`
	}
}

// ExchangeOutput wraps an exchange.
type ExchangeOutput struct {
	Body *domain.Exchange
}

// ListExchangesInput selects which exchanges to list.
type ListExchangesInput struct {
	Role string `query:"role" default:"incoming" doc:"incoming, outgoing or history"`
}

// ExchangesResponse lists exchanges.
type ExchangesResponse struct {
	Exchanges []service.ExchangeView `json:"exchanges"`
}

// ExchangesOutput wraps an exchange list.
type ExchangesOutput struct {
	Body ExchangesResponse
}

// ExchangePathInput addresses an exchange.
type ExchangePathInput struct {
	ID string `path:"id" doc:"Exchange ID"`
}

// ExchangeViewOutput wraps a resolved exchange.
type ExchangeViewOutput struct {
	Body *service.ExchangeView
}

// AcceptExchangeOutput wraps the accept outcome.
type AcceptExchangeOutput struct {
	Body *service.AcceptResult
}

// === Handlers ===

func (s *Server) handleProposeExchange(ctx context.Context, input *ProposeExchangeInput) (*ExchangeOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	ex, err := s.services.Exchanges.Propose(ctx, userID, service.ProposeRequest{
		RecipientID:  input.Body.RecipientID,
		UserBooks:    input.Body.UserBooks,
		ContactBooks: input.Body.ContactBooks,
	})
	if err != nil {
		return nil, err
	}
	return &ExchangeOutput{Body: ex}, nil
}

func (s *Server) handleListExchanges(ctx context.Context, input *ListExchangesInput) (*ExchangesOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	views, err := s.services.Exchanges.List(ctx, userID, service.ExchangeRole(input.Role))
	if err != nil {
		return nil, err
	}
	return &ExchangesOutput{Body: ExchangesResponse{Exchanges: views}}, nil
}

func (s *Server) handleGetExchange(ctx context.Context, input *ExchangePathInput) (*ExchangeViewOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	view, err := s.services.Exchanges.Get(ctx, input.ID, userID)
	if err != nil {
		return nil, err
	}
	return &ExchangeViewOutput{Body: view}, nil
}

func (s *Server) handleAcceptExchange(ctx context.Context, input *ExchangePathInput) (*AcceptExchangeOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.services.Exchanges.Accept(ctx, input.ID, userID)
	if err != nil {
		return nil, err
	}
	return &AcceptExchangeOutput{Body: result}, nil
}

func (s *Server) handleDeclineExchange(ctx context.Context, input *ExchangePathInput) (*ExchangeOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	ex, err := s.services.Exchanges.Decline(ctx, input.ID, userID)
	if err != nil {
		return nil, err
	}
	return &ExchangeOutput{Body: ex}, nil
}

func (s *Server) handleCancelExchange(ctx context.Context, input *ExchangePathInput) (*ExchangeOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	ex, err := s.services.Exchanges.Cancel(ctx, input.ID, userID)
	if err != nil {
		return nil, err
	}
	return &ExchangeOutput{Body: ex}, nil
}
