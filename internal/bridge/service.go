// Package bridge composes identity binding, account registration and
// webhook dispatch behind one small request surface.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/forumgram/forumgram/internal/bindings"
	"github.com/forumgram/forumgram/internal/dispatch"
)

// ErrAccountCreationFailed is returned when the forum rejects the
// registration; no binding is written in that case.
var ErrAccountCreationFailed = errors.New("account creation failed")

// IdentityStore writes and reads chat-identity bindings.
type IdentityStore interface {
	Bind(ctx context.Context, externalID, localID string) (bindings.Binding, error)
}

// AccountCreator registers forum accounts.
type AccountCreator interface {
	CreateAccount(ctx context.Context, username, email, password string) (string, error)
}

// Dispatcher handles one raw inbound webhook body.
type Dispatcher interface {
	Handle(ctx context.Context, rawBody []byte) (dispatch.Outcome, error)
}

// BindRequest links an existing chat identity to an existing forum user.
type BindRequest struct {
	ExternalID string `json:"telegram_user_id"`
	LocalID    string `json:"forum_user_id"`
}

// RegisterRequest creates a forum account and binds it in one step.
type RegisterRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	ExternalID string `json:"telegram_user_id"`
}

type Service struct {
	identities IdentityStore
	accounts   AccountCreator
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewService(log *slog.Logger, identities IdentityStore, accounts AccountCreator, dispatcher Dispatcher) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		identities: identities,
		accounts:   accounts,
		dispatcher: dispatcher,
		logger:     log.With(slog.String("service", "bridge")),
	}
}

// Bind links the two identities, replacing any binding either side had.
func (s *Service) Bind(ctx context.Context, req BindRequest) (bindings.Binding, error) {
	return s.identities.Bind(ctx, req.ExternalID, req.LocalID)
}

// RegisterAndBind creates the forum account first and only binds on
// success, so a rejected registration leaves the store untouched.
func (s *Service) RegisterAndBind(ctx context.Context, req RegisterRequest) (bindings.Binding, error) {
	if req.Username == "" || req.Email == "" || req.Password == "" || req.ExternalID == "" {
		return bindings.Binding{}, fmt.Errorf("%w: username, email, password and telegram_user_id are required", bindings.ErrInvalidArgument)
	}

	localID, err := s.accounts.CreateAccount(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		s.logger.Warn("registration rejected",
			slog.String("username", req.Username),
			slog.Any("error", err))
		return bindings.Binding{}, fmt.Errorf("%w: %v", ErrAccountCreationFailed, err)
	}

	binding, err := s.identities.Bind(ctx, req.ExternalID, localID)
	if err != nil {
		return bindings.Binding{}, fmt.Errorf("bind new account: %w", err)
	}
	s.logger.Info("account registered and bound",
		slog.String("username", req.Username),
		slog.String("local_id", localID))
	return binding, nil
}

// HandleWebhook delegates the raw platform payload to the dispatcher.
func (s *Service) HandleWebhook(ctx context.Context, rawBody []byte) (dispatch.Outcome, error) {
	return s.dispatcher.Handle(ctx, rawBody)
}
