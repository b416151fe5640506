package query

import (
	"context"
	"errors"
	"time"

	"github.com/ahmedsenousy01/mini-instapay/shared/cqrs"
	"github.com/ahmedsenousy01/mini-instapay/shared/errs"
	"github.com/ahmedsenousy01/mini-instapay/shared/middleware"
	"github.com/ahmedsenousy01/mini-instapay/shared/models"
	"github.com/ahmedsenousy01/mini-instapay/shared/utils"
)

// CredentialReader looks a user up by email, password hash included.
type CredentialReader interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// AuthQueryService handles login and token refresh. Neither mutates state,
// so there is no command side for auth.
type AuthQueryService struct {
	credentials CredentialReader
	tokenTTL    time.Duration
}

func NewAuthQueryService(credentials CredentialReader, tokenTTL time.Duration) *AuthQueryService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthQueryService{credentials: credentials, tokenTTL: tokenTTL}
}

// Login returns a signed token. Unknown emails and wrong passwords fail the
// same way.
func (s *AuthQueryService) Login(ctx context.Context, cmd cqrs.LoginCommand) (string, error) {
	user, err := s.credentials.GetByEmail(ctx, cmd.Email)
	if errors.Is(err, errs.ErrUserNotFound) {
		return "", errs.ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if !utils.CheckPassword(cmd.Password, user.PasswordHash) {
		return "", errs.ErrInvalidCredentials
	}
	return middleware.IssueToken(user.ID, user.Email, s.tokenTTL)
}

// RefreshToken exchanges a still-valid token for a fresh one.
func (s *AuthQueryService) RefreshToken(_ context.Context, cmd cqrs.RefreshTokenCommand) (string, error) {
	claims, err := middleware.ParseToken(cmd.Token)
	if err != nil {
		return "", &errs.Error{Kind: errs.KindUnauthorized, Code: "INVALID_TOKEN", Message: "invalid or expired token", Err: err}
	}
	return middleware.IssueToken(claims.UserID, claims.Email, s.tokenTTL)
}
