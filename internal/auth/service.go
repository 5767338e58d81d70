package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-labs/gatehouse/internal/accounts"
	"github.com/gatehouse-labs/gatehouse/internal/identity"
)

// ErrInvalidCredentials indicates login failure. Inactive accounts and bad
// passwords are indistinguishable to the caller.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// ErrInvalidToken indicates an expired or unknown bearer token.
var ErrInvalidToken = errors.New("auth: invalid token")

// Repository is the account lookup surface the service depends on.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (accounts.Account, error)
	FindByID(ctx context.Context, id int64) (accounts.Account, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	tokens *TokenStore
}

// NewService constructs a Service.
func NewService(repo Repository, tokens *TokenStore) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Login validates credentials and issues an opaque bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (string, identity.Account, error) {
	account, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, accounts.ErrNotFound) {
		return "", identity.Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", identity.Account{}, fmt.Errorf("auth: find account: %w", err)
	}
	if !account.IsActive {
		return "", identity.Account{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", identity.Account{}, ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(ctx, account.ID)
	if err != nil {
		return "", identity.Account{}, err
	}
	return token, account.Identity(), nil
}

// AccountForToken resolves a bearer token to its account.
func (s *Service) AccountForToken(ctx context.Context, token string) (identity.Account, error) {
	accountID, err := s.tokens.Lookup(ctx, token)
	if err != nil {
		return identity.Account{}, err
	}
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return identity.Account{}, ErrInvalidToken
		}
		return identity.Account{}, err
	}
	if !account.IsActive {
		return identity.Account{}, ErrInvalidToken
	}
	return account.Identity(), nil
}

// Logout revokes a bearer token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}
