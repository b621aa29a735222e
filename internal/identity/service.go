package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/honorchat/server/internal/domain"
	"github.com/honorchat/server/internal/store"
)

// ErrInvalidCredentials is returned by Login when the email is unknown or the
// password does not match. Callers must not distinguish the two cases.
var ErrInvalidCredentials = errors.New("invalid credentials")

var validate = validator.New()

// SignupRequest carries the fields required to register an account.
type SignupRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	UserID   string `json:"userid" validate:"required,alphanum,min=3,max=32"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Service is the identity provider: it registers accounts and issues
// credentials the rest of the system verifies.
type Service struct {
	repo     store.Repository
	secret   []byte
	tokenTTL time.Duration
}

// NewService creates an identity service backed by the given repository.
func NewService(repo store.Repository, secret []byte, tokenTTL time.Duration) *Service {
	return &Service{repo: repo, secret: secret, tokenTTL: tokenTTL}
}

// Signup validates the request, hashes the password, and persists the user.
// Uniqueness violations surface as store.ErrEmailTaken / store.ErrUserIDTaken.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*domain.User, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("validate signup: %w", err)
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		UserID:       req.UserID,
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies the email/password pair and issues a signed credential.
func (s *Service) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	if email == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("look up user: %w", err)
	}
	if user == nil {
		return "", nil, ErrInvalidCredentials
	}

	match, err := ComparePassword(password, user.PasswordHash)
	if err != nil {
		return "", nil, fmt.Errorf("compare password: %w", err)
	}
	if !match {
		return "", nil, ErrInvalidCredentials
	}

	token, err := GenerateToken(user.UserID, user.Name, s.secret, s.tokenTTL)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Verify checks a credential string and returns its claims.
func (s *Service) Verify(_ context.Context, token string) (*Claims, error) {
	return ValidateToken(token, s.secret)
}
