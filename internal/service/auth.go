package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/sakif/snippet-share/internal/apperror"
	"github.com/sakif/snippet-share/internal/auth"
	"github.com/sakif/snippet-share/internal/model"
	"github.com/sakif/snippet-share/internal/repository"
)

const msgBadCredentials = "Invalid email or password"

// AuthService handles accounts and issues access tokens.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                               ↘ TokenService (JWT), PasswordHasher (bcrypt)
//
// It never touches cookies or redirects; those are the handler's job.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordHasher
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordHasher,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user and a fresh token so the handler can set the
// cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates an email/password account and signs it in.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "Name is required")
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(password) < auth.MinPasswordLen {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("Password must be at least %d characters", auth.MinPasswordLen))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "Password is too long")
	}

	user := &model.User{
		Name:         name,
		Email:        &email,
		Role:         model.RoleUser,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if apperror.IsDuplicateField(err, "email") {
			return nil, apperror.DuplicateKey("user", "email", email)
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID))
	return s.issue(user)
}

// Login checks email and password. Unknown emails and wrong passwords get
// the same apperror.ErrUnauthorized so responses do not reveal which
// accounts exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("email", "Email and password are required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.Unauthorized(msgBadCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Error("stored password hash is unreadable",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, apperror.Unauthorized(msgBadCredentials)
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	return s.issue(user)
}

// LoginOrRegisterGitHub upserts the GitHub account keyed on its stable
// GitHub ID and signs it in.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil {
		return nil, errors.New("service/auth: GitHub user must not be nil")
	}

	id := gh.ID
	user := &model.User{
		Name:     gh.DisplayName(),
		Photo:    gh.AvatarURL,
		GitHubID: &id,
	}
	if email := strings.ToLower(strings.TrimSpace(gh.Email)); email != "" {
		user.Email = &email
	}

	if err := s.users.UpsertGitHubUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", gh.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("user_id", user.ID),
		slog.String("login", gh.Login),
	)
	return s.issue(user)
}

// GetUserByID returns the profile for the /user endpoint.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.Unauthorized(msgLoginRequired)
	}
	return s.users.GetUserByID(ctx, id)
}

// PromoteAdmin grants the admin role to the account with email.
func (s *AuthService) PromoteAdmin(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if err := s.users.SetUserRole(ctx, email, model.RoleAdmin); err != nil {
		return fmt.Errorf("service/auth: promoting %s: %w", email, err)
	}

	s.logger.Info("user promoted to admin", slog.String("email", email))
	return nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperror.ValidationFailed("email", "Please provide a valid email")
	}
	return email, nil
}
