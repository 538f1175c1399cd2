package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/miniponz/food-share-application/internal/apperror"
	"github.com/miniponz/food-share-application/internal/auth"
	"github.com/miniponz/food-share-application/internal/geocode"
	"github.com/miniponz/food-share-application/internal/model"
	"github.com/miniponz/food-share-application/internal/repository"
)

// SignupInput is the payload for account creation. The location is
// geocoded at signup so proximity search can later use the user's stored
// coordinates as its reference point.
type SignupInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Address  string `json:"address"`
	Zip      string `json:"zip"`
}

// AuthService implements signup, signin, and token verification.
type AuthService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	geocoder  geocode.Geocoder
	logger    *slog.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	geocoder geocode.Geocoder,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		passwords: passwords,
		tokens:    tokens,
		geocoder:  geocoder,
		logger:    logger,
	}
}

// Signup creates an account and returns the user plus a signed token.
// A geocoder failure aborts the signup — a user without coordinates would
// silently break the "near me" search later, which is worse than asking
// them to retry now.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*model.User, string, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, "", apperror.ValidationFailed("username", "username is required")
	}
	if len(input.Password) < 6 {
		return nil, "", apperror.ValidationFailed("password", "password must be at least 6 characters")
	}

	role := input.Role
	if role == "" {
		role = "User"
	}

	user := &model.User{
		Username: username,
		Email:    strings.TrimSpace(input.Email),
		Role:     role,
		Location: model.Location{
			Address: strings.TrimSpace(input.Address),
			Zip:     strings.TrimSpace(input.Zip),
		},
	}

	if user.Location.Address != "" {
		place, err := s.geocoder.Locate(ctx, user.Location.Address)
		if err != nil {
			if errors.Is(err, geocode.ErrNoResults) {
				return nil, "", apperror.ValidationFailed("address",
					fmt.Sprintf("could not locate address %q", user.Location.Address))
			}
			s.logger.Error("geocoder lookup failed during signup",
				slog.String("username", username),
				slog.String("error", err.Error()),
			)
			return nil, "", apperror.Upstream("geocoder", err)
		}
		user.Location.Lat = &place.Point.Lat
		user.Location.Lng = &place.Point.Lng
	}

	hash, err := s.passwords.Hash(input.Password)
	if err != nil {
		return nil, "", apperror.ValidationFailed("password", err.Error())
	}
	user.PasswordHash = hash

	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issuing token: %w", err)
	}

	s.logger.Info("user signed up",
		slog.String("id", user.ID),
		slog.String("username", user.Username),
	)

	return user, token, nil
}

// Signin verifies credentials and returns the user plus a fresh token.
// Unknown usernames and wrong passwords both come back as the same
// Unauthorized error, so the response doesn't reveal which half failed.
func (s *AuthService) Signin(ctx context.Context, username, password string) (*model.User, string, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, "", apperror.Unauthorized("invalid username or password")
		}
		return nil, "", err
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, "", apperror.Unauthorized("invalid username or password")
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issuing token: %w", err)
	}

	return user, token, nil
}

// Verify resolves an already-authenticated user ID to the full record.
// The bearer middleware has validated the token; this just loads the user.
func (s *AuthService) Verify(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// Token is valid but the account is gone.
			return nil, apperror.Unauthorized("account no longer exists")
		}
		return nil, err
	}
	return user, nil
}
