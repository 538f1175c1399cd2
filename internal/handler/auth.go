package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/miniponz/food-share-application/internal/apperror"
	"github.com/miniponz/food-share-application/internal/auth"
	"github.com/miniponz/food-share-application/internal/model"
	"github.com/miniponz/food-share-application/internal/service"
)

// AuthHandler manages signup, signin, and token verification.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(authSvc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: authSvc, logger: logger}
}

// signupRequest is the signup wire shape: credentials plus a nested
// location.
type signupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Location struct {
		Address string `json:"address"`
		Zip     string `json:"zip"`
	} `json:"location"`
}

// sessionResponse is returned by signup and signin: the account (password
// hash excluded at the model level) and a bearer token for subsequent
// requests.
type sessionResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// HandleSignup creates an account.
//
// HTTP: POST /api/v1/auth/signup
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	user, token, err := h.auth.Signup(r.Context(), service.SignupInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		Role:     req.Role,
		Address:  req.Location.Address,
		Zip:      req.Location.Zip,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{User: user, Token: token})
}

// HandleSignin exchanges credentials for a token.
//
// HTTP: POST /api/v1/auth/signin
func (h *AuthHandler) HandleSignin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	user, token, err := h.auth.Signin(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{User: user, Token: token})
}

// HandleVerify returns the account behind the presented bearer token.
//
// HTTP: GET /api/v1/auth/verify (auth required)
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	user, err := h.auth.Verify(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
