package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/betweenus/backend/internal/accounts"
	"github.com/betweenus/backend/internal/auth"
	"github.com/betweenus/backend/internal/logging"
	"github.com/betweenus/backend/internal/models"
	"github.com/betweenus/backend/internal/saga"
)

// Device identity travels in headers so every authenticated call can refresh
// the device binding without widening request bodies.
const (
	deviceIDHeader    = "X-Device-Id"
	deviceModelHeader = "X-Device-Model"
)

// AuthHandler implements account authentication endpoints.
type AuthHandler struct {
	Accounts AccountService
	Sessions SessionManager
	Limiter  RateLimiter
}

// SignUp handles POST /api/v1/auth/signup requests.
func (h AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Accounts == nil {
		logger.Error("account service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "authentication services unavailable"})
		return
	}

	if !allowRequest(h.Limiter, r, "signup") {
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
		return
	}

	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid signup payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.Accounts.SignUp(ctx, accounts.NewAccount{
		Email:      req.Email,
		Password:   req.Password,
		Username:   req.Username,
		FullName:   req.FullName,
		DeviceID:   strings.TrimSpace(r.Header.Get(deviceIDHeader)),
		DeviceName: strings.TrimSpace(r.Header.Get(deviceModelHeader)),
	})
	if err != nil {
		var devErr *accounts.DeviceRegistrationError
		var compErr *saga.CompensationError
		switch {
		case errors.Is(err, accounts.ErrInvalidArgument):
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, accounts.ErrEmailTaken), errors.Is(err, accounts.ErrUsernameTaken):
			respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "account already exists"})
		case errors.As(err, &devErr):
			logger.Error("signup device registration failed", "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "device registration failed"})
		case errors.As(err, &compErr):
			logger.Error("signup rollback incomplete", "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create account"})
		default:
			logger.Error("signup failed", "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create account"})
		}
		return
	}

	respondJSON(ctx, w, http.StatusCreated, authResponse{
		User:   viewUser(result.User),
		Tokens: viewTokens(result.Tokens),
	})
}

// Login handles POST /api/v1/auth/login requests.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Accounts == nil {
		logger.Error("account service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "authentication services unavailable"})
		return
	}

	if !allowRequest(h.Limiter, r, "login") {
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	deviceID := strings.TrimSpace(r.Header.Get(deviceIDHeader))
	deviceName := strings.TrimSpace(r.Header.Get(deviceModelHeader))

	result, err := h.Accounts.SignIn(ctx, req.Email, req.Password, deviceID, deviceName)
	if err != nil {
		switch {
		case errors.Is(err, accounts.ErrInvalidArgument):
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, accounts.ErrInvalidCredentials):
			logger.Warn("login rejected", "email", req.Email)
			respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		default:
			logger.Error("login failed", "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to sign in"})
		}
		return
	}

	respondJSON(ctx, w, http.StatusOK, authResponse{
		User:   viewUser(result.User),
		Tokens: viewTokens(result.Tokens),
	})
}

// Refresh exchanges a refresh token for a new session.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Sessions == nil {
		logger.Error("session manager unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "session service unavailable"})
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid refresh payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		logger.Warn("missing refresh token")
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "refresh token is required"})
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, auth.ErrRefreshTokenExpired) || errors.Is(err, auth.ErrSessionNotFound) {
			status = http.StatusUnauthorized
		}
		logger.Error("refresh failed", "error", err, "status", status)
		respondJSON(ctx, w, status, map[string]string{"error": "unable to refresh session"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, authResponse{Tokens: viewTokens(tokens)})
}

// Logout revokes the presented refresh token.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	if h.Sessions == nil {
		logging.FromContext(ctx).Error("session manager unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "session service unavailable"})
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	h.Sessions.Revoke(ctx, strings.TrimSpace(req.RefreshToken))
	w.WriteHeader(http.StatusNoContent)
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
	FullName string `json:"fullname"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	User   userView   `json:"user"`
	Tokens tokensView `json:"tokens"`
}

func viewTokens(t models.SessionTokens) tokensView {
	return tokensView{
		AccessToken:      t.AccessToken,
		AccessExpiresAt:  t.AccessExpiresAt,
		RefreshToken:     t.RefreshToken,
		RefreshExpiresAt: t.RefreshExpiresAt,
	}
}
