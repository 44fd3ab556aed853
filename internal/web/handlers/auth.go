package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/kozaktomas/face-auth/internal/auth"
	"github.com/kozaktomas/face-auth/internal/web/middleware"
)

// AuthHandler handles the token endpoints
type AuthHandler struct {
	auth *auth.Service
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{auth: svc}
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SignIn exchanges form credentials (username, password) for a token pair.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	pair, err := h.auth.SignIn(r.Context(), username, password)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, pair)
}

func decodeRefreshToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req refreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return "", false
	}
	if req.RefreshToken == "" {
		respondError(w, http.StatusBadRequest, "refresh_token is required")
		return "", false
	}
	return req.RefreshToken, true
}

// RefreshTokens rotates a refresh token into a new token pair.
func (h *AuthHandler) RefreshTokens(w http.ResponseWriter, r *http.Request) {
	token, ok := decodeRefreshToken(w, r)
	if !ok {
		return
	}

	pair, err := h.auth.Rotate(r.Context(), token)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, pair)
}

// SignOut revokes a refresh token.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	token, ok := decodeRefreshToken(w, r)
	if !ok {
		return
	}

	if err := h.auth.SignOut(r.Context(), token); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// StatusResponse represents the auth status response
type StatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	Login         string `json:"login,omitempty"`
}

// Status reports the client the access token belongs to. It runs behind RequireAuth.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	login := middleware.GetLoginFromContext(r.Context())
	respondJSON(w, http.StatusOK, StatusResponse{
		Authenticated: login != "",
		Login:         login,
	})
}
