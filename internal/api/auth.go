package api

import (
	"deployd/internal/apperrors"
	"deployd/internal/auth"
	"encoding/json"
	"net"
	"net/http"
	"time"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
}

// Login handles POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow(clientIP(r)) {
		w.Header().Set("Retry-After", "60")
		h.writeError(w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		h.handleError(w, r, apperrors.Validation("username", "username and password are required"))
		return
	}

	user, err := h.users.Authenticate(req.Username, req.Password)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	token, expiresAt, err := h.tokens.Issue(user.Username, user.Role)
	if err != nil {
		h.handleError(w, r, apperrors.Internal("auth.issue", err))
		return
	}

	h.writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Username:  user.Username,
		Role:      user.Role,
	})
}

// Me handles GET /auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())
	if claims == nil {
		h.handleError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}
	h.writeJSON(w, http.StatusOK, claims)
}

// ListUsers handles GET /users (admin only)
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireRole(auth.FromContext(r.Context()), auth.RoleAdmin); err != nil {
		h.handleError(w, r, err)
		return
	}
	users, err := h.users.List()
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, users)
}

// clientIP is the peer address; forwarding headers are not trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
