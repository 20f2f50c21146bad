package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ajkula/logwatcher/domain/port/outbound"
)

// AuthHandler exchanges configured API user credentials for bearer tokens
type AuthHandler struct {
	users  map[string]string
	hasher outbound.PasswordHasher
	secret string
	ttl    time.Duration
	logger outbound.Logger
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewAuthHandler takes users as username to encoded password hash
func NewAuthHandler(users map[string]string, hasher outbound.PasswordHasher, secret string, ttl time.Duration, logger outbound.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		hasher: hasher,
		secret: secret,
		ttl:    ttl,
		logger: logger,
	}
}

func (h *AuthHandler) SetupRoutes(router *mux.Router) {
	router.HandleFunc(loginRoute, h.Login).Methods("POST")
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}

	encoded, ok := h.users[req.Username]
	if !ok || !h.hasher.Verify(req.Password, encoded) {
		h.logger.Warn("Login failed", "username", req.Username)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := IssueToken(h.secret, req.Username, h.ttl)
	if err != nil {
		h.logger.Error("Failed to issue token", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	h.logger.Info("User logged in", "username", req.Username)
	writeJSON(w, http.StatusOK, LoginResponse{
		Username:  req.Username,
		Token:     token,
		ExpiresAt: time.Now().Add(h.ttl),
	})
}
