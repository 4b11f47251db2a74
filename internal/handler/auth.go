package handler

import (
	"net/http"
	"time"

	"github.com/flipwise/flipwise/internal/apperr"
	"github.com/flipwise/flipwise/internal/ctxkeys"
	"github.com/flipwise/flipwise/internal/service"
)

type AuthHandler struct {
	authService  *service.AuthService
	tokenService *service.TokenService
}

func NewAuthHandler(authService *service.AuthService, tokenService *service.TokenService) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		tokenService: tokenService,
	}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsPremium bool   `json:"is_premium"`
}

type profileResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsPremium bool      `json:"is_premium"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	userID, err := h.authService.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, _, err := h.tokenService.Issue(userID)
	if err != nil {
		writeError(w, r, apperr.Internal(err))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":      "User created successfully",
		"user_id":      userID,
		"access_token": token,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, r, apperr.Validation("email and password are required"))
		return
	}

	user, err := h.authService.Verify(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, _, err := h.tokenService.Issue(user.ID)
	if err != nil {
		writeError(w, r, apperr.Internal(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Login successful",
		"access_token": token,
		"user": userSummary{
			ID:        user.ID,
			Name:      user.Name,
			IsPremium: user.IsPremium,
		},
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.User(r.Context(), ctxkeys.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		IsPremium: user.IsPremium,
		CreatedAt: user.CreatedAt,
	})
}
