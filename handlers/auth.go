package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"pk55-api/logger"
	"pk55-api/middleware"
	"pk55-api/models"
	"pk55-api/services/auth"
	"pk55-api/utils"
)

type AuthHandler struct {
	jwtService    *auth.JWTService
	allowRegister bool
}

func NewAuthHandler(jwtService *auth.JWTService, allowRegister bool) *AuthHandler {
	return &AuthHandler{
		jwtService:    jwtService,
		allowRegister: allowRegister,
	}
}

// Login checks the credentials and returns a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.AuthRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Username and password required")
		return
	}

	authResponse, err := h.jwtService.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingCredentials):
			utils.SendErrorResponse(w, http.StatusBadRequest, "Username and password required")
		case errors.Is(err, auth.ErrInvalidCredentials):
			logger.Info("Login failed", zap.String("username", req.Username))
			utils.SendErrorResponse(w, http.StatusUnauthorized, "Invalid credentials")
		default:
			logger.Error("Login error", zap.String("username", req.Username), zap.Error(err))
			utils.SendErrorResponse(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	logger.Info("Login successful", zap.String("username", authResponse.User.Username))

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Authentication successful",
		Data:    authResponse,
	})
}

// Register creates an admin account. Disabled unless AUTH_ALLOW_REGISTER is set.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !h.allowRegister {
		utils.SendErrorResponse(w, http.StatusNotFound, "Not found")
		return
	}

	var req models.AuthRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Username and password required")
		return
	}

	authResponse, err := h.jwtService.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingCredentials):
			utils.SendErrorResponse(w, http.StatusBadRequest, "Username and password required")
		case errors.Is(err, auth.ErrUserExists):
			utils.SendErrorResponse(w, http.StatusBadRequest, "Username already exists")
		default:
			logger.Error("Register error", zap.String("username", req.Username), zap.Error(err))
			utils.SendErrorResponse(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	logger.Info("User registered", zap.String("username", authResponse.User.Username))

	utils.SendJSON(w, http.StatusCreated, models.APIResponse{
		Status:  "success",
		Message: "User registered successfully",
		Data:    authResponse,
	})
}

// Me returns the user carried by the bearer token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		utils.SendErrorResponse(w, http.StatusInternalServerError, "User not found in context")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "User information retrieved",
		Data:    user,
	})
}
