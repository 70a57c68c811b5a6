package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/chat-bridge/internal/api/response"
	"github.com/Rrens/chat-bridge/internal/config"
	"github.com/Rrens/chat-bridge/internal/security"
)

var validate = validator.New()

// LoginRequest is the operator login body
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,min=1,max=256"`
}

// TokenResponse is returned on a successful login
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// AuthHandler handles operator authentication
type AuthHandler struct {
	cfg        config.AdminConfig
	jwtManager *security.JWTManager
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cfg config.AdminConfig, jwtManager *security.JWTManager) *AuthHandler {
	return &AuthHandler{cfg: cfg, jwtManager: jwtManager}
}

// Login exchanges operator credentials for an access token
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(input); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			errors := make(map[string]string)
			for _, e := range validationErrors {
				switch e.Tag() {
				case "required":
					errors[e.Field()] = "field is required"
				case "min":
					errors[e.Field()] = "must be at least " + e.Param() + " characters"
				case "max":
					errors[e.Field()] = "must be at most " + e.Param() + " characters"
				default:
					errors[e.Field()] = "validation failed on " + e.Tag()
				}
			}
			response.BadRequest(w, errors)
			return
		}
		response.BadRequest(w, err.Error())
		return
	}

	if !security.CheckCredentials(h.cfg.Username, h.cfg.PasswordHash, input.Username, input.Password) {
		log.Warn().Str("username", input.Username).Str("remote", r.RemoteAddr).Msg("operator login rejected")
		response.Unauthorized(w, "invalid credentials")
		return
	}

	token, err := h.jwtManager.GenerateAccessToken(input.Username)
	if err != nil {
		response.InternalError(w, "failed to issue token")
		return
	}

	response.OK(w, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.jwtManager.AccessTokenTTL().Seconds()),
	})
}
