package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-drill/internal/middleware"
	"github.com/stemsi/exstem-drill/internal/model"
	"github.com/stemsi/exstem-drill/internal/response"
	"github.com/stemsi/exstem-drill/internal/service"
	"github.com/stemsi/exstem-drill/internal/validator"
)

// AuthHandler handles token endpoints.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// IssueToken godoc
// POST /api/v1/auth/token
// Issues a learner or author token to a client holding the shared client key.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req model.TokenRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	token, claims, err := h.authService.IssueToken(c.Request.Context(), req)
	if err != nil {
		failErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token":       token,
		"token_type":  claims.TokenType,
		"subject_id":  claims.UserID,
		"permissions": claims.Permissions,
		"expires_at":  claims.ExpiresAt.Time,
	})
}

// Me godoc
// GET /api/v1/auth/me
// Returns the identity carried by the presented token.
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"subject_id":  claims.UserID,
		"token_type":  claims.TokenType,
		"permissions": claims.Permissions,
		"expires_at":  claims.ExpiresAt.Time,
	})
}

// Logout godoc
// POST /api/v1/auth/logout
// Revokes the presented token.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.authService.RevokeToken(c.Request.Context(), claims.ID); err != nil {
		failErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
