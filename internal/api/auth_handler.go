package api

import (
	"net/http"

	"gymtrack/internal/service"

	"github.com/gin-gonic/gin"
)

// AuthHandler holds the authentication service dependency.
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// --- Request/Response Structs ---

type LoginRequest struct {
	Name string `json:"name"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// Login issues a visitor token. There is no account and no credential
// check; every login mints a fresh visitor identity.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	// An empty body is acceptable: the name is optional.
	_ = c.ShouldBindJSON(&req)

	token, visitor, err := h.authService.Login(c.Request.Context(), req.Name)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "could not issue token")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:    token,
		UserID:   visitor.ID,
		UserName: visitor.Name,
	})
}
