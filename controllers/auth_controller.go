package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/perkclaims/middleware"
	"github.com/cppla/perkclaims/services"
	"github.com/cppla/perkclaims/utils"
)

// AuthController exposes the caller identity resolved from the bearer token.
// Sign-in itself belongs to the identity provider.
type AuthController struct {
	authz services.Authorizer
}

// NewAuthController creates a new AuthController instance.
func NewAuthController(authz services.Authorizer) *AuthController {
	return &AuthController{authz: authz}
}

// Me returns the current identity and whether it may review claims.
func (a *AuthController) Me(ctx *gin.Context) {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	utils.Success(ctx, gin.H{
		"user":       identity,
		"isReviewer": a.authz.CanReview(identity),
	})
}

// Logout revokes the bearer token until it expires.
func (a *AuthController) Logout(ctx *gin.Context) {
	token, expiresAt, ok := middleware.CurrentToken(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	utils.BlacklistToken(ctx.Request.Context(), token, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}
