package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/perkclaims/services"
	"github.com/cppla/perkclaims/utils"
)

const (
	// ContextIdentityKey stores the resolved services.Identity inside Gin context.
	ContextIdentityKey = "identity"
	// ContextTokenKey stores the raw bearer token.
	ContextTokenKey = "token"
	// ContextTokenExpiryKey stores the token expiry as time.Time.
	ContextTokenExpiryKey = "token_expires_at"
)

// AuthRequired ensures the request carries a valid, unrevoked bearer token and
// stores the caller identity in the context.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
			ctx.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.Error(ctx, http.StatusUnauthorized, 40102, "invalid authorization header format")
			ctx.Abort()
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40103, "empty bearer token")
			ctx.Abort()
			return
		}

		if utils.IsTokenBlacklisted(ctx.Request.Context(), tokenString) {
			utils.Error(ctx, http.StatusUnauthorized, 40104, "token revoked")
			ctx.Abort()
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
			ctx.Abort()
			return
		}

		identity := services.Identity{
			UserID:   claims.Subject,
			Username: claims.Username,
			Email:    claims.Email,
			Roles:    claims.Roles,
		}
		ctx.Set(utils.ContextUserIDKey, identity.UserID)
		ctx.Set(ContextIdentityKey, identity)
		ctx.Set(ContextTokenKey, tokenString)
		if claims.ExpiresAt != nil {
			ctx.Set(ContextTokenExpiryKey, claims.ExpiresAt.Time)
		}
		ctx.Next()
	}
}

// CurrentIdentity returns the identity stored by AuthRequired.
func CurrentIdentity(ctx *gin.Context) (services.Identity, bool) {
	v, ok := ctx.Get(ContextIdentityKey)
	if !ok {
		return services.Identity{}, false
	}
	id, ok := v.(services.Identity)
	if !ok || id.UserID == "" {
		return services.Identity{}, false
	}
	return id, true
}

// CurrentToken returns the bearer token of the request and its expiry.
func CurrentToken(ctx *gin.Context) (string, time.Time, bool) {
	token := ctx.GetString(ContextTokenKey)
	if token == "" {
		return "", time.Time{}, false
	}
	return token, ctx.GetTime(ContextTokenExpiryKey), true
}

// ReviewerRequired rejects callers the authorizer does not allow to review.
// It must run after AuthRequired.
func ReviewerRequired(authz services.Authorizer) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		identity, _ := CurrentIdentity(ctx)
		switch services.RequireReviewer(authz, identity) {
		case nil:
			ctx.Next()
		case services.ErrUnauthorized:
			utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
			ctx.Abort()
		default:
			utils.Sugar.Warnf("review access denied user=%s path=%s", identity.UserID, ctx.FullPath())
			utils.Error(ctx, http.StatusForbidden, 40301, "reviewer access required")
			ctx.Abort()
		}
	}
}
