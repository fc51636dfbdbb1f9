package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/perkclaims/models"
	"github.com/cppla/perkclaims/repository"
	"github.com/cppla/perkclaims/utils"
)

const userSyncInterval = 10 * time.Minute

var (
	lastSynced   = map[string]time.Time{}
	lastSyncedMu sync.Mutex
)

// SyncUser mirrors the authenticated identity into the users table so
// reviewers see who submitted a claim and notifications can be addressed.
// Writes are throttled per user. Failures are logged and never block the request.
func SyncUser(users repository.UserRepository) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		identity, ok := CurrentIdentity(ctx)
		if ok && shouldSync(ctx.Request.Context(), identity.UserID) {
			now := time.Now().UTC()
			user := &models.User{
				ID:         identity.UserID,
				Username:   identity.Username,
				Email:      identity.Email,
				LastSeenAt: &now,
			}
			if err := users.Upsert(ctx.Request.Context(), user); err != nil {
				utils.Sugar.Warnf("user sync failed user=%s: %v", identity.UserID, err)
				forgetSync(ctx.Request.Context(), identity.UserID)
			}
		}
		ctx.Next()
	}
}

// shouldSync claims the sync slot for userID, via Redis SETNX when available
// and a local map otherwise.
func shouldSync(ctx context.Context, userID string) bool {
	if rc := utils.GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		ok, err := rc.SetNX(ctx, "user:sync:"+userID, "1", userSyncInterval).Result()
		if err == nil {
			return ok
		}
	}
	lastSyncedMu.Lock()
	defer lastSyncedMu.Unlock()
	if t, ok := lastSynced[userID]; ok && time.Since(t) < userSyncInterval {
		return false
	}
	lastSynced[userID] = time.Now()
	return true
}

func forgetSync(ctx context.Context, userID string) {
	if rc := utils.GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		_ = rc.Del(ctx, "user:sync:"+userID).Err()
	}
	lastSyncedMu.Lock()
	delete(lastSynced, userID)
	lastSyncedMu.Unlock()
}
