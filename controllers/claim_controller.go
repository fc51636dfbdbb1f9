package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/perkclaims/middleware"
	"github.com/cppla/perkclaims/models"
	"github.com/cppla/perkclaims/services"
	"github.com/cppla/perkclaims/utils"
)

const myClaimsCacheTTL = 5 * time.Minute

// ClaimService is the claim workflow used by the HTTP handlers.
type ClaimService interface {
	Submit(ctx context.Context, userID string, sub services.Submission) (*models.Claim, error)
	ListForUser(ctx context.Context, userID string) ([]models.Claim, error)
	GetByID(ctx context.Context, claimID uint, requesterID string) (*models.Claim, error)
	ListAll(ctx context.Context, q services.ListQuery) (*services.Page, error)
	SetStatus(ctx context.Context, claimID uint, reviewerID, status string, notes *string) (*models.Claim, error)
	Stats(ctx context.Context) (*services.Stats, error)
}

// ClaimController exposes perk claim submission and review over HTTP.
type ClaimController struct {
	svc ClaimService
}

// NewClaimController creates a new ClaimController instance.
func NewClaimController(svc ClaimService) *ClaimController {
	return &ClaimController{svc: svc}
}

func myClaimsCacheKey(userID string) string {
	return fmt.Sprintf("cache:user:%s:claims", userID)
}

// Submit creates a pending claim for the caller.
func (c *ClaimController) Submit(ctx *gin.Context) {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var input services.SubmissionInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	sub, err := services.ValidateSubmission(input)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	claim, err := c.svc.Submit(ctx.Request.Context(), identity.UserID, sub)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	utils.CacheDelete(ctx.Request.Context(), myClaimsCacheKey(identity.UserID))

	utils.Respond(ctx, http.StatusCreated, 0, "claim submitted", gin.H{
		"claimId":     claim.ID,
		"submittedAt": claim.CreatedAt,
		"status":      claim.Status,
	})
}

// MyClaims lists the caller's claims, newest first.
func (c *ClaimController) MyClaims(ctx *gin.Context) {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	cacheKey := myClaimsCacheKey(identity.UserID)
	if b, ok := utils.CacheGetBytes(ctx.Request.Context(), cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
		return
	}

	claims, err := c.svc.ListForUser(ctx.Request.Context(), identity.UserID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	items := make([]models.ClaimSummary, 0, len(claims))
	for _, claim := range claims {
		items = append(items, claim.Summary())
	}
	payload := gin.H{"items": items}

	utils.CacheSetJSON(ctx.Request.Context(), cacheKey, utils.JSONResponse{
		Success: true,
		Message: "success",
		Data:    payload,
	}, myClaimsCacheTTL)
	utils.Success(ctx, payload)
}

// GetClaim returns one claim to its owner.
func (c *ClaimController) GetClaim(ctx *gin.Context) {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	id, ok := parseClaimID(ctx)
	if !ok {
		return
	}

	claim, err := c.svc.GetByID(ctx.Request.Context(), id, identity.UserID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"claim": claim})
}

// ListAll returns the review queue with optional status filter and pagination.
func (c *ClaimController) ListAll(ctx *gin.Context) {
	page, _ := strconv.Atoi(strings.TrimSpace(ctx.Query("page")))
	limit, _ := strconv.Atoi(strings.TrimSpace(ctx.Query("limit")))

	result, err := c.svc.ListAll(ctx.Request.Context(), services.ListQuery{
		Status: strings.TrimSpace(ctx.Query("status")),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	utils.Success(ctx, result)
}

// UpdateStatus records a reviewer decision on a claim.
func (c *ClaimController) UpdateStatus(ctx *gin.Context) {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	id, ok := parseClaimID(ctx)
	if !ok {
		return
	}

	var req struct {
		Status        string  `json:"status"`
		ReviewerNotes *string `json:"reviewerNotes"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	claim, err := c.svc.SetStatus(ctx.Request.Context(), id, identity.UserID, req.Status, req.ReviewerNotes)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	utils.CacheDelete(ctx.Request.Context(), myClaimsCacheKey(claim.UserID))
	utils.Respond(ctx, http.StatusOK, 0, "claim status updated", gin.H{"claim": claim})
}

// Stats returns claim counts per status.
func (c *ClaimController) Stats(ctx *gin.Context) {
	stats, err := c.svc.Stats(ctx.Request.Context())
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	utils.Success(ctx, stats)
}

func parseClaimID(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(ctx.Param("claimId")), 10, 64)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid claim id")
		return 0, false
	}
	return uint(id), true
}

// respondServiceError maps service failures onto status codes and the
// response envelope.
func respondServiceError(ctx *gin.Context, err error) {
	var verr *services.ValidationError
	var dup *services.DuplicateClaimError
	switch {
	case errors.As(err, &verr):
		utils.ErrorWithDetails(ctx, http.StatusBadRequest, 40002, "validation failed", verr.Errors)
	case errors.As(err, &dup):
		utils.Error(ctx, http.StatusBadRequest, 40010, dup.Error())
	case errors.Is(err, services.ErrDuplicateClaim):
		utils.Error(ctx, http.StatusBadRequest, 40010, "you already have an active claim for this perk")
	case errors.Is(err, services.ErrSubdomainTaken):
		utils.Error(ctx, http.StatusBadRequest, 40011, "subdomain is already taken")
	case errors.Is(err, services.ErrInvalidStatus):
		utils.Error(ctx, http.StatusBadRequest, 40012, "invalid status, expected one of pending, approved, rejected")
	case errors.Is(err, services.ErrInvalidTransition):
		utils.Error(ctx, http.StatusBadRequest, 40013, "a reviewed claim cannot be moved back to pending")
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40401, "claim not found")
	case errors.Is(err, services.ErrUnauthorized):
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
	case errors.Is(err, services.ErrForbidden):
		utils.Error(ctx, http.StatusForbidden, 40301, "forbidden")
	default:
		utils.Sugar.Errorw("claim request failed",
			"error", err,
			"path", ctx.FullPath(),
			"request_id", ctx.GetString(utils.ContextRequestIDKey),
		)
		utils.Error(ctx, http.StatusInternalServerError, 50010, "internal server error")
	}
}
