package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cppla/perkclaims/models"
	"github.com/cppla/perkclaims/repository"
	"github.com/cppla/perkclaims/utils"
)

// Listing defaults for ListAll.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ListQuery selects a page of the review queue. An empty Status lists all claims.
type ListQuery struct {
	Status string
	Page   int
	Limit  int
}

// Pagination describes where a page sits in the full result.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// Page is one page of claims with their submitters.
type Page struct {
	Items      []models.Claim `json:"items"`
	Pagination Pagination     `json:"pagination"`
}

// Stats counts claims per status.
type Stats struct {
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
	Total    int64 `json:"total"`
}

// ClaimService owns the claim lifecycle: submission with its exclusivity
// rules, owner reads, and reviewer decisions.
type ClaimService struct {
	repo     repository.ClaimRepository
	notifier ReviewNotifier
	now      func() time.Time
}

// NewClaimService creates a ClaimService. A nil notifier disables notifications.
func NewClaimService(repo repository.ClaimRepository, notifier ReviewNotifier) *ClaimService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &ClaimService{
		repo:     repo,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Submit stores a new pending claim for userID. The exclusivity checks and the
// insert run in one serializable transaction; the store's unique indexes back
// them up.
func (s *ClaimService) Submit(ctx context.Context, userID string, sub Submission) (*models.Claim, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthorized
	}

	var created *models.Claim
	err := s.repo.WithTx(ctx, func(repo repository.ClaimRepository) error {
		if err := checkExclusive(ctx, repo, userID, sub.PerkID, sub.PreferredSubdomain, 0); err != nil {
			return err
		}
		claim := sub.toClaim(userID)
		if err := repo.Create(ctx, claim); err != nil {
			return err
		}
		created = claim
		return nil
	})
	if errors.Is(err, repository.ErrConflict) {
		err = s.explainConflict(ctx, userID, sub.PerkID, sub.PreferredSubdomain, 0)
	}
	if err != nil {
		return nil, wrapStore("submit claim", err)
	}

	utils.Sugar.Infof("claim submitted id=%d user=%s perk=%s subdomain=%s",
		created.ID, userID, created.PerkID, created.PreferredSubdomain)
	return created, nil
}

// ListForUser returns every claim owned by userID, newest first.
func (s *ClaimService) ListForUser(ctx context.Context, userID string) ([]models.Claim, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthorized
	}
	claims, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list claims for user: %w", err)
	}
	if claims == nil {
		claims = []models.Claim{}
	}
	return claims, nil
}

// GetByID returns the claim if requesterID owns it. Claims owned by someone
// else are reported as ErrNotFound.
func (s *ClaimService) GetByID(ctx context.Context, claimID uint, requesterID string) (*models.Claim, error) {
	if strings.TrimSpace(requesterID) == "" {
		return nil, ErrUnauthorized
	}
	claim, err := s.repo.GetByID(ctx, claimID)
	if err != nil {
		return nil, wrapStore("get claim", err)
	}
	if claim.UserID != requesterID {
		return nil, ErrNotFound
	}
	return claim, nil
}

// ListAll returns one page of all claims, oldest first, for reviewers.
func (s *ClaimService) ListAll(ctx context.Context, q ListQuery) (*Page, error) {
	var status models.ClaimStatus
	if q.Status != "" {
		st, ok := models.ParseClaimStatus(strings.ToLower(strings.TrimSpace(q.Status)))
		if !ok {
			return nil, ErrInvalidStatus
		}
		status = st
	}
	page, limit := normalizePage(q.Page, q.Limit)

	items, total, err := s.repo.List(ctx, repository.ListFilter{
		Status: status,
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	if items == nil {
		items = []models.Claim{}
	}
	return &Page{
		Items: items,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: int((total + int64(limit) - 1) / int64(limit)),
		},
	}, nil
}

// SetStatus records a reviewer decision. Claims cannot be moved back to
// pending. Approving re-checks both exclusivity rules against the other
// active claims.
func (s *ClaimService) SetStatus(ctx context.Context, claimID uint, reviewerID, status string, notes *string) (*models.Claim, error) {
	next, ok := models.ParseClaimStatus(strings.ToLower(strings.TrimSpace(status)))
	if !ok {
		return nil, ErrInvalidStatus
	}
	notes, err := validateNotes(notes)
	if err != nil {
		return nil, err
	}
	if notes != nil {
		notes = optional(utils.StripTags(*notes))
	}

	var updated *models.Claim
	err = s.repo.WithTx(ctx, func(repo repository.ClaimRepository) error {
		claim, err := repo.GetByIDForUpdate(ctx, claimID)
		if err != nil {
			return err
		}
		if next == models.ClaimStatusPending {
			return ErrInvalidTransition
		}
		if next == models.ClaimStatusApproved && claim.Status != models.ClaimStatusApproved {
			if err := checkExclusive(ctx, repo, claim.UserID, claim.PerkID, claim.PreferredSubdomain, claim.ID); err != nil {
				return err
			}
		}

		review := repository.Review{
			Status:     next,
			Notes:      notes,
			ReviewerID: reviewerID,
			ReviewedAt: s.now(),
		}
		if err := repo.UpdateReview(ctx, claim.ID, review); err != nil {
			return err
		}
		claim.Status = review.Status
		claim.ReviewerNotes = review.Notes
		claim.ReviewedBy = optional(review.ReviewerID)
		claim.ReviewedAt = &review.ReviewedAt
		claim.UpdatedAt = review.ReviewedAt
		updated = claim
		return nil
	})
	if errors.Is(err, repository.ErrConflict) {
		var claim *models.Claim
		if claim, err = s.repo.GetByID(ctx, claimID); err == nil {
			err = s.explainConflict(ctx, claim.UserID, claim.PerkID, claim.PreferredSubdomain, claim.ID)
		}
	}
	if err != nil {
		return nil, wrapStore("set claim status", err)
	}

	utils.Sugar.Infof("claim reviewed id=%d status=%s reviewer=%s", updated.ID, updated.Status, reviewerID)
	s.notifier.ClaimReviewed(ctx, *updated)
	return updated, nil
}

// Stats counts claims per status.
func (s *ClaimService) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count claims: %w", err)
	}
	st := &Stats{
		Pending:  counts[models.ClaimStatusPending],
		Approved: counts[models.ClaimStatusApproved],
		Rejected: counts[models.ClaimStatusRejected],
	}
	st.Total = st.Pending + st.Approved + st.Rejected
	return st, nil
}

// checkExclusive enforces one active claim per (user, perk) and per subdomain.
func checkExclusive(ctx context.Context, repo repository.ClaimRepository, userID, perkID, subdomain string, excludeID uint) error {
	existing, err := repo.FindActiveByUserPerk(ctx, userID, perkID, excludeID)
	if err != nil {
		return fmt.Errorf("find active claim: %w", err)
	}
	if existing != nil {
		return &DuplicateClaimError{Existing: existing.Status}
	}
	taken, err := repo.FindActiveBySubdomain(ctx, subdomain, excludeID)
	if err != nil {
		return fmt.Errorf("find subdomain: %w", err)
	}
	if taken != nil {
		return ErrSubdomainTaken
	}
	return nil
}

// explainConflict turns a unique index violation into the matching business
// error. The winning row may already be gone again, in which case the
// subdomain is blamed.
func (s *ClaimService) explainConflict(ctx context.Context, userID, perkID, subdomain string, excludeID uint) error {
	if err := checkExclusive(ctx, s.repo, userID, perkID, subdomain, excludeID); err != nil {
		return err
	}
	return ErrSubdomainTaken
}

func wrapStore(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrDuplicateClaim), errors.Is(err, ErrSubdomainTaken),
		errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrInvalidStatus):
		return err
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}
