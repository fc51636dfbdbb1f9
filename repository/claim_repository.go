package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/perkclaims/models"
	"github.com/cppla/perkclaims/utils"
)

const (
	txMaxRetries  = 3
	txBaseBackoff = 25 * time.Millisecond
)

type claimRepository struct {
	db *gorm.DB
}

// NewClaimRepository returns a GORM-backed ClaimRepository.
func NewClaimRepository(db *gorm.DB) ClaimRepository {
	return &claimRepository{db: db}
}

func (r *claimRepository) WithTx(ctx context.Context, fn func(repo ClaimRepository) error) error {
	backoff := retry.WithMaxRetries(txMaxRetries, retry.NewExponential(txBaseBackoff))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(&claimRepository{db: tx})
		}, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if isRetryable(err) {
			utils.Sugar.Warnf("claims transaction aborted (attempt %d): %v", attempt, err)
			return retry.RetryableError(err)
		}
		return err
	})
}

func (r *claimRepository) Create(ctx context.Context, claim *models.Claim) error {
	return translate(r.db.WithContext(ctx).Create(claim).Error)
}

func (r *claimRepository) GetByID(ctx context.Context, id uint) (*models.Claim, error) {
	var claim models.Claim
	if err := r.db.WithContext(ctx).First(&claim, id).Error; err != nil {
		return nil, translate(err)
	}
	return &claim, nil
}

func (r *claimRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.Claim, error) {
	var claim models.Claim
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&claim, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &claim, nil
}

func (r *claimRepository) FindActiveByUserPerk(ctx context.Context, userID, perkID string, excludeID uint) (*models.Claim, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND perk_id = ?", userID, perkID).
		Where("status IN ?", models.ActiveClaimStatuses)
	return findFirst(q, excludeID)
}

func (r *claimRepository) FindActiveBySubdomain(ctx context.Context, subdomain string, excludeID uint) (*models.Claim, error) {
	q := r.db.WithContext(ctx).
		Where("LOWER(preferred_subdomain) = ?", strings.ToLower(subdomain)).
		Where("status IN ?", models.ActiveClaimStatuses)
	return findFirst(q, excludeID)
}

func findFirst(q *gorm.DB, excludeID uint) (*models.Claim, error) {
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var claims []models.Claim
	if err := q.Order("id ASC").Limit(1).Find(&claims).Error; err != nil {
		return nil, translate(err)
	}
	if len(claims) == 0 {
		return nil, nil
	}
	return &claims[0], nil
}

func (r *claimRepository) ListByUser(ctx context.Context, userID string) ([]models.Claim, error) {
	var claims []models.Claim
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&claims).Error
	if err != nil {
		return nil, translate(err)
	}
	return claims, nil
}

func (r *claimRepository) List(ctx context.Context, filter ListFilter) ([]models.Claim, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Claim{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	// Shared by the count and the page query
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var claims []models.Claim
	err := q.Preload("Submitter").
		Order("created_at ASC, id ASC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&claims).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return claims, total, nil
}

func (r *claimRepository) UpdateReview(ctx context.Context, id uint, review Review) error {
	res := r.db.WithContext(ctx).
		Model(&models.Claim{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         review.Status,
			"reviewer_notes": review.Notes,
			"reviewed_by":    review.ReviewerID,
			"reviewed_at":    review.ReviewedAt,
			"updated_at":     review.ReviewedAt,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *claimRepository) CountByStatus(ctx context.Context) (map[models.ClaimStatus]int64, error) {
	var rows []struct {
		Status models.ClaimStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Claim{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	counts := make(map[models.ClaimStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
