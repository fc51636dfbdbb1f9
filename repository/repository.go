package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cppla/perkclaims/models"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a unique constraint.
	ErrConflict = errors.New("unique constraint violated")
)

// ListFilter narrows and pages the reviewer listing. A zero Status lists every claim.
type ListFilter struct {
	Status models.ClaimStatus
	Offset int
	Limit  int
}

// Review is the reviewer decision written onto a claim.
type Review struct {
	Status     models.ClaimStatus
	Notes      *string
	ReviewerID string
	ReviewedAt time.Time
}

// ClaimRepository is the storage access used by the claim service.
//
// The Find* lookups return (nil, nil) when nothing matches; excludeID, when
// non-zero, leaves that claim out of the match.
type ClaimRepository interface {
	// WithTx runs fn inside a serializable transaction, retrying it when the
	// store aborts the transaction on a serialization failure or deadlock.
	WithTx(ctx context.Context, fn func(repo ClaimRepository) error) error
	Create(ctx context.Context, claim *models.Claim) error
	GetByID(ctx context.Context, id uint) (*models.Claim, error)
	GetByIDForUpdate(ctx context.Context, id uint) (*models.Claim, error)
	FindActiveByUserPerk(ctx context.Context, userID, perkID string, excludeID uint) (*models.Claim, error)
	FindActiveBySubdomain(ctx context.Context, subdomain string, excludeID uint) (*models.Claim, error)
	ListByUser(ctx context.Context, userID string) ([]models.Claim, error)
	List(ctx context.Context, filter ListFilter) ([]models.Claim, int64, error)
	UpdateReview(ctx context.Context, id uint, review Review) error
	CountByStatus(ctx context.Context) (map[models.ClaimStatus]int64, error)
}

// UserRepository stores the local mirror of identity-provider users.
type UserRepository interface {
	Upsert(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
}
