package services

import (
	"errors"
	"strings"

	"github.com/cppla/perkclaims/models"
)

var (
	// ErrDuplicateClaim is matched by *DuplicateClaimError.
	ErrDuplicateClaim    = errors.New("duplicate claim")
	ErrSubdomainTaken    = errors.New("subdomain is already taken")
	ErrNotFound          = errors.New("claim not found")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
)

// DuplicateClaimError reports an active claim for the same user and perk.
type DuplicateClaimError struct {
	Existing models.ClaimStatus
}

func (e *DuplicateClaimError) Error() string {
	if e.Existing == models.ClaimStatusApproved {
		return "you already have an approved claim for this perk"
	}
	return "you already have a claim for this perk pending review"
}

// Is lets callers match with errors.Is(err, ErrDuplicateClaim).
func (e *DuplicateClaimError) Is(target error) bool {
	return target == ErrDuplicateClaim
}

// FieldError is one violated rule on one input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every violated rule of an input.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+" "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
