package models

import "time"

// ClaimStatus is the review state of a claim.
type ClaimStatus string

const (
	// ClaimStatusPending is the state of every new submission.
	ClaimStatusPending ClaimStatus = "pending"
	// ClaimStatusApproved marks a claim accepted by a reviewer.
	ClaimStatusApproved ClaimStatus = "approved"
	// ClaimStatusRejected marks a claim declined by a reviewer.
	ClaimStatusRejected ClaimStatus = "rejected"
)

// ActiveClaimStatuses are the statuses that hold a subdomain and block a
// second application for the same perk.
var ActiveClaimStatuses = []ClaimStatus{ClaimStatusPending, ClaimStatusApproved}

// ParseClaimStatus returns the status named by s and whether it is known.
func ParseClaimStatus(s string) (ClaimStatus, bool) {
	switch ClaimStatus(s) {
	case ClaimStatusPending, ClaimStatusApproved, ClaimStatusRejected:
		return ClaimStatus(s), true
	}
	return "", false
}

// IsActive reports whether the status counts towards the uniqueness rules.
func (s ClaimStatus) IsActive() bool {
	return s == ClaimStatusPending || s == ClaimStatusApproved
}

// Project stages.
const (
	StageTesting    = "testing"
	StageProduction = "production"
)

// Team sizes.
const (
	TeamSizeSolo   = "solo"
	TeamSizeSmall  = "2-5"
	TeamSizeMedium = "6-10"
	TeamSizeLarge  = "10+"
)

// Claim is one application to redeem a perk.
type Claim struct {
	ID                 uint        `gorm:"primaryKey" json:"id"`
	UserID             string      `gorm:"size:191;index;not null" json:"userId"`
	PerkID             string      `gorm:"size:100;index;not null" json:"perkId"`
	ProjectName        string      `gorm:"size:100;not null" json:"projectName"`
	CurrentStage       string      `gorm:"size:20;not null" json:"currentStage"`
	ProblemSolving     string      `gorm:"type:text;not null" json:"problemSolving"`
	TargetAudience     string      `gorm:"size:200;not null" json:"targetAudience"`
	UniqueApproach     string      `gorm:"type:text;not null" json:"uniqueApproach"`
	TechStack          string      `gorm:"size:200;not null" json:"techStack"`
	GithubURL          string      `gorm:"column:github_url;size:2048;not null" json:"githubUrl"`
	LiveURL            *string     `gorm:"column:live_url;size:2048" json:"liveUrl"`
	TeamSize           string      `gorm:"size:10;not null" json:"teamSize"`
	DataSafety         string      `gorm:"type:text;not null" json:"dataSafety"`
	PrivacyPolicyURL   *string     `gorm:"column:privacy_policy_url;size:2048" json:"privacyPolicyUrl"`
	PreferredSubdomain string      `gorm:"size:50;index;not null" json:"preferredSubdomain"`
	AdditionalInfo     *string     `gorm:"type:text" json:"additionalInfo"`
	Status             ClaimStatus `gorm:"size:20;index;not null;default:'pending'" json:"status"`
	ReviewerNotes      *string     `gorm:"type:text" json:"reviewerNotes"`
	ReviewedBy         *string     `gorm:"size:191" json:"reviewedBy,omitempty"`
	CreatedAt          time.Time   `json:"createdAt"`
	UpdatedAt          time.Time   `json:"updatedAt"`
	ReviewedAt         *time.Time  `json:"reviewedAt"`
	Submitter          *User       `gorm:"foreignKey:UserID;references:ID" json:"submitter,omitempty"`
}

// ClaimSummary is the list view of a claim returned to its owner.
type ClaimSummary struct {
	ID                 uint        `json:"id"`
	PerkID             string      `json:"perkId"`
	ProjectName        string      `json:"projectName"`
	PreferredSubdomain string      `json:"preferredSubdomain"`
	Status             ClaimStatus `json:"status"`
	ReviewerNotes      *string     `json:"reviewerNotes"`
	CreatedAt          time.Time   `json:"createdAt"`
	ReviewedAt         *time.Time  `json:"reviewedAt"`
}

// Summary projects the claim onto its list view.
func (c Claim) Summary() ClaimSummary {
	return ClaimSummary{
		ID:                 c.ID,
		PerkID:             c.PerkID,
		ProjectName:        c.ProjectName,
		PreferredSubdomain: c.PreferredSubdomain,
		Status:             c.Status,
		ReviewerNotes:      c.ReviewerNotes,
		CreatedAt:          c.CreatedAt,
		ReviewedAt:         c.ReviewedAt,
	}
}
