package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cppla/perkclaims/models"
)

// MaxReviewerNotesLength bounds the reviewer notes stored on a claim.
const MaxReviewerNotesLength = 1000

// SubmissionInput is the raw claim submission as decoded from a request body.
// AgreeToTerms is left untyped so that anything other than JSON true can be
// reported as a field error instead of a decoding failure.
type SubmissionInput struct {
	PerkID             string      `json:"perkId" validate:"required,max=100"`
	ProjectName        string      `json:"projectName" validate:"required,max=100"`
	CurrentStage       string      `json:"currentStage" validate:"required,oneof=testing production"`
	ProblemSolving     string      `json:"problemSolving" validate:"required,min=10,max=1000"`
	TargetAudience     string      `json:"targetAudience" validate:"required,max=200"`
	UniqueApproach     string      `json:"uniqueApproach" validate:"required,min=10,max=1000"`
	TechStack          string      `json:"techStack" validate:"required,max=200"`
	GithubURL          string      `json:"githubUrl" validate:"required,url"`
	LiveURL            string      `json:"liveUrl" validate:"omitempty,url"`
	TeamSize           string      `json:"teamSize" validate:"required,oneof=solo 2-5 6-10 10+"`
	DataSafety         string      `json:"dataSafety" validate:"required,min=10,max=1000"`
	PrivacyPolicyURL   string      `json:"privacyPolicyUrl" validate:"omitempty,url"`
	PreferredSubdomain string      `json:"preferredSubdomain" validate:"required,max=50"`
	AdditionalInfo     string      `json:"additionalInfo" validate:"max=500"`
	AgreeToTerms       interface{} `json:"agreeToTerms"`
}

// Submission is a validated and normalized claim submission.
type Submission struct {
	PerkID             string
	ProjectName        string
	CurrentStage       string
	ProblemSolving     string
	TargetAudience     string
	UniqueApproach     string
	TechStack          string
	GithubURL          string
	LiveURL            *string
	TeamSize           string
	DataSafety         string
	PrivacyPolicyURL   *string
	PreferredSubdomain string
	AdditionalInfo     *string
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateSubmission trims and checks every field of in and returns the
// normalized submission, or a *ValidationError listing all violations.
func ValidateSubmission(in SubmissionInput) (Submission, error) {
	in = trimInput(in)

	var fieldErrs []FieldError
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Submission{}, err
		}
		for _, fe := range verrs {
			fieldErrs = append(fieldErrs, FieldError{Field: fe.Field(), Message: messageFor(fe)})
		}
	}
	if agreed, ok := in.AgreeToTerms.(bool); !ok || !agreed {
		fieldErrs = append(fieldErrs, FieldError{Field: "agreeToTerms", Message: "must agree to terms"})
	}
	if len(fieldErrs) > 0 {
		return Submission{}, &ValidationError{Errors: fieldErrs}
	}

	return Submission{
		PerkID:             in.PerkID,
		ProjectName:        in.ProjectName,
		CurrentStage:       in.CurrentStage,
		ProblemSolving:     in.ProblemSolving,
		TargetAudience:     in.TargetAudience,
		UniqueApproach:     in.UniqueApproach,
		TechStack:          in.TechStack,
		GithubURL:          in.GithubURL,
		LiveURL:            optional(in.LiveURL),
		TeamSize:           in.TeamSize,
		DataSafety:         in.DataSafety,
		PrivacyPolicyURL:   optional(in.PrivacyPolicyURL),
		PreferredSubdomain: strings.ToLower(in.PreferredSubdomain),
		AdditionalInfo:     optional(in.AdditionalInfo),
	}, nil
}

// validateNotes checks reviewer notes and returns them trimmed, nil when blank.
func validateNotes(notes *string) (*string, error) {
	if notes == nil {
		return nil, nil
	}
	n := strings.TrimSpace(*notes)
	if n == "" {
		return nil, nil
	}
	if len([]rune(n)) > MaxReviewerNotesLength {
		return nil, &ValidationError{Errors: []FieldError{{
			Field:   "reviewerNotes",
			Message: fmt.Sprintf("must be at most %d characters", MaxReviewerNotesLength),
		}}}
	}
	return &n, nil
}

func trimInput(in SubmissionInput) SubmissionInput {
	for _, p := range []*string{
		&in.PerkID, &in.ProjectName, &in.CurrentStage, &in.ProblemSolving,
		&in.TargetAudience, &in.UniqueApproach, &in.TechStack, &in.GithubURL,
		&in.LiveURL, &in.TeamSize, &in.DataSafety, &in.PrivacyPolicyURL,
		&in.PreferredSubdomain, &in.AdditionalInfo,
	} {
		*p = strings.TrimSpace(*p)
	}
	return in
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	default:
		return "is invalid"
	}
}

func (s Submission) toClaim(userID string) *models.Claim {
	return &models.Claim{
		UserID:             userID,
		PerkID:             s.PerkID,
		ProjectName:        s.ProjectName,
		CurrentStage:       s.CurrentStage,
		ProblemSolving:     s.ProblemSolving,
		TargetAudience:     s.TargetAudience,
		UniqueApproach:     s.UniqueApproach,
		TechStack:          s.TechStack,
		GithubURL:          s.GithubURL,
		LiveURL:            s.LiveURL,
		TeamSize:           s.TeamSize,
		DataSafety:         s.DataSafety,
		PrivacyPolicyURL:   s.PrivacyPolicyURL,
		PreferredSubdomain: s.PreferredSubdomain,
		AdditionalInfo:     s.AdditionalInfo,
		Status:             models.ClaimStatusPending,
	}
}
