package services

import (
	"context"
	"fmt"
	"time"

	"github.com/cppla/perkclaims/models"
	"github.com/cppla/perkclaims/repository"
	"github.com/cppla/perkclaims/utils"
)

const notifyTimeout = 30 * time.Second

// ReviewNotifier is told about every committed review decision.
type ReviewNotifier interface {
	ClaimReviewed(ctx context.Context, claim models.Claim)
}

// NoopNotifier discards notifications.
type NoopNotifier struct{}

func (NoopNotifier) ClaimReviewed(context.Context, models.Claim) {}

// MailNotifier emails the submitter about the decision on their claim.
type MailNotifier struct {
	users  repository.UserRepository
	mailer utils.Mailer
	// Async sends in a background goroutine; tests turn it off.
	Async bool
}

// NewMailNotifier returns an asynchronous MailNotifier.
func NewMailNotifier(users repository.UserRepository, mailer utils.Mailer) *MailNotifier {
	return &MailNotifier{users: users, mailer: mailer, Async: true}
}

func (n *MailNotifier) ClaimReviewed(ctx context.Context, claim models.Claim) {
	if !n.Async {
		n.send(ctx, claim)
		return
	}
	ctx = context.WithoutCancel(ctx)
	go n.send(ctx, claim)
}

func (n *MailNotifier) send(ctx context.Context, claim models.Claim) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	user, err := n.users.GetByID(ctx, claim.UserID)
	if err != nil {
		utils.Sugar.Warnf("review notification skipped claim=%d user=%s: %v", claim.ID, claim.UserID, err)
		return
	}
	if user.Email == "" {
		utils.Sugar.Debugf("review notification skipped claim=%d: no email on file", claim.ID)
		return
	}

	if err := n.mailer.Send(ctx, reviewMessage(user, claim)); err != nil {
		utils.Sugar.Errorf("review notification failed claim=%d: %v", claim.ID, err)
		return
	}
	utils.Sugar.Infof("review notification sent claim=%d status=%s", claim.ID, claim.Status)
}

func reviewMessage(user *models.User, claim models.Claim) utils.MailMessage {
	subject := fmt.Sprintf("Your claim for %s was %s", claim.ProjectName, claim.Status)
	body := fmt.Sprintf("Hi %s,\n\nYour claim #%d for %q (subdomain %q) is now %s.\n",
		displayName(user), claim.ID, claim.ProjectName, claim.PreferredSubdomain, claim.Status)
	if claim.ReviewerNotes != nil {
		body += "\nReviewer notes:\n" + *claim.ReviewerNotes + "\n"
	}
	return utils.MailMessage{
		To:      user.Email,
		ToName:  user.Username,
		Subject: subject,
		Text:    body,
	}
}

func displayName(u *models.User) string {
	if u.Username != "" {
		return u.Username
	}
	return "there"
}
