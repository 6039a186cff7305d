package members

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"lapizarra/backend/internal/domain/team"
)

const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusDeclined = "declined"
)

// Invitation asks someone, by email, to join a team with a role.
// pending moves to accepted or declined once; revoking deletes it.
type Invitation struct {
	ID          string     `firestore:"id" json:"id"`
	TeamID      string     `firestore:"teamId" json:"teamId"`
	TeamName    string     `firestore:"teamName" json:"teamName"`
	Email       string     `firestore:"email" json:"email"`
	Role        string     `firestore:"role" json:"role"`
	Status      string     `firestore:"status" json:"status"`
	InvitedBy   string     `firestore:"invitedBy" json:"invitedBy"`
	AcceptedUID string     `firestore:"acceptedUid,omitempty" json:"acceptedUid,omitempty"`
	CreatedAt   time.Time  `firestore:"createdAt" json:"createdAt"`
	RespondedAt *time.Time `firestore:"respondedAt,omitempty" json:"respondedAt,omitempty"`
}

// Invitee is the caller answering an invitation, as read from the ID token.
type Invitee struct {
	UID           string
	Email         string
	EmailVerified bool
}

// email returns the invitee's normalized address. Anyone can register an
// unverified address, so those never match an invitation.
func (i Invitee) email() (string, error) {
	email := NormalizeEmail(i.Email)
	if email == "" {
		return "", fmt.Errorf("%w: account has no email", ErrUnauthorized)
	}
	if !i.EmailVerified {
		return "", fmt.Errorf("%w: verify %s before answering invitations", ErrUnauthorized, email)
	}
	return email, nil
}

// InviteInput represents input for inviting someone to a team
type InviteInput struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (in *InviteInput) Trim() {
	in.Email = NormalizeEmail(in.Email)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	if in.Role == "" {
		in.Role = team.RoleViewer
	}
}

func (in InviteInput) Validate() error {
	if in.Email == "" {
		return fmt.Errorf("%w: email is required", ErrBadRequest)
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return fmt.Errorf("%w: invalid email", ErrBadRequest)
	}
	if !team.IsValidMemberRole(in.Role) {
		return fmt.Errorf("%w: role must be %s or %s", ErrBadRequest, team.RoleAssist, team.RoleViewer)
	}
	return nil
}

func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// respond validates a state change by the invitee.
func (inv Invitation) respond(email string) error {
	if inv.Status != StatusPending {
		return fmt.Errorf("%w: invitation already %s", ErrConflict, inv.Status)
	}
	if NormalizeEmail(email) != inv.Email {
		return fmt.Errorf("%w: invitation is for another email", ErrUnauthorized)
	}
	return nil
}
