package members

import (
	"context"
	"fmt"

	"lapizarra/backend/internal/domain/notifications"
	"lapizarra/backend/internal/domain/team"
	"lapizarra/backend/internal/domain/user"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type Teams interface {
	GetTeam(ctx context.Context, uid, teamID string) (*team.TeamView, error)
}

type Users interface {
	Get(ctx context.Context, uid string) (*user.Profile, error)
	FindByEmail(ctx context.Context, email string) (*user.Profile, error)
}

type Notifier interface {
	Notify(ctx context.Context, senderUID string, input notifications.CreateNotificationInput) (string, error)
}

type Service struct {
	repo     *Repo
	teams    Teams
	users    Users
	notifier Notifier
	clock    clockwork.Clock
}

func NewService(repo *Repo, teams Teams, users Users, notifier Notifier, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{repo: repo, teams: teams, users: users, notifier: notifier, clock: clock}
}

func (s *Service) ownedTeam(ctx context.Context, uid, teamID string) (*team.TeamView, error) {
	if teamID == "" {
		return nil, fmt.Errorf("%w: teamId is required", ErrBadRequest)
	}
	view, err := s.teams.GetTeam(ctx, uid, teamID)
	if err != nil {
		if team.IsErrNotFound(err) {
			return nil, fmt.Errorf("%w: team not found", ErrNotFound)
		}
		if team.IsErrUnauthorized(err) {
			return nil, fmt.Errorf("%w: not a member of this team", ErrUnauthorized)
		}
		return nil, err
	}
	if view.Role != team.RoleOwner {
		return nil, fmt.Errorf("%w: only the team owner can manage invitations", ErrUnauthorized)
	}
	return view, nil
}

func (s *Service) notify(ctx context.Context, senderUID string, input notifications.CreateNotificationInput) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, senderUID, input); err != nil {
		log.Warn().Err(err).Str("target", input.TargetUID).Str("type", input.Type).Msg("notification failed")
	}
}

// Invite creates a pending invitation. If the email already belongs to a
// user, they are notified right away.
func (s *Service) Invite(ctx context.Context, uid, teamID string, in InviteInput) (*Invitation, error) {
	in.Trim()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	view, err := s.ownedTeam(ctx, uid, teamID)
	if err != nil {
		return nil, err
	}

	invitee, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil && !user.IsErrNotFound(err) {
		return nil, err
	}
	if invitee != nil {
		if invitee.UID == view.OwnerID {
			return nil, fmt.Errorf("%w: cannot invite the team owner", ErrBadRequest)
		}
		for _, m := range view.MemberIDs {
			if m == invitee.UID {
				return nil, fmt.Errorf("%w: %s is already a member", ErrConflict, in.Email)
			}
		}
	}

	inv, err := s.repo.CreatePending(ctx, Invitation{
		TeamID:    teamID,
		TeamName:  view.Name,
		Email:     in.Email,
		Role:      in.Role,
		InvitedBy: uid,
		CreatedAt: s.clock.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("team", teamID).Str("invitation", inv.ID).Str("role", inv.Role).Msg("invitation created")

	if invitee != nil {
		s.notify(ctx, uid, notifications.CreateNotificationInput{
			TargetUID: invitee.UID,
			Title:     "Invitación a " + view.Name,
			Body:      fmt.Sprintf("Te han invitado a unirte a %s como %s", view.Name, roleLabel(inv.Role)),
			Type:      notifications.TypeInvitation,
			TeamID:    teamID,
			Data:      map[string]string{"invitationId": inv.ID},
		})
	}
	return inv, nil
}

func roleLabel(role string) string {
	if role == team.RoleAssist {
		return "ayudante"
	}
	return "observador"
}

// ListMine lists pending invitations addressed to the caller's verified email.
func (s *Service) ListMine(ctx context.Context, who Invitee) ([]Invitation, error) {
	email, err := who.email()
	if err != nil {
		return nil, err
	}
	return s.repo.ListByEmail(ctx, email, StatusPending)
}

func (s *Service) ListForTeam(ctx context.Context, uid, teamID string) ([]Invitation, error) {
	if _, err := s.ownedTeam(ctx, uid, teamID); err != nil {
		return nil, err
	}
	return s.repo.ListByTeam(ctx, teamID)
}

// Accept joins the caller to the invitation's team. Only the invited email
// may accept.
func (s *Service) Accept(ctx context.Context, who Invitee, invitationID string) (*Invitation, error) {
	email, err := who.email()
	if err != nil {
		return nil, err
	}
	uid := who.UID
	displayName := ""
	if p, err := s.users.Get(ctx, uid); err == nil {
		displayName = p.DisplayName
	}

	inv, err := s.repo.Accept(ctx, invitationID, uid, email, displayName, s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	log.Info().Str("team", inv.TeamID).Str("uid", uid).Msg("invitation accepted")

	name := displayName
	if name == "" {
		name = inv.Email
	}
	s.notify(ctx, uid, notifications.CreateNotificationInput{
		TargetUID: inv.InvitedBy,
		Title:     "Invitación aceptada",
		Body:      fmt.Sprintf("%s se ha unido a %s", name, inv.TeamName),
		Type:      notifications.TypeInvitationAccepted,
		TeamID:    inv.TeamID,
		Data:      map[string]string{"invitationId": inv.ID, "uid": uid},
	})
	return inv, nil
}

func (s *Service) Decline(ctx context.Context, who Invitee, invitationID string) (*Invitation, error) {
	email, err := who.email()
	if err != nil {
		return nil, err
	}
	return s.repo.Decline(ctx, invitationID, email, s.clock.Now().UTC())
}

// Revoke lets the team owner withdraw a pending invitation.
func (s *Service) Revoke(ctx context.Context, uid, invitationID string) error {
	inv, err := s.repo.Get(ctx, invitationID)
	if err != nil {
		return err
	}
	if _, err := s.ownedTeam(ctx, uid, inv.TeamID); err != nil {
		return err
	}
	return s.repo.DeletePending(ctx, invitationID)
}
