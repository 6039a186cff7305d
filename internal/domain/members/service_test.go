package members

import (
	"context"
	"testing"

	"lapizarra/backend/internal/domain/team"
	"lapizarra/backend/internal/domain/user"
)

func TestInviteInput(t *testing.T) {
	tests := []struct {
		name    string
		in      InviteInput
		wantErr bool
	}{
		{"default role", InviteInput{Email: " Coach@Club.ES "}, false},
		{"assistant", InviteInput{Email: "a@b.es", Role: "Assistant"}, false},
		{"owner role", InviteInput{Email: "a@b.es", Role: "owner"}, true},
		{"no email", InviteInput{Role: "viewer"}, true},
		{"bad email", InviteInput{Email: "not-an-email"}, true},
		{"display name form", InviteInput{Email: "Ana <a@b.es>"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Trim()
			err := tt.in.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	in := InviteInput{Email: " Coach@Club.ES "}
	in.Trim()
	if in.Email != "coach@club.es" || in.Role != team.RoleViewer {
		t.Errorf("trimmed = %+v", in)
	}
}

func TestRespond(t *testing.T) {
	inv := Invitation{Email: "ana@club.es", Status: StatusPending}
	if err := inv.respond("ANA@club.es"); err != nil {
		t.Errorf("invitee: %v", err)
	}
	if err := inv.respond("luis@club.es"); !IsErrUnauthorized(err) {
		t.Errorf("other email: %v", err)
	}
	for _, st := range []string{StatusAccepted, StatusDeclined} {
		inv.Status = st
		if err := inv.respond("ana@club.es"); !IsErrConflict(err) {
			t.Errorf("%s: %v", st, err)
		}
	}
}

type fakeTeams map[string]*team.TeamView

func (f fakeTeams) GetTeam(_ context.Context, uid, _ string) (*team.TeamView, error) {
	v, ok := f[uid]
	if !ok {
		return nil, team.ErrUnauthorized
	}
	return v, nil
}

type fakeUsers map[string]*user.Profile

func (f fakeUsers) Get(_ context.Context, uid string) (*user.Profile, error) {
	for _, p := range f {
		if p.UID == uid {
			return p, nil
		}
	}
	return nil, user.ErrNotFound
}

func (f fakeUsers) FindByEmail(_ context.Context, email string) (*user.Profile, error) {
	if p, ok := f[email]; ok {
		return p, nil
	}
	return nil, user.ErrNotFound
}

func TestInviteRejections(t *testing.T) {
	tm := team.Team{ID: "t1", Name: "Cadete B", OwnerID: "coach", MemberIDs: []string{"helper"}}
	teams := fakeTeams{
		"coach":  {Team: tm, Role: team.RoleOwner},
		"helper": {Team: tm, Role: team.RoleAssist},
	}
	users := fakeUsers{
		"coach@club.es":  {UID: "coach", Email: "coach@club.es"},
		"helper@club.es": {UID: "helper", Email: "helper@club.es"},
	}
	s := NewService(nil, teams, users, nil, nil)
	ctx := context.Background()

	if _, err := s.Invite(ctx, "helper", "t1", InviteInput{Email: "new@club.es"}); !IsErrUnauthorized(err) {
		t.Errorf("assistant inviting: %v", err)
	}
	if _, err := s.Invite(ctx, "stranger", "t1", InviteInput{Email: "new@club.es"}); !IsErrUnauthorized(err) {
		t.Errorf("stranger inviting: %v", err)
	}
	if _, err := s.Invite(ctx, "coach", "t1", InviteInput{Email: "coach@club.es"}); !IsErrBadRequest(err) {
		t.Errorf("inviting owner: %v", err)
	}
	if _, err := s.Invite(ctx, "coach", "t1", InviteInput{Email: "helper@club.es"}); !IsErrConflict(err) {
		t.Errorf("inviting member: %v", err)
	}
	if _, err := s.Invite(ctx, "coach", "", InviteInput{Email: "new@club.es"}); !IsErrBadRequest(err) {
		t.Errorf("missing team: %v", err)
	}
}

func TestAnswerNeedsVerifiedEmail(t *testing.T) {
	s := NewService(nil, nil, nil, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		who  Invitee
	}{
		{"no email", Invitee{UID: "u1", EmailVerified: true}},
		{"blank email", Invitee{UID: "u1", Email: " ", EmailVerified: true}},
		{"unverified", Invitee{UID: "u1", Email: "ana@club.es"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Accept(ctx, tt.who, "inv1"); !IsErrUnauthorized(err) {
				t.Errorf("accept: %v", err)
			}
			if _, err := s.Decline(ctx, tt.who, "inv1"); !IsErrUnauthorized(err) {
				t.Errorf("decline: %v", err)
			}
			if _, err := s.ListMine(ctx, tt.who); !IsErrUnauthorized(err) {
				t.Errorf("list: %v", err)
			}
		})
	}

	email, err := Invitee{Email: " Ana@Club.ES ", EmailVerified: true}.email()
	if err != nil || email != "ana@club.es" {
		t.Errorf("verified email = %q, %v", email, err)
	}
}
