package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/jonboulle/clockwork"
)

type fakeAuth struct {
	users map[string]*auth.UserRecord
	set   map[string]map[string]interface{}
}

func (f *fakeAuth) GetUser(_ context.Context, uid string) (*auth.UserRecord, error) {
	rec, ok := f.users[uid]
	if !ok {
		return nil, errors.New("no such user")
	}
	return rec, nil
}

func (f *fakeAuth) SetCustomUserClaims(_ context.Context, uid string, claims map[string]interface{}) error {
	f.set[uid] = claims
	return nil
}

type fakeProfiles map[string]bool

func (f fakeProfiles) SetRole(_ context.Context, uid string, admin bool) error {
	f[uid] = admin
	return nil
}

func newFake() *fakeAuth {
	return &fakeAuth{
		users: map[string]*auth.UserRecord{
			"coach": {
				UserInfo:     &auth.UserInfo{UID: "coach"},
				CustomClaims: map[string]interface{}{"beta": true},
			},
			"boss": {
				UserInfo:     &auth.UserInfo{UID: "boss"},
				CustomClaims: map[string]interface{}{"admin": true},
			},
		},
		set: map[string]map[string]interface{}{},
	}
}

func TestSetAdminClaim(t *testing.T) {
	fa := newFake()
	profiles := fakeProfiles{}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	s := NewService(fa, profiles, clock)
	ctx := context.Background()

	res, err := s.SetAdminClaim(ctx, "boss", "coach", true)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if !res.Admin || res.UID != "coach" {
		t.Errorf("result = %+v", res)
	}
	got := fa.set["coach"]
	if got["admin"] != true || got["beta"] != true {
		t.Errorf("claims = %v", got)
	}
	if got["claimsUpdatedAt"] != clock.Now().Unix() {
		t.Errorf("claimsUpdatedAt = %v", got["claimsUpdatedAt"])
	}
	if !profiles["coach"] {
		t.Error("profile role not mirrored")
	}

	fa.users["coach"].CustomClaims = got
	if _, err := s.SetAdminClaim(ctx, "boss", "coach", false); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, ok := fa.set["coach"]["admin"]; ok {
		t.Errorf("admin claim still present: %v", fa.set["coach"])
	}
	if profiles["coach"] {
		t.Error("profile still admin")
	}
}

func TestRevokeClearsAdminRole(t *testing.T) {
	fa := newFake()
	fa.users["legacy"] = &auth.UserRecord{
		UserInfo:     &auth.UserInfo{UID: "legacy"},
		CustomClaims: map[string]interface{}{"role": "admin", "beta": true},
	}
	fa.users["editor"] = &auth.UserRecord{
		UserInfo:     &auth.UserInfo{UID: "editor"},
		CustomClaims: map[string]interface{}{"role": "editor"},
	}
	s := NewService(fa, nil, nil)
	ctx := context.Background()

	if _, err := s.SetAdminClaim(ctx, "boss", "legacy", false); err != nil {
		t.Fatal(err)
	}
	got := fa.set["legacy"]
	if _, ok := got["role"]; ok {
		t.Errorf("admin role still present: %v", got)
	}
	if got["beta"] != true {
		t.Errorf("other claims dropped: %v", got)
	}

	if _, err := s.SetAdminClaim(ctx, "boss", "editor", false); err != nil {
		t.Fatal(err)
	}
	if fa.set["editor"]["role"] != "editor" {
		t.Errorf("non-admin role changed: %v", fa.set["editor"])
	}
}

func TestSetAdminClaimRejections(t *testing.T) {
	s := NewService(newFake(), nil, nil)
	ctx := context.Background()

	if _, err := s.SetAdminClaim(ctx, "boss", " ", true); !IsErrBadRequest(err) {
		t.Errorf("empty uid: %v", err)
	}
	if _, err := s.SetAdminClaim(ctx, "boss", "boss", false); !IsErrBadRequest(err) {
		t.Errorf("self revoke: %v", err)
	}
	if _, err := s.SetAdminClaim(ctx, "", "ghost", true); err == nil {
		t.Error("unknown user accepted")
	}
}
