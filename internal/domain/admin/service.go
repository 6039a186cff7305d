package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var (
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("not found")
)

func IsErrBadRequest(err error) bool { return errors.Is(err, ErrBadRequest) }
func IsErrNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }

// ClaimsClient is the subset of *auth.Client used to manage custom claims.
type ClaimsClient interface {
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
	SetCustomUserClaims(ctx context.Context, uid string, customClaims map[string]interface{}) error
}

// Profiles mirrors the claim on the Firestore profile.
type Profiles interface {
	SetRole(ctx context.Context, uid string, admin bool) error
}

type ClaimResult struct {
	UID   string `json:"uid"`
	Admin bool   `json:"admin"`
}

type Service struct {
	auth     ClaimsClient
	profiles Profiles
	clock    clockwork.Clock
}

func NewService(authClient ClaimsClient, profiles Profiles, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{auth: authClient, profiles: profiles, clock: clock}
}

// SetAdminClaim grants or revokes the admin custom claim on target, keeping
// any other claims, and mirrors the role on the profile. callerUID is empty
// when run from the command line.
func (s *Service) SetAdminClaim(ctx context.Context, callerUID, targetUID string, admin bool) (*ClaimResult, error) {
	targetUID = strings.TrimSpace(targetUID)
	if targetUID == "" {
		return nil, fmt.Errorf("%w: uid is required", ErrBadRequest)
	}
	if !admin && callerUID == targetUID {
		return nil, fmt.Errorf("%w: you cannot revoke your own admin claim", ErrBadRequest)
	}

	rec, err := s.auth.GetUser(ctx, targetUID)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return nil, fmt.Errorf("%w: user %s not found", ErrNotFound, targetUID)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	claims := map[string]interface{}{}
	for k, v := range rec.CustomClaims {
		claims[k] = v
	}
	if admin {
		claims["admin"] = true
	} else {
		delete(claims, "admin")
		if role, _ := claims["role"].(string); role == "admin" {
			delete(claims, "role")
		}
	}
	claims["claimsUpdatedAt"] = s.clock.Now().Unix()

	if err := s.auth.SetCustomUserClaims(ctx, targetUID, claims); err != nil {
		return nil, fmt.Errorf("failed to set claims: %w", err)
	}

	if s.profiles != nil {
		if err := s.profiles.SetRole(ctx, targetUID, admin); err != nil {
			log.Warn().Err(err).Str("uid", targetUID).Msg("claim set but profile role not mirrored")
		}
	}

	log.Info().Str("by", callerUID).Str("uid", targetUID).Bool("admin", admin).Msg("admin claim updated")
	return &ClaimResult{UID: targetUID, Admin: admin}, nil
}
