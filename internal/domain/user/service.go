package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lapizarra/backend/internal/domain/exercise"

	"firebase.google.com/go/v4/auth"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// AuthUpdater is the subset of the Firebase Auth client used to mirror
// profile edits.
type AuthUpdater interface {
	UpdateUser(ctx context.Context, uid string, user *auth.UserToUpdate) (*auth.UserRecord, error)
}

type Exercises interface {
	Get(ctx context.Context, uid string, admin bool, id string) (*exercise.Exercise, error)
	Resolve(ctx context.Context, uid string, admin bool, ids []string) ([]exercise.Exercise, []string, error)
}

type Service struct {
	repo      *Repo
	exercises Exercises
	auth      AuthUpdater
}

func NewService(repo *Repo, exercises Exercises, authClient AuthUpdater) *Service {
	return &Service{repo: repo, exercises: exercises, auth: authClient}
}

func (s *Service) Repo() *Repo { return s.repo }

// newReferralCode draws ReferralCodeLen symbols from a random UUID using an
// alphabet without look-alike characters.
func newReferralCode() string {
	id := uuid.New()
	var b strings.Builder
	for i := 0; i < ReferralCodeLen; i++ {
		b.WriteByte(codeAlphabet[int(id[i])%len(codeAlphabet)])
	}
	return b.String()
}

func (s *Service) uniqueReferralCode(ctx context.Context) (string, error) {
	for i := 0; i < 5; i++ {
		code := newReferralCode()
		_, err := s.repo.FindByReferralCode(ctx, code)
		if IsErrNotFound(err) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("could not allocate a unique referral code")
}

// EnsureProfile creates users/{uid} on first sign-in. It is safe to call on
// every request.
func (s *Service) EnsureProfile(ctx context.Context, uid, email, displayName string) (*Profile, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: uid is required", ErrBadRequest)
	}
	p, err := s.repo.Get(ctx, uid)
	if err == nil {
		return p, nil
	}
	if !IsErrNotFound(err) {
		return nil, err
	}

	code, err := s.uniqueReferralCode(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	fresh := Profile{
		UID:          uid,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		DisplayName:  strings.TrimSpace(displayName),
		Role:         RoleCoach,
		Subscription: Subscription{Tier: TierFree},
		ReferralCode: code,
		Favorites:    []string{},
		FCMTokens:    []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	created, err := s.repo.Create(ctx, fresh)
	if err != nil {
		return nil, err
	}
	if !created {
		return s.repo.Get(ctx, uid)
	}
	log.Info().Str("uid", uid).Msg("profile created")
	return &fresh, nil
}

func (s *Service) GetProfile(ctx context.Context, uid string) (*Profile, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: uid is required", ErrBadRequest)
	}
	return s.repo.Get(ctx, uid)
}

func (s *Service) UpdateProfile(ctx context.Context, uid string, in UpdateProfileInput) (*Profile, error) {
	in.Trim()
	fields := map[string]interface{}{}
	if in.DisplayName != nil {
		if *in.DisplayName == "" || len(*in.DisplayName) > 80 {
			return nil, fmt.Errorf("%w: displayName must be 1-80 characters", ErrBadRequest)
		}
		fields["displayName"] = *in.DisplayName
	}
	if in.PhotoURL != nil {
		if *in.PhotoURL != "" && !strings.HasPrefix(*in.PhotoURL, "https://") {
			return nil, fmt.Errorf("%w: photoURL must be https", ErrBadRequest)
		}
		fields["photoURL"] = *in.PhotoURL
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", ErrBadRequest)
	}
	if err := s.repo.Update(ctx, uid, fields); err != nil {
		return nil, err
	}

	if s.auth != nil {
		upd := &auth.UserToUpdate{}
		if in.DisplayName != nil {
			upd.DisplayName(*in.DisplayName)
		}
		if in.PhotoURL != nil && *in.PhotoURL != "" {
			upd.PhotoURL(*in.PhotoURL)
		}
		if _, err := s.auth.UpdateUser(ctx, uid, upd); err != nil {
			log.Warn().Err(err).Str("uid", uid).Msg("failed to mirror profile to auth")
		}
	}
	return s.repo.Get(ctx, uid)
}

// ToggleFavorite flips the favorite flag for an exercise the user can see.
func (s *Service) ToggleFavorite(ctx context.Context, uid string, admin bool, exerciseID string) (*FavoriteResult, error) {
	exerciseID = strings.TrimSpace(exerciseID)
	if exerciseID == "" {
		return nil, fmt.Errorf("%w: exerciseId is required", ErrBadRequest)
	}
	if _, err := s.exercises.Get(ctx, uid, admin, exerciseID); err != nil {
		if exercise.IsErrNotFound(err) {
			return nil, fmt.Errorf("%w: exercise not found", ErrNotFound)
		}
		return nil, err
	}
	return s.repo.ToggleFavorite(ctx, uid, exerciseID)
}

// ListFavorites resolves favorites to exercises. Ids of deleted exercises
// are pruned from the profile.
func (s *Service) ListFavorites(ctx context.Context, uid string, admin bool) ([]exercise.Exercise, error) {
	p, err := s.repo.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	list, deleted, err := s.exercises.Resolve(ctx, uid, admin, p.Favorites)
	if err != nil {
		return nil, err
	}
	// only deleted exercises are pruned; hidden ones stay favorited
	if len(deleted) > 0 {
		if err := s.repo.RemoveFavorites(ctx, uid, deleted); err != nil {
			log.Warn().Err(err).Str("uid", uid).Msg("failed to prune favorites")
		}
	}
	return list, nil
}

func (s *Service) RegisterDeviceToken(ctx context.Context, uid, token string) error {
	token = strings.TrimSpace(token)
	if token == "" || len(token) > 4096 {
		return fmt.Errorf("%w: invalid device token", ErrBadRequest)
	}
	return s.repo.AddToken(ctx, uid, token)
}

// RedeemReferral links the caller to the owner of code.
func (s *Service) RedeemReferral(ctx context.Context, uid, code string) error {
	code = NormalizeCode(code)
	if len(code) != ReferralCodeLen {
		return fmt.Errorf("%w: invalid referral code", ErrBadRequest)
	}
	referrer, err := s.repo.FindByReferralCode(ctx, code)
	if err != nil {
		if IsErrNotFound(err) {
			return fmt.Errorf("%w: unknown referral code", ErrNotFound)
		}
		return err
	}
	if referrer.UID == uid {
		return fmt.Errorf("%w: you cannot redeem your own code", ErrBadRequest)
	}
	return s.repo.RedeemReferral(ctx, uid, referrer.UID)
}

// SetRole mirrors the admin custom claim on the profile.
func (s *Service) SetRole(ctx context.Context, uid string, admin bool) error {
	role := RoleCoach
	if admin {
		role = RoleAdmin
	}
	return s.repo.Update(ctx, uid, map[string]interface{}{"role": role})
}
