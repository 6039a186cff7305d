package exercise

import (
	"context"
	"fmt"
	"time"

	"lapizarra/backend/internal/media"

	"github.com/rs/zerolog/log"
)

// ResourcePrivate is the plan-limited resource for private exercises.
const ResourcePrivate = "privateExercises"

// Limiter enforces subscription plan quotas.
type Limiter interface {
	CheckPlanLimit(ctx context.Context, uid, resource string) error
	// Remaining returns how many more items uid may create; -1 is unlimited.
	Remaining(ctx context.Context, uid, resource string) (int, error)
}

type Service struct {
	repo   *Repo
	media  *media.Signer
	limits Limiter
}

func NewService(repo *Repo, signer *media.Signer) *Service {
	return &Service{repo: repo, media: signer}
}

func (s *Service) SetLimiter(l Limiter) {
	s.limits = l
}

func (s *Service) Create(ctx context.Context, uid string, admin bool, in Input) (*Exercise, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.Official && !admin {
		return nil, fmt.Errorf("%w: only admins can mark exercises official", ErrUnauthorized)
	}
	if in.Visibility == VisibilityPrivate && s.limits != nil {
		if err := s.limits.CheckPlanLimit(ctx, uid, ResourcePrivate); err != nil {
			return nil, err
		}
	}
	return s.repo.Create(ctx, in.build(uid, time.Now().UTC()))
}

// Get returns the exercise if uid may see it. Hidden exercises read as not
// found.
func (s *Service) Get(ctx context.Context, uid string, admin bool, id string) (*Exercise, error) {
	ex, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanView(*ex, uid, admin) {
		return nil, fmt.Errorf("%w: exercise not found", ErrNotFound)
	}
	return ex, nil
}

// Visible resolves ids to the exercises uid may see, in order, dropping the
// rest.
func (s *Service) Visible(ctx context.Context, uid string, admin bool, ids []string) ([]Exercise, error) {
	visible, _, err := s.Resolve(ctx, uid, admin, ids)
	return visible, err
}

// Resolve loads ids and also reports the ones that were deleted.
func (s *Service) Resolve(ctx context.Context, uid string, admin bool, ids []string) ([]Exercise, []string, error) {
	all, err := s.repo.GetMany(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	visible, missing := SplitVisible(ids, all, uid, admin)
	return visible, missing, nil
}

func (s *Service) List(ctx context.Context, uid string, admin bool, f ListFilter) ([]Exercise, error) {
	f.Normalize()
	if err := f.Authorize(admin); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, uid, f)
}

func (s *Service) Update(ctx context.Context, uid string, admin bool, id string, u UpdateInput) (*Exercise, error) {
	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanEdit(*cur, uid, admin) {
		return nil, fmt.Errorf("%w: only the owner can edit this exercise", ErrUnauthorized)
	}
	if u.Official != nil && *u.Official != cur.Official && !admin {
		return nil, fmt.Errorf("%w: only admins can change official", ErrUnauthorized)
	}

	in := u.apply(*cur)
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.Visibility == VisibilityPrivate && cur.Visibility != VisibilityPrivate && s.limits != nil {
		if err := s.limits.CheckPlanLimit(ctx, cur.OwnerID, ResourcePrivate); err != nil {
			return nil, err
		}
	}

	next := in.build(cur.OwnerID, cur.CreatedAt)
	next.ID = cur.ID
	if err := s.repo.Replace(ctx, next); err != nil {
		return nil, err
	}
	if cur.MediaURL != "" && cur.MediaURL != next.MediaURL {
		s.dropMedia(ctx, cur.MediaURL)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, uid string, admin bool, id string) error {
	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CanEdit(*cur, uid, admin) {
		return fmt.Errorf("%w: only the owner can delete this exercise", ErrUnauthorized)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if cur.MediaURL != "" {
		s.dropMedia(ctx, cur.MediaURL)
	}
	return nil
}

// dropMedia deletes an uploaded file that no longer backs an exercise.
// Failures are logged only.
func (s *Service) dropMedia(ctx context.Context, mediaURL string) {
	obj, ok := s.media.ObjectFromURL(mediaURL)
	if !ok {
		return
	}
	if err := s.media.Delete(ctx, obj); err != nil {
		log.Warn().Err(err).Str("object", obj).Msg("failed to delete exercise media")
	}
}

type UploadInput struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

// CreateUpload signs a PUT URL for a new media file in uid's folder.
func (s *Service) CreateUpload(ctx context.Context, uid string, in UploadInput) (*media.Upload, error) {
	obj, err := media.ObjectPath(uid, in.FileName, in.ContentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return s.media.SignUpload(ctx, obj, in.ContentType, media.DefaultTTL)
}
