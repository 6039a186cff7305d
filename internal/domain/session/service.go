package session

import (
	"context"
	"fmt"

	"lapizarra/backend/internal/domain/exercise"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ResourceSessions is the plan-limited resource name.
const ResourceSessions = "sessions"

type Exercises interface {
	Visible(ctx context.Context, uid string, admin bool, ids []string) ([]exercise.Exercise, error)
}

// Teams resolves a caller's role on a team; an error means no access.
type Teams interface {
	Role(ctx context.Context, teamID, uid string) (string, error)
}

type Limiter interface {
	CheckPlanLimit(ctx context.Context, uid, resource string) error
}

type Service struct {
	repo      *Repo
	exercises Exercises
	teams     Teams
	limits    Limiter
	clock     clockwork.Clock
}

func NewService(repo *Repo, exercises Exercises, teams Teams, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{repo: repo, exercises: exercises, teams: teams, clock: clock}
}

// SetLimiter sets the plan limiter for session quotas
func (s *Service) SetLimiter(l Limiter) {
	s.limits = l
}

// resolve checks every referenced exercise is visible to uid and returns the
// session's total duration.
func (s *Service) resolve(ctx context.Context, uid string, admin bool, p Phases) (int, error) {
	ids := p.IDs()
	if len(ids) == 0 {
		return 0, nil
	}
	visible, err := s.exercises.Visible(ctx, uid, admin, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to load exercises: %w", err)
	}
	durations := make(map[string]int, len(visible))
	for _, ex := range visible {
		durations[ex.ID] = ex.DurationMinutes
	}
	for _, id := range ids {
		if _, ok := durations[id]; !ok {
			return 0, fmt.Errorf("%w: exercise %s not found", ErrBadRequest, id)
		}
	}
	return p.TotalMinutes(durations), nil
}

func (s *Service) checkTeam(ctx context.Context, uid, teamID string) error {
	if teamID == "" || s.teams == nil {
		return nil
	}
	if _, err := s.teams.Role(ctx, teamID, uid); err != nil {
		return fmt.Errorf("%w: no access to team %s", ErrUnauthorized, teamID)
	}
	return nil
}

func (s *Service) checkLimit(ctx context.Context, uid string) error {
	if s.limits == nil {
		return nil
	}
	return s.limits.CheckPlanLimit(ctx, uid, ResourceSessions)
}

func (s *Service) Create(ctx context.Context, uid string, admin bool, in CreateSessionInput) (*Session, error) {
	in.Trim()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkTeam(ctx, uid, in.TeamID); err != nil {
		return nil, err
	}
	if err := s.checkLimit(ctx, uid); err != nil {
		return nil, err
	}
	total, err := s.resolve(ctx, uid, admin, in.Phases)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	return s.repo.Create(ctx, Session{
		Title:        in.Title,
		Date:         in.Date,
		TeamID:       in.TeamID,
		OwnerID:      uid,
		Notes:        in.Notes,
		Phases:       in.Phases,
		TotalMinutes: total,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

// Get returns a session to its owner or to any member of its team.
func (s *Service) Get(ctx context.Context, uid, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: sessionId is required", ErrBadRequest)
	}
	sess, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.OwnerID == uid {
		return sess, nil
	}
	if sess.TeamID != "" && s.checkTeam(ctx, uid, sess.TeamID) == nil {
		return sess, nil
	}
	return nil, fmt.Errorf("%w: session not found", ErrNotFound)
}

func (s *Service) owned(ctx context.Context, uid, sessionID string) (*Session, error) {
	sess, err := s.Get(ctx, uid, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != uid {
		return nil, fmt.Errorf("%w: only the owner can change this session", ErrUnauthorized)
	}
	return sess, nil
}

func (s *Service) Update(ctx context.Context, uid string, admin bool, sessionID string, in UpdateSessionInput) (*Session, error) {
	if _, err := s.owned(ctx, uid, sessionID); err != nil {
		return nil, err
	}
	in.Trim()

	updates := map[string]interface{}{
		"updatedAt": s.clock.Now().UTC(),
	}
	if in.Title != nil {
		if *in.Title == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", ErrBadRequest)
		}
		updates["title"] = *in.Title
	}
	if in.Date != nil {
		if !isValidDate(*in.Date) {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrBadRequest)
		}
		updates["date"] = *in.Date
	}
	if in.TeamID != nil {
		if err := s.checkTeam(ctx, uid, *in.TeamID); err != nil {
			return nil, err
		}
		updates["teamId"] = *in.TeamID
	}
	if in.Notes != nil {
		updates["notes"] = *in.Notes
	}
	if in.Phases != nil {
		if err := in.Phases.validate(); err != nil {
			return nil, err
		}
		total, err := s.resolve(ctx, uid, admin, *in.Phases)
		if err != nil {
			return nil, err
		}
		// phases replace as a whole
		updates["phases"] = map[string]interface{}{
			"inicial":   in.Phases.Inicial,
			"principal": in.Phases.Principal,
			"final":     in.Phases.Final,
		}
		updates["totalMinutes"] = total
	}

	return s.repo.Update(ctx, sessionID, updates)
}

func (s *Service) Delete(ctx context.Context, uid, sessionID string) error {
	if _, err := s.owned(ctx, uid, sessionID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, sessionID)
}

func (s *Service) List(ctx context.Context, uid string, in ListSessionsInput) ([]Session, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, uid, in)
}

// DuplicateInput optionally moves the copy to another date.
type DuplicateInput struct {
	Date string `json:"date,omitempty"`
}

// Duplicate copies a readable session into the caller's plan. Exercises
// that are gone or no longer visible are dropped from the copy.
func (s *Service) Duplicate(ctx context.Context, uid string, admin bool, sessionID string, in DuplicateInput) (*Session, error) {
	src, err := s.Get(ctx, uid, sessionID)
	if err != nil {
		return nil, err
	}
	date := src.Date
	if in.Date != "" {
		if !isValidDate(in.Date) {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrBadRequest)
		}
		date = in.Date
	}
	if err := s.checkLimit(ctx, uid); err != nil {
		return nil, err
	}

	phases, total, err := s.prune(ctx, uid, admin, src.Phases)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	copied := Session{
		Title:        src.Title + " (copia)",
		Date:         date,
		OwnerID:      uid,
		Notes:        src.Notes,
		Phases:       phases,
		TotalMinutes: total,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if src.OwnerID == uid {
		copied.TeamID = src.TeamID
	}
	out, err := s.repo.Create(ctx, copied)
	if err != nil {
		return nil, err
	}
	log.Info().Str("uid", uid).Str("source", sessionID).Str("session", out.ID).Msg("session duplicated")
	return out, nil
}

func (s *Service) prune(ctx context.Context, uid string, admin bool, p Phases) (Phases, int, error) {
	ids := p.IDs()
	if len(ids) == 0 {
		return p, 0, nil
	}
	visible, err := s.exercises.Visible(ctx, uid, admin, ids)
	if err != nil {
		return Phases{}, 0, fmt.Errorf("failed to load exercises: %w", err)
	}
	durations := make(map[string]int, len(visible))
	for _, ex := range visible {
		durations[ex.ID] = ex.DurationMinutes
	}
	keep := func(list []string) []string {
		out := make([]string, 0, len(list))
		for _, id := range list {
			if _, ok := durations[id]; ok {
				out = append(out, id)
			}
		}
		return out
	}
	out := Phases{Inicial: keep(p.Inicial), Principal: keep(p.Principal), Final: keep(p.Final)}
	return out, out.TotalMinutes(durations), nil
}
