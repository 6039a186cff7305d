package team

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"lapizarra/backend/internal/sheet"

	"github.com/rs/zerolog/log"
)

// Limiter enforces subscription plan quotas.
type Limiter interface {
	CheckPlanLimit(ctx context.Context, uid, resource string) error
}

type Service struct {
	repo   *Repo
	limits Limiter
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo}
}

// SetLimiter wires plan limits after billing is constructed.
func (s *Service) SetLimiter(l Limiter) {
	s.limits = l
}

func (s *Service) access(ctx context.Context, teamID, uid string, edit bool) (*Team, string, error) {
	if teamID == "" {
		return nil, "", fmt.Errorf("%w: teamId is required", ErrBadRequest)
	}
	t, role, err := s.repo.Access(ctx, teamID, uid)
	if err != nil {
		return nil, "", err
	}
	if role == "" {
		return nil, "", fmt.Errorf("%w: not a member of this team", ErrUnauthorized)
	}
	if edit && !CanEdit(role) {
		return nil, "", fmt.Errorf("%w: read-only access to this team", ErrUnauthorized)
	}
	return t, role, nil
}

func (s *Service) CreateTeam(ctx context.Context, uid string, in CreateTeamInput) (*Team, error) {
	in.Trim()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if s.limits != nil {
		if err := s.limits.CheckPlanLimit(ctx, uid, "teams"); err != nil {
			return nil, err
		}
	}
	now := time.Now().UTC()
	return s.repo.CreateTeam(ctx, Team{
		Name:      in.Name,
		Category:  in.Category,
		Season:    in.Season,
		OwnerID:   uid,
		MemberIDs: []string{},
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// TeamView is a team plus the caller's role on it.
type TeamView struct {
	Team
	Role string `json:"role"`
}

func (s *Service) ListMyTeams(ctx context.Context, uid string) ([]TeamView, error) {
	teams, err := s.repo.ListForUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	out := make([]TeamView, 0, len(teams))
	for _, t := range teams {
		role := RoleOwner
		if t.OwnerID != uid {
			role = RoleViewer
			if m, err := s.repo.GetMember(ctx, t.ID, uid); err == nil {
				role = m.Role
			}
		}
		out = append(out, TeamView{Team: t, Role: role})
	}
	return out, nil
}

func (s *Service) GetTeam(ctx context.Context, uid, teamID string) (*TeamView, error) {
	t, role, err := s.access(ctx, teamID, uid, false)
	if err != nil {
		return nil, err
	}
	return &TeamView{Team: *t, Role: role}, nil
}

// Role returns uid's role on teamID, failing with ErrUnauthorized when uid
// has none.
func (s *Service) Role(ctx context.Context, teamID, uid string) (string, error) {
	_, role, err := s.access(ctx, teamID, uid, false)
	return role, err
}

func (s *Service) UpdateTeam(ctx context.Context, uid, teamID string, in UpdateTeamInput) (*Team, error) {
	if _, _, err := s.access(ctx, teamID, uid, true); err != nil {
		return nil, err
	}
	in.Trim()
	updates := map[string]interface{}{}
	if in.Name != nil {
		if *in.Name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrBadRequest)
		}
		updates["name"] = *in.Name
	}
	if in.Category != nil {
		if !IsValidCategory(*in.Category) {
			return nil, fmt.Errorf("%w: invalid category", ErrBadRequest)
		}
		updates["category"] = *in.Category
	}
	if in.Season != nil {
		updates["season"] = *in.Season
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", ErrBadRequest)
	}
	if err := s.repo.UpdateTeam(ctx, teamID, updates); err != nil {
		return nil, err
	}
	return s.repo.GetTeam(ctx, teamID)
}

func (s *Service) DeleteTeam(ctx context.Context, uid, teamID string) error {
	_, role, err := s.access(ctx, teamID, uid, false)
	if err != nil {
		return err
	}
	if role != RoleOwner {
		return fmt.Errorf("%w: only the owner can delete a team", ErrUnauthorized)
	}
	return s.repo.DeleteTeam(ctx, teamID)
}

// --- roster ---

func (s *Service) ListPlayers(ctx context.Context, uid, teamID string) ([]Player, error) {
	if _, _, err := s.access(ctx, teamID, uid, false); err != nil {
		return nil, err
	}
	return s.repo.ListPlayers(ctx, teamID)
}

func newPlayer(in PlayerInput, now time.Time) Player {
	return Player{
		Name:      in.Name,
		Number:    in.Number,
		Position:  in.Position,
		BirthYear: in.BirthYear,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Service) AddPlayer(ctx context.Context, uid, teamID string, in PlayerInput) (*Player, error) {
	if _, _, err := s.access(ctx, teamID, uid, true); err != nil {
		return nil, err
	}
	in.Trim()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	out, err := s.repo.AddPlayers(ctx, teamID, []Player{newPlayer(in, time.Now().UTC())})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func (s *Service) UpdatePlayer(ctx context.Context, uid, teamID, playerID string, in UpdatePlayerInput) (*Player, error) {
	if _, _, err := s.access(ctx, teamID, uid, true); err != nil {
		return nil, err
	}
	cur, err := s.repo.GetPlayer(ctx, teamID, playerID)
	if err != nil {
		return nil, err
	}

	merged := PlayerInput{Name: cur.Name, Number: cur.Number, Position: cur.Position, BirthYear: cur.BirthYear}
	if in.Name != nil {
		merged.Name = *in.Name
	}
	if in.Number != nil {
		merged.Number = *in.Number
	}
	if in.Position != nil {
		merged.Position = *in.Position
	}
	if in.BirthYear != nil {
		merged.BirthYear = *in.BirthYear
	}
	merged.Trim()
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"name":      merged.Name,
		"position":  merged.Position,
		"birthYear": merged.BirthYear,
	}
	if merged.Number != cur.Number {
		updates["number"] = merged.Number
	}
	if in.Active != nil {
		updates["active"] = *in.Active
	}
	if err := s.repo.UpdatePlayer(ctx, teamID, playerID, updates); err != nil {
		return nil, err
	}
	return s.repo.GetPlayer(ctx, teamID, playerID)
}

func (s *Service) RemovePlayer(ctx context.Context, uid, teamID, playerID string) error {
	if _, _, err := s.access(ctx, teamID, uid, true); err != nil {
		return err
	}
	if _, err := s.repo.GetPlayer(ctx, teamID, playerID); err != nil {
		return err
	}
	return s.repo.DeletePlayer(ctx, teamID, playerID)
}

type ImportResult struct {
	Imported []Player        `json:"imported"`
	Errors   []sheet.RowError `json:"errors"`
}

// ParsePlayerRows validates spreadsheet rows. Rows repeating an earlier
// number in the same file are rejected.
func ParsePlayerRows(rows []sheet.Row) ([]PlayerInput, []sheet.RowError) {
	valid := []PlayerInput{}
	errs := []sheet.RowError{}
	seen := map[int]int{}
	for _, row := range rows {
		in := PlayerInput{
			Name:     firstOf(row, "name", "nombre"),
			Position: firstOf(row, "position", "posicion"),
		}
		numRaw := firstOf(row, "number", "dorsal")
		n, err := strconv.Atoi(numRaw)
		if err != nil {
			errs = append(errs, sheet.RowError{Line: row.Line, Reason: fmt.Sprintf("invalid number %q", numRaw)})
			continue
		}
		in.Number = n
		if by := firstOf(row, "birthYear", "birth year", "ano"); by != "" {
			y, err := strconv.Atoi(by)
			if err != nil {
				errs = append(errs, sheet.RowError{Line: row.Line, Reason: fmt.Sprintf("invalid birthYear %q", by)})
				continue
			}
			in.BirthYear = y
		}
		in.Trim()
		if err := in.Validate(); err != nil {
			errs = append(errs, sheet.RowError{Line: row.Line, Reason: err.Error()})
			continue
		}
		if prev, dup := seen[in.Number]; dup {
			errs = append(errs, sheet.RowError{Line: row.Line, Reason: fmt.Sprintf("number %d repeats row %d", in.Number, prev)})
			continue
		}
		seen[in.Number] = row.Line
		valid = append(valid, in)
	}
	return valid, errs
}

func firstOf(row sheet.Row, keys ...string) string {
	for _, k := range keys {
		if v := row.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// ImportPlayers adds every valid row of an .xlsx roster. The roster-wide
// checks (size, numbers already in use) apply to the valid rows as a whole.
func (s *Service) ImportPlayers(ctx context.Context, uid, teamID string, r io.Reader) (*ImportResult, error) {
	if _, _, err := s.access(ctx, teamID, uid, true); err != nil {
		return nil, err
	}
	rows, err := sheet.ReadRows(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	inputs, rowErrs := ParsePlayerRows(rows)
	res := &ImportResult{Imported: []Player{}, Errors: rowErrs}
	if len(inputs) == 0 {
		return res, nil
	}

	now := time.Now().UTC()
	players := make([]Player, len(inputs))
	for i, in := range inputs {
		players[i] = newPlayer(in, now)
	}
	added, err := s.repo.AddPlayers(ctx, teamID, players)
	if err != nil {
		return nil, err
	}
	res.Imported = added
	log.Info().Str("teamId", teamID).Int("imported", len(added)).Int("rejected", len(rowErrs)).Msg("roster import")
	return res, nil
}

// --- members ---

func (s *Service) ListMembers(ctx context.Context, uid, teamID string) ([]Member, error) {
	if _, _, err := s.access(ctx, teamID, uid, false); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, teamID)
}

// RemoveMember lets the owner drop a member, or a member leave.
func (s *Service) RemoveMember(ctx context.Context, uid, teamID, memberUID string) error {
	t, role, err := s.access(ctx, teamID, uid, false)
	if err != nil {
		return err
	}
	if role != RoleOwner && uid != memberUID {
		return fmt.Errorf("%w: only the owner can remove members", ErrUnauthorized)
	}
	if memberUID == t.OwnerID {
		return fmt.Errorf("%w: the owner cannot be removed", ErrBadRequest)
	}
	return s.repo.RemoveMember(ctx, teamID, memberUID)
}
