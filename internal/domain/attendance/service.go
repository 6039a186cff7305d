package attendance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"lapizarra/backend/internal/domain/team"
	"lapizarra/backend/internal/utils"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Teams is the roster and access view attendance needs.
type Teams interface {
	Role(ctx context.Context, teamID, uid string) (string, error)
	ListPlayers(ctx context.Context, uid, teamID string) ([]team.Player, error)
}

type Service struct {
	repo  *Repo
	teams Teams
	clock clockwork.Clock
}

func NewService(repo *Repo, teams Teams, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{repo: repo, teams: teams, clock: clock}
}

func (s *Service) authorize(ctx context.Context, uid, teamID string, edit bool) error {
	if teamID == "" {
		return fmt.Errorf("%w: teamId is required", ErrBadRequest)
	}
	role, err := s.teams.Role(ctx, teamID, uid)
	if err != nil {
		if team.IsErrNotFound(err) {
			return fmt.Errorf("%w: team not found", ErrNotFound)
		}
		return fmt.Errorf("%w: not a member of this team", ErrUnauthorized)
	}
	if edit && !team.CanEdit(role) {
		return fmt.Errorf("%w: staff permission required", ErrUnauthorized)
	}
	return nil
}

func (s *Service) roster(ctx context.Context, uid, teamID string) (map[string]team.Player, error) {
	players, err := s.teams.ListPlayers(ctx, uid, teamID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]team.Player, len(players))
	for _, p := range players {
		out[p.ID] = p
	}
	return out, nil
}

func validateRecord(date, playerID, status string) error {
	if _, err := utils.ParseDate(date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrBadRequest)
	}
	if playerID == "" {
		return fmt.Errorf("%w: playerId is required", ErrBadRequest)
	}
	if !IsValidStatus(status) {
		return fmt.Errorf("%w: status must be one of: present, absent, late, excused", ErrBadRequest)
	}
	return nil
}

// Record creates or overwrites one player's attendance for a date
func (s *Service) Record(ctx context.Context, uid, teamID string, input RecordAttendanceInput) (*Attendance, error) {
	input.Trim()
	if err := validateRecord(input.Date, input.PlayerID, input.Status); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, uid, teamID, true); err != nil {
		return nil, err
	}
	players, err := s.roster(ctx, uid, teamID)
	if err != nil {
		return nil, err
	}
	if _, ok := players[input.PlayerID]; !ok {
		return nil, fmt.Errorf("%w: player %s is not on the roster", ErrBadRequest, input.PlayerID)
	}

	return s.repo.Upsert(ctx, Attendance{
		TeamID:     teamID,
		Date:       input.Date,
		PlayerID:   input.PlayerID,
		Status:     AttendanceStatus(input.Status),
		Notes:      input.Notes,
		RecordedBy: uid,
		UpdatedAt:  s.clock.Now().UTC(),
	})
}

// BulkRecord writes every record for one date in a single batch; any invalid
// record rejects the whole request.
func (s *Service) BulkRecord(ctx context.Context, uid, teamID string, input BulkAttendanceInput) ([]Attendance, error) {
	input.Trim()
	if len(input.Records) == 0 {
		return nil, fmt.Errorf("%w: records[] is required", ErrBadRequest)
	}
	if err := s.authorize(ctx, uid, teamID, true); err != nil {
		return nil, err
	}
	players, err := s.roster(ctx, uid, teamID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	seen := map[string]bool{}
	out := make([]Attendance, 0, len(input.Records))
	for _, rec := range input.Records {
		if err := validateRecord(input.Date, rec.PlayerID, rec.Status); err != nil {
			return nil, err
		}
		if _, ok := players[rec.PlayerID]; !ok {
			return nil, fmt.Errorf("%w: player %s is not on the roster", ErrBadRequest, rec.PlayerID)
		}
		if seen[rec.PlayerID] {
			return nil, fmt.Errorf("%w: player %s appears twice", ErrBadRequest, rec.PlayerID)
		}
		seen[rec.PlayerID] = true
		out = append(out, Attendance{
			ID:         DocID(input.Date, rec.PlayerID),
			TeamID:     teamID,
			Date:       input.Date,
			PlayerID:   rec.PlayerID,
			Status:     AttendanceStatus(rec.Status),
			Notes:      rec.Notes,
			RecordedBy: uid,
			UpdatedAt:  now,
		})
	}

	if err := s.repo.BulkUpsert(ctx, teamID, out); err != nil {
		return nil, err
	}
	log.Info().Str("team", teamID).Str("date", input.Date).Int("records", len(out)).Msg("attendance recorded")
	return out, nil
}

func (s *Service) Delete(ctx context.Context, uid, teamID, id string) error {
	if err := s.authorize(ctx, uid, teamID, true); err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, teamID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, teamID, id)
}

func validateRange(input ListAttendanceInput) error {
	for _, d := range []string{input.Date, input.From, input.To} {
		if d == "" {
			continue
		}
		if _, err := utils.ParseDate(d); err != nil {
			return fmt.Errorf("%w: dates must be YYYY-MM-DD", ErrBadRequest)
		}
	}
	if input.From != "" && input.To != "" && input.From > input.To {
		return fmt.Errorf("%w: from must not be after to", ErrBadRequest)
	}
	return nil
}

// List lists attendance records
func (s *Service) List(ctx context.Context, uid, teamID string, input ListAttendanceInput) ([]Attendance, error) {
	if err := validateRange(input); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, uid, teamID, false); err != nil {
		return nil, err
	}
	if input.Limit <= 0 || input.Limit > 500 {
		input.Limit = 100
	}
	return s.repo.List(ctx, teamID, input)
}

// Summary counts statuses per roster player between from and to (either may
// be empty).
func (s *Service) Summary(ctx context.Context, uid, teamID, from, to string) (*Summary, error) {
	input := ListAttendanceInput{From: from, To: to}
	if err := validateRange(input); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, uid, teamID, false); err != nil {
		return nil, err
	}
	players, err := s.teams.ListPlayers(ctx, uid, teamID)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.List(ctx, teamID, input)
	if err != nil {
		return nil, err
	}
	sum := Summarize(players, records)
	sum.TeamID = teamID
	sum.From = from
	sum.To = to
	return sum, nil
}

// MonthRange returns the first and last date of t's month.
func MonthRange(t time.Time) (from, to string) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1)
	return first.Format("2006-01-02"), last.Format("2006-01-02")
}

// Summarize folds records into per-player counts. Records for players no
// longer on the roster still count towards the team rate.
func Summarize(players []team.Player, records []Attendance) *Summary {
	byID := make(map[string]*PlayerSummary, len(players))
	out := make([]PlayerSummary, len(players))
	for i, p := range players {
		out[i] = PlayerSummary{PlayerID: p.ID, Name: p.Name, Number: p.Number}
		byID[p.ID] = &out[i]
	}

	var teamTotal PlayerSummary
	for _, rec := range records {
		teamTotal.add(rec.Status)
		if ps, ok := byID[rec.PlayerID]; ok {
			ps.add(rec.Status)
		}
	}
	for i := range out {
		out[i].Rate = Attended(out[i].Present, out[i].Late, out[i].Total)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })

	return &Summary{
		Players: out,
		Rate:    Attended(teamTotal.Present, teamTotal.Late, teamTotal.Total),
	}
}
