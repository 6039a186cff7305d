package stats

import (
	"context"
	"fmt"
	"sort"

	"lapizarra/backend/internal/domain/attendance"
	"lapizarra/backend/internal/domain/match"
	"lapizarra/backend/internal/domain/team"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// formLength is how many finished matches make up the form guide.
const formLength = 5

type Teams interface {
	GetTeam(ctx context.Context, uid, teamID string) (*team.TeamView, error)
	ListPlayers(ctx context.Context, uid, teamID string) ([]team.Player, error)
}

type Attendance interface {
	Summary(ctx context.Context, uid, teamID, from, to string) (*attendance.Summary, error)
}

type Matches interface {
	ListByTeam(ctx context.Context, uid, teamID string, limit int) ([]match.Match, error)
}

type Service struct {
	teams      Teams
	attendance Attendance
	matches    Matches
	clock      clockwork.Clock
}

func NewService(teams Teams, att Attendance, matches Matches, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{teams: teams, attendance: att, matches: matches, clock: clock}
}

// GetTeamStats gets season statistics for a team
func (s *Service) GetTeamStats(ctx context.Context, uid, teamID string) (*TeamStats, error) {
	if teamID == "" {
		return nil, fmt.Errorf("%w: teamId is required", ErrBadRequest)
	}
	view, err := s.teams.GetTeam(ctx, uid, teamID)
	if err != nil {
		return nil, err
	}

	from, to := attendance.MonthRange(s.clock.Now())
	var (
		players []team.Player
		month   *attendance.Summary
		recent  []match.Match
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		players, err = s.teams.ListPlayers(gctx, uid, teamID)
		return err
	})
	g.Go(func() error {
		var err error
		month, err = s.attendance.Summary(gctx, uid, teamID, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.matches.ListByTeam(gctx, uid, teamID, 20)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rec := view.Team.Record
	out := &TeamStats{
		TeamID:         teamID,
		Name:           view.Team.Name,
		Record:         rec,
		GoalDifference: rec.GoalsFor - rec.GoalsAgainst,
		Points:         rec.Wins*3 + rec.Draws,
		WinRate:        percent(rec.Wins, rec.Played),
		Form:           Form(recent, formLength),
		TopScorers:     Leaders(players, func(p team.Player) int { return p.SeasonStats.Goals }, TopN),
		TopAssisters:   Leaders(players, func(p team.Player) int { return p.SeasonStats.Assists }, TopN),
		Attendance: AttendanceStats{
			ThisMonth: monthly(month, from, to),
		},
	}
	for _, p := range players {
		out.Discipline.YellowCards += p.SeasonStats.YellowCards
		out.Discipline.RedCards += p.SeasonStats.RedCards
	}
	return out, nil
}

// GetPlayerStats gets one player's season and attendance
func (s *Service) GetPlayerStats(ctx context.Context, uid, teamID, playerID string) (*PlayerStats, error) {
	if teamID == "" || playerID == "" {
		return nil, fmt.Errorf("%w: teamId and playerId are required", ErrBadRequest)
	}
	players, err := s.teams.ListPlayers(ctx, uid, teamID)
	if err != nil {
		return nil, err
	}
	var player *team.Player
	for i := range players {
		if players[i].ID == playerID {
			player = &players[i]
			break
		}
	}
	if player == nil {
		return nil, fmt.Errorf("%w: player not found", ErrNotFound)
	}

	from, to := attendance.MonthRange(s.clock.Now())
	var season, month *attendance.Summary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		season, err = s.attendance.Summary(gctx, uid, teamID, "", "")
		return err
	})
	g.Go(func() error {
		var err error
		month, err = s.attendance.Summary(gctx, uid, teamID, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ss := player.SeasonStats
	minutes := ss.SecondsPlayed / 60
	out := &PlayerStats{
		Player:          *player,
		MinutesPlayed:   minutes,
		GoalsPerMatch:   ratio(ss.Goals, ss.Matches),
		MinutesPerMatch: ratio(int(minutes), ss.Matches),
	}
	if ps := find(season, playerID); ps != nil {
		out.Attendance = PlayerAttendance{
			Total:   ps.Total,
			Present: ps.Present,
			Late:    ps.Late,
			Absent:  ps.Absent,
			Excused: ps.Excused,
			Rate:    percent(ps.Present+ps.Late, ps.Total),
		}
	} else {
		out.Attendance.Rate = "0"
	}
	out.Attendance.ThisMonth = "0"
	if ps := find(month, playerID); ps != nil {
		out.Attendance.ThisMonth = percent(ps.Present+ps.Late, ps.Total)
	}
	return out, nil
}

func find(sum *attendance.Summary, playerID string) *attendance.PlayerSummary {
	if sum == nil {
		return nil
	}
	for i := range sum.Players {
		if sum.Players[i].PlayerID == playerID {
			return &sum.Players[i]
		}
	}
	return nil
}

func monthly(sum *attendance.Summary, from, to string) MonthlyAttendance {
	out := MonthlyAttendance{From: from, To: to}
	if sum != nil {
		for _, p := range sum.Players {
			out.Total += p.Total
			out.Present += p.Present
			out.Absent += p.Absent
			out.Late += p.Late
			out.Excused += p.Excused
		}
	}
	out.Rate = percent(out.Present+out.Late, out.Total)
	return out
}

// Leaders ranks players by metric, dropping zeros. Ties go to the player
// with fewer matches, then the lower number.
func Leaders(players []team.Player, metric func(team.Player) int, n int) []Leader {
	out := []Leader{}
	for _, p := range players {
		v := metric(p)
		if v <= 0 {
			continue
		}
		out = append(out, Leader{PlayerID: p.ID, Name: p.Name, Number: p.Number, Value: v, Matches: p.SeasonStats.Matches})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		if out[i].Matches != out[j].Matches {
			return out[i].Matches < out[j].Matches
		}
		return out[i].Number < out[j].Number
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Form lists the results of the latest finished matches, newest first.
// matches must be ordered newest first.
func Form(matches []match.Match, n int) []string {
	out := []string{}
	for _, m := range matches {
		if !m.Finished {
			continue
		}
		switch {
		case m.Score.Local > m.Score.Rival:
			out = append(out, "W")
		case m.Score.Local < m.Score.Rival:
			out = append(out, "L")
		default:
			out = append(out, "D")
		}
		if len(out) == n {
			break
		}
	}
	return out
}

func percent(n, total int) string {
	if total == 0 {
		return "0"
	}
	return fmt.Sprintf("%.1f", float64(n)/float64(total)*100)
}

func ratio(n, d int) string {
	if d == 0 {
		return "0"
	}
	return fmt.Sprintf("%.2f", float64(n)/float64(d))
}
