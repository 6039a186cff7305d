package stats

import (
	"context"
	"testing"
	"time"

	"lapizarra/backend/internal/domain/attendance"
	"lapizarra/backend/internal/domain/match"
	"lapizarra/backend/internal/domain/team"

	"github.com/jonboulle/clockwork"
)

type fakeTeams struct {
	team    team.Team
	players []team.Player
}

func (f fakeTeams) GetTeam(context.Context, string, string) (*team.TeamView, error) {
	return &team.TeamView{Team: f.team, Role: team.RoleOwner}, nil
}

func (f fakeTeams) ListPlayers(context.Context, string, string) ([]team.Player, error) {
	return f.players, nil
}

type fakeAttendance struct {
	month  []attendance.Attendance
	season []attendance.Attendance
	teams  fakeTeams
}

func (f fakeAttendance) Summary(_ context.Context, _, _, from, to string) (*attendance.Summary, error) {
	if from == "" && to == "" {
		return attendance.Summarize(f.teams.players, f.season), nil
	}
	if from != "2026-03-01" || to != "2026-03-31" {
		return nil, team.ErrBadRequest
	}
	return attendance.Summarize(f.teams.players, f.month), nil
}

type fakeMatches []match.Match

func (f fakeMatches) ListByTeam(context.Context, string, string, int) ([]match.Match, error) {
	return f, nil
}

func finished(local, rival int) match.Match {
	var m match.Match
	m.Finished = true
	m.Score = match.Score{Local: local, Rival: rival}
	return m
}

func fixture() (fakeTeams, fakeAttendance, fakeMatches) {
	teams := fakeTeams{
		team: team.Team{ID: "t1", Name: "Alevín A", Record: team.Record{Played: 4, Wins: 2, Draws: 1, Losses: 1, GoalsFor: 12, GoalsAgainst: 7}},
		players: []team.Player{
			{ID: "p1", Name: "Ana", Number: 10, SeasonStats: team.SeasonStats{Matches: 4, Goals: 5, Assists: 1, YellowCards: 1, SecondsPlayed: 4800}},
			{ID: "p2", Name: "Luis", Number: 7, SeasonStats: team.SeasonStats{Matches: 3, Goals: 5, Assists: 3}},
			{ID: "p3", Name: "Eva", Number: 1, SeasonStats: team.SeasonStats{Matches: 4, RedCards: 1}},
		},
	}
	att := fakeAttendance{
		teams: teams,
		month: []attendance.Attendance{
			{PlayerID: "p1", Status: attendance.StatusPresent},
			{PlayerID: "p2", Status: attendance.StatusLate},
			{PlayerID: "p3", Status: attendance.StatusAbsent},
			{PlayerID: "p3", Status: attendance.StatusExcused},
		},
		season: []attendance.Attendance{
			{PlayerID: "p1", Status: attendance.StatusPresent},
			{PlayerID: "p1", Status: attendance.StatusAbsent},
		},
	}
	matches := fakeMatches{finished(3, 1), {}, finished(2, 2), finished(0, 4)}
	return teams, att, matches
}

func TestGetTeamStats(t *testing.T) {
	teams, att, matches := fixture()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))
	s := NewService(teams, att, matches, clock)

	st, err := s.GetTeamStats(context.Background(), "coach", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if st.GoalDifference != 5 || st.Points != 7 || st.WinRate != "50.0" {
		t.Errorf("record stats = %+v", st)
	}
	if len(st.Form) != 3 || st.Form[0] != "W" || st.Form[1] != "D" || st.Form[2] != "L" {
		t.Errorf("form = %v", st.Form)
	}
	// equal goals: fewer matches ranks first
	if len(st.TopScorers) != 2 || st.TopScorers[0].PlayerID != "p2" {
		t.Errorf("scorers = %+v", st.TopScorers)
	}
	if st.TopAssisters[0].PlayerID != "p2" || st.TopAssisters[0].Value != 3 {
		t.Errorf("assisters = %+v", st.TopAssisters)
	}
	if st.Discipline.YellowCards != 1 || st.Discipline.RedCards != 1 {
		t.Errorf("discipline = %+v", st.Discipline)
	}
	m := st.Attendance.ThisMonth
	if m.Total != 4 || m.Rate != "50.0" || m.From != "2026-03-01" {
		t.Errorf("month = %+v", m)
	}
}

func TestGetPlayerStats(t *testing.T) {
	teams, att, matches := fixture()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))
	s := NewService(teams, att, matches, clock)

	ps, err := s.GetPlayerStats(context.Background(), "coach", "t1", "p1")
	if err != nil {
		t.Fatal(err)
	}
	if ps.MinutesPlayed != 80 || ps.GoalsPerMatch != "1.25" || ps.MinutesPerMatch != "20.00" {
		t.Errorf("season = %+v", ps)
	}
	if ps.Attendance.Rate != "50.0" || ps.Attendance.ThisMonth != "100.0" {
		t.Errorf("attendance = %+v", ps.Attendance)
	}

	if _, err := s.GetPlayerStats(context.Background(), "coach", "t1", "nobody"); !IsErrNotFound(err) {
		t.Errorf("missing player: %v", err)
	}
}

func TestLeadersCap(t *testing.T) {
	var players []team.Player
	for i := 1; i <= 8; i++ {
		players = append(players, team.Player{ID: string(rune('a' + i)), Number: i, SeasonStats: team.SeasonStats{Goals: i}})
	}
	top := Leaders(players, func(p team.Player) int { return p.SeasonStats.Goals }, TopN)
	if len(top) != TopN || top[0].Value != 8 || top[4].Value != 4 {
		t.Errorf("leaders = %+v", top)
	}
}
