package match

import (
	"strings"
	"time"
)

type Side string

const (
	SideLocal Side = "local"
	SideRival Side = "rival"
)

func (s Side) Valid() bool { return s == SideLocal || s == SideRival }

const (
	MaxOnCourt           = 5
	MaxPeriods           = 4 // two halves plus two extra-time periods
	DefaultPeriodSeconds = 20 * 60
)

// Stat names a per-player counter that can be adjusted directly.
type Stat string

const (
	StatShots         Stat = "shots"
	StatShotsOnTarget Stat = "shotsOnTarget"
	StatSaves         Stat = "saves"
	StatFouls         Stat = "fouls"
	StatYellowCards   Stat = "yellowCards"
	StatRedCards      Stat = "redCards"
)

func (s Stat) Valid() bool {
	switch s {
	case StatShots, StatShotsOnTarget, StatSaves, StatFouls, StatYellowCards, StatRedCards:
		return true
	}
	return false
}

// PlayerLine is the in-match snapshot for one rostered player.
type PlayerLine struct {
	PlayerID      string `firestore:"playerId" json:"playerId"`
	Name          string `firestore:"name" json:"name"`
	Number        int    `firestore:"number" json:"number"`
	OnCourt       bool   `firestore:"onCourt" json:"onCourt"`
	PlayedMs      int64  `firestore:"playedMs" json:"playedMs"`
	Goals         int    `firestore:"goals" json:"goals"`
	Assists       int    `firestore:"assists" json:"assists"`
	Shots         int    `firestore:"shots" json:"shots"`
	ShotsOnTarget int    `firestore:"shotsOnTarget" json:"shotsOnTarget"`
	Saves         int    `firestore:"saves" json:"saves"`
	Fouls         int    `firestore:"fouls" json:"fouls"`
	YellowCards   int    `firestore:"yellowCards" json:"yellowCards"`
	RedCards      int    `firestore:"redCards" json:"redCards"`
}

func (p *PlayerLine) counter(s Stat) *int {
	switch s {
	case StatShots:
		return &p.Shots
	case StatShotsOnTarget:
		return &p.ShotsOnTarget
	case StatSaves:
		return &p.Saves
	case StatFouls:
		return &p.Fouls
	case StatYellowCards:
		return &p.YellowCards
	case StatRedCards:
		return &p.RedCards
	}
	return nil
}

// Participated reports whether the player counts as having played the match.
func (p PlayerLine) Participated() bool {
	return p.PlayedMs > 0 || p.Goals > 0 || p.Assists > 0 || p.Saves > 0 ||
		p.YellowCards > 0 || p.RedCards > 0
}

type GoalEvent struct {
	ID        string    `firestore:"id" json:"id"`
	Side      Side      `firestore:"side" json:"side"`
	PlayerID  string    `firestore:"playerId,omitempty" json:"playerId,omitempty"`
	AssistID  string    `firestore:"assistId,omitempty" json:"assistId,omitempty"`
	Period    int       `firestore:"period" json:"period"`
	ElapsedMs int64     `firestore:"elapsedMs" json:"elapsedMs"`
	CreatedAt time.Time `firestore:"createdAt" json:"createdAt"`
}

type Score struct {
	Local int `firestore:"local" json:"local"`
	Rival int `firestore:"rival" json:"rival"`
}

// PerSide is a pair of per-period counters.
type PerSide struct {
	Local int `firestore:"local" json:"local"`
	Rival int `firestore:"rival" json:"rival"`
}

func (p *PerSide) of(s Side) *int {
	if s == SideRival {
		return &p.Rival
	}
	return &p.Local
}

// Timer is a countdown anchored to an end timestamp. While running, the
// remaining time is EndsAt-now; while paused it is RemainingMs. SettledAt is
// the instant up to which on-court time has been credited.
type Timer struct {
	Running     bool      `firestore:"running" json:"running"`
	EndsAt      time.Time `firestore:"endsAt" json:"endsAt"`
	RemainingMs int64     `firestore:"remainingMs" json:"remainingMs"`
	SettledAt   time.Time `firestore:"settledAt" json:"settledAt"`
}

// State is the persisted board.
type State struct {
	PeriodLengthSec int          `firestore:"periodLengthSec" json:"periodLengthSec"`
	Period          int          `firestore:"period" json:"period"`
	Score           Score        `firestore:"score" json:"score"`
	Timer           Timer        `firestore:"timer" json:"timer"`
	Players         []PlayerLine `firestore:"players" json:"players"`
	Goals           []GoalEvent  `firestore:"goals" json:"goals"`
	TeamFouls       PerSide      `firestore:"teamFouls" json:"teamFouls"`
	Timeouts        PerSide      `firestore:"timeouts" json:"timeouts"`
	Finished        bool         `firestore:"finished" json:"finished"`
	Applied         *Totals      `firestore:"applied,omitempty" json:"applied,omitempty"`
}

func (s State) periodLength() time.Duration {
	return time.Duration(s.PeriodLengthSec) * time.Second
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	out.Players = append([]PlayerLine(nil), s.Players...)
	out.Goals = append([]GoalEvent(nil), s.Goals...)
	if s.Applied != nil {
		a := s.Applied.Clone()
		out.Applied = &a
	}
	return out
}

// Match is a matches/{id} document.
type Match struct {
	ID          string    `firestore:"id" json:"id"`
	TeamID      string    `firestore:"teamId" json:"teamId"`
	OwnerID     string    `firestore:"ownerId" json:"ownerId"`
	Opponent    string    `firestore:"opponent" json:"opponent"`
	Competition string    `firestore:"competition,omitempty" json:"competition,omitempty"`
	HomeAway    string    `firestore:"homeAway" json:"homeAway"` // home / away
	ScheduledAt time.Time `firestore:"scheduledAt" json:"scheduledAt"`
	CreatedAt   time.Time `firestore:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt" json:"updatedAt"`

	State
}

// PlayerDelta is what a finished match adds to a player's season stats.
type PlayerDelta struct {
	PlayerID      string `firestore:"playerId" json:"playerId"`
	Matches       int    `firestore:"matches" json:"matches"`
	Goals         int    `firestore:"goals" json:"goals"`
	Assists       int    `firestore:"assists" json:"assists"`
	YellowCards   int    `firestore:"yellowCards" json:"yellowCards"`
	RedCards      int    `firestore:"redCards" json:"redCards"`
	Saves         int    `firestore:"saves" json:"saves"`
	SecondsPlayed int64  `firestore:"secondsPlayed" json:"secondsPlayed"`
}

// TeamDelta is what a finished match adds to the team record.
type TeamDelta struct {
	Played       int `firestore:"played" json:"played"`
	Wins         int `firestore:"wins" json:"wins"`
	Draws        int `firestore:"draws" json:"draws"`
	Losses       int `firestore:"losses" json:"losses"`
	GoalsFor     int `firestore:"goalsFor" json:"goalsFor"`
	GoalsAgainst int `firestore:"goalsAgainst" json:"goalsAgainst"`
}

type Totals struct {
	Team    TeamDelta     `firestore:"team" json:"team"`
	Players []PlayerDelta `firestore:"players" json:"players"`
}

func (t Totals) Clone() Totals {
	return Totals{Team: t.Team, Players: append([]PlayerDelta(nil), t.Players...)}
}

// Negate returns totals that undo t when applied.
func (t Totals) Negate() Totals {
	out := Totals{
		Team: TeamDelta{
			Played:       -t.Team.Played,
			Wins:         -t.Team.Wins,
			Draws:        -t.Team.Draws,
			Losses:       -t.Team.Losses,
			GoalsFor:     -t.Team.GoalsFor,
			GoalsAgainst: -t.Team.GoalsAgainst,
		},
		Players: make([]PlayerDelta, 0, len(t.Players)),
	}
	for _, p := range t.Players {
		out.Players = append(out.Players, PlayerDelta{
			PlayerID:      p.PlayerID,
			Matches:       -p.Matches,
			Goals:         -p.Goals,
			Assists:       -p.Assists,
			YellowCards:   -p.YellowCards,
			RedCards:      -p.RedCards,
			Saves:         -p.Saves,
			SecondsPlayed: -p.SecondsPlayed,
		})
	}
	return out
}

type CreateMatchInput struct {
	TeamID          string   `json:"teamId"`
	Opponent        string   `json:"opponent"`
	Competition     string   `json:"competition,omitempty"`
	HomeAway        string   `json:"homeAway,omitempty"`
	ScheduledAt     string   `json:"scheduledAt,omitempty"` // RFC3339
	PeriodLengthSec int      `json:"periodLengthSec,omitempty"`
	PlayerIDs       []string `json:"playerIds,omitempty"` // called-up players; empty means whole roster
}

func (in *CreateMatchInput) Trim() {
	in.TeamID = strings.TrimSpace(in.TeamID)
	in.Opponent = strings.TrimSpace(in.Opponent)
	in.Competition = strings.TrimSpace(in.Competition)
	in.HomeAway = strings.ToLower(strings.TrimSpace(in.HomeAway))
	in.ScheduledAt = strings.TrimSpace(in.ScheduledAt)
}

type StatInput struct {
	PlayerID string `json:"playerId"`
	Stat     Stat   `json:"stat"`
	Delta    int    `json:"delta"`
}

type GoalInput struct {
	Side     Side   `json:"side"`
	PlayerID string `json:"playerId,omitempty"`
	AssistID string `json:"assistId,omitempty"`
}

type CourtInput struct {
	PlayerID string `json:"playerId"`
	OnCourt  bool   `json:"onCourt"`
}

// View is the JSON pushed to live clients and returned by the API.
type View struct {
	Match
	RemainingMs int64 `json:"remainingMs"`
	ElapsedMs   int64 `json:"elapsedMs"`
}
