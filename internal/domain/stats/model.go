package stats

import "lapizarra/backend/internal/domain/team"

// TopN is the length of leaderboards.
const TopN = 5

// TeamStats summarises a team's season.
type TeamStats struct {
	TeamID         string           `json:"teamId"`
	Name           string           `json:"name"`
	Record         team.Record      `json:"record"`
	GoalDifference int              `json:"goalDifference"`
	Points         int              `json:"points"`
	WinRate        string           `json:"winRate"`
	Form           []string         `json:"form"` // newest first: W, D, L
	TopScorers     []Leader         `json:"topScorers"`
	TopAssisters   []Leader         `json:"topAssisters"`
	Discipline     DisciplineTotals `json:"discipline"`
	Attendance     AttendanceStats  `json:"attendance"`
}

type Leader struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Number   int    `json:"number"`
	Value    int    `json:"value"`
	Matches  int    `json:"matches"`
}

type DisciplineTotals struct {
	YellowCards int `json:"yellowCards"`
	RedCards    int `json:"redCards"`
}

type AttendanceStats struct {
	ThisMonth MonthlyAttendance `json:"thisMonth"`
}

type MonthlyAttendance struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Total   int    `json:"total"`
	Present int    `json:"present"`
	Absent  int    `json:"absent"`
	Late    int    `json:"late"`
	Excused int    `json:"excused"`
	Rate    string `json:"rate"`
}

// PlayerStats is one player's season plus attendance.
type PlayerStats struct {
	Player          team.Player      `json:"player"`
	MinutesPlayed   int64            `json:"minutesPlayed"`
	GoalsPerMatch   string           `json:"goalsPerMatch"`
	MinutesPerMatch string           `json:"minutesPerMatch"`
	Attendance      PlayerAttendance `json:"attendance"`
}

type PlayerAttendance struct {
	Total     int    `json:"total"`
	Present   int    `json:"present"`
	Late      int    `json:"late"`
	Absent    int    `json:"absent"`
	Excused   int    `json:"excused"`
	Rate      string `json:"rate"`
	ThisMonth string `json:"thisMonthRate"`
}
