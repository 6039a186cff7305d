package attendance

import (
	"strings"
	"time"

	"lapizarra/backend/internal/utils"
)

// AttendanceStatus represents the status of an attendance record
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
	StatusLate    AttendanceStatus = "late"
	StatusExcused AttendanceStatus = "excused"
)

const MaxNotes = 500

var ValidStatuses = []AttendanceStatus{StatusPresent, StatusAbsent, StatusLate, StatusExcused}

func IsValidStatus(s string) bool {
	for _, v := range ValidStatuses {
		if string(v) == s {
			return true
		}
	}
	return false
}

// Attendance is one player's status at one training date. Stored at
// teams/{teamId}/attendance/{date_playerId}, so recording twice overwrites.
type Attendance struct {
	ID         string           `firestore:"id" json:"id"`
	TeamID     string           `firestore:"teamId" json:"teamId"`
	Date       string           `firestore:"date" json:"date"`
	PlayerID   string           `firestore:"playerId" json:"playerId"`
	Status     AttendanceStatus `firestore:"status" json:"status"`
	Notes      string           `firestore:"notes,omitempty" json:"notes,omitempty"`
	RecordedBy string           `firestore:"recordedBy" json:"recordedBy"`
	UpdatedAt  time.Time        `firestore:"updatedAt" json:"updatedAt"`
}

func DocID(date, playerID string) string { return date + "_" + playerID }

// RecordAttendanceInput represents input for recording attendance
type RecordAttendanceInput struct {
	Date     string `json:"date"`
	PlayerID string `json:"playerId"`
	Status   string `json:"status"`
	Notes    string `json:"notes,omitempty"`
}

func (in *RecordAttendanceInput) Trim() {
	in.Date = strings.TrimSpace(in.Date)
	in.PlayerID = strings.TrimSpace(in.PlayerID)
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	in.Notes = utils.TrimMax(in.Notes, MaxNotes)
}

// BulkAttendanceRecord represents a single record in a bulk attendance request
type BulkAttendanceRecord struct {
	PlayerID string `json:"playerId"`
	Status   string `json:"status"`
	Notes    string `json:"notes,omitempty"`
}

// BulkAttendanceInput records a whole roster for one date.
type BulkAttendanceInput struct {
	Date    string                 `json:"date"`
	Records []BulkAttendanceRecord `json:"records"`
}

func (in *BulkAttendanceInput) Trim() {
	in.Date = strings.TrimSpace(in.Date)
	for i := range in.Records {
		r := &in.Records[i]
		r.PlayerID = strings.TrimSpace(r.PlayerID)
		r.Status = strings.ToLower(strings.TrimSpace(r.Status))
		r.Notes = utils.TrimMax(r.Notes, MaxNotes)
	}
}

// ListAttendanceInput filters a team's records. Date selects one day; From
// and To bound a range.
type ListAttendanceInput struct {
	Date     string `json:"date,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	PlayerID string `json:"playerId,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// PlayerSummary counts one player's statuses over a period.
type PlayerSummary struct {
	PlayerID string  `json:"playerId"`
	Name     string  `json:"name"`
	Number   int     `json:"number"`
	Present  int     `json:"present"`
	Absent   int     `json:"absent"`
	Late     int     `json:"late"`
	Excused  int     `json:"excused"`
	Total    int     `json:"total"`
	Rate     float64 `json:"rate"`
}

func (p *PlayerSummary) add(status AttendanceStatus) {
	switch status {
	case StatusPresent:
		p.Present++
	case StatusAbsent:
		p.Absent++
	case StatusLate:
		p.Late++
	case StatusExcused:
		p.Excused++
	default:
		return
	}
	p.Total++
}

// Attended is the share of recorded sessions the player showed up to,
// counting late arrivals.
func Attended(present, late, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(present+late) / float64(total)
}

type Summary struct {
	TeamID  string          `json:"teamId"`
	From    string          `json:"from,omitempty"`
	To      string          `json:"to,omitempty"`
	Players []PlayerSummary `json:"players"`
	Rate    float64         `json:"rate"`
}
