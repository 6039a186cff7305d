package team

import (
	"fmt"
	"strings"
	"time"
)

const (
	MaxRoster  = 20
	MinNumber  = 1
	MaxNumber  = 99
	RoleOwner  = "owner"
	RoleAssist = "assistant"
	RoleViewer = "viewer"
)

var ValidCategories = []string{"prebenjamin", "benjamin", "alevin", "infantil", "cadete", "juvenil", "senior"}

var ValidPositions = []string{"portero", "cierre", "ala", "pivot", "universal"}

func IsValidCategory(c string) bool { return contains(ValidCategories, c) }
func IsValidPosition(p string) bool { return contains(ValidPositions, p) }

// IsValidMemberRole reports whether r can be granted through an invitation.
func IsValidMemberRole(r string) bool { return r == RoleAssist || r == RoleViewer }

// CanEdit reports whether a team role may change team data.
func CanEdit(role string) bool { return role == RoleOwner || role == RoleAssist }

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

type Record struct {
	Played       int `firestore:"played" json:"played"`
	Wins         int `firestore:"wins" json:"wins"`
	Draws        int `firestore:"draws" json:"draws"`
	Losses       int `firestore:"losses" json:"losses"`
	GoalsFor     int `firestore:"goalsFor" json:"goalsFor"`
	GoalsAgainst int `firestore:"goalsAgainst" json:"goalsAgainst"`
}

type Team struct {
	ID        string    `firestore:"id" json:"id"`
	Name      string    `firestore:"name" json:"name"`
	Category  string    `firestore:"category" json:"category"`
	Season    string    `firestore:"season,omitempty" json:"season,omitempty"`
	OwnerID   string    `firestore:"ownerId" json:"ownerId"`
	MemberIDs []string  `firestore:"memberIds" json:"memberIds"`
	Record    Record    `firestore:"record" json:"record"`
	CreatedAt time.Time `firestore:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt" json:"updatedAt"`
}

type SeasonStats struct {
	Matches       int   `firestore:"matches" json:"matches"`
	Goals         int   `firestore:"goals" json:"goals"`
	Assists       int   `firestore:"assists" json:"assists"`
	YellowCards   int   `firestore:"yellowCards" json:"yellowCards"`
	RedCards      int   `firestore:"redCards" json:"redCards"`
	Saves         int   `firestore:"saves" json:"saves"`
	SecondsPlayed int64 `firestore:"secondsPlayed" json:"secondsPlayed"`
}

type Player struct {
	ID          string      `firestore:"id" json:"id"`
	TeamID      string      `firestore:"teamId" json:"teamId"`
	Name        string      `firestore:"name" json:"name"`
	Number      int         `firestore:"number" json:"number"`
	Position    string      `firestore:"position,omitempty" json:"position,omitempty"`
	BirthYear   int         `firestore:"birthYear,omitempty" json:"birthYear,omitempty"`
	Active      bool        `firestore:"active" json:"active"`
	SeasonStats SeasonStats `firestore:"seasonStats" json:"seasonStats"`
	CreatedAt   time.Time   `firestore:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time   `firestore:"updatedAt" json:"updatedAt"`
}

type CreateTeamInput struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Season   string `json:"season,omitempty"`
}

func (in *CreateTeamInput) Trim() {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.Season = strings.TrimSpace(in.Season)
}

func (in CreateTeamInput) Validate() error {
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrBadRequest)
	}
	if !IsValidCategory(in.Category) {
		return fmt.Errorf("%w: category must be one of: %s", ErrBadRequest, strings.Join(ValidCategories, ", "))
	}
	return nil
}

type UpdateTeamInput struct {
	Name     *string `json:"name,omitempty"`
	Category *string `json:"category,omitempty"`
	Season   *string `json:"season,omitempty"`
}

func (in *UpdateTeamInput) Trim() {
	if in.Name != nil {
		*in.Name = strings.TrimSpace(*in.Name)
	}
	if in.Category != nil {
		*in.Category = strings.ToLower(strings.TrimSpace(*in.Category))
	}
	if in.Season != nil {
		*in.Season = strings.TrimSpace(*in.Season)
	}
}

type PlayerInput struct {
	Name      string `json:"name"`
	Number    int    `json:"number"`
	Position  string `json:"position,omitempty"`
	BirthYear int    `json:"birthYear,omitempty"`
}

func (in *PlayerInput) Trim() {
	in.Name = strings.TrimSpace(in.Name)
	in.Position = strings.ToLower(strings.TrimSpace(in.Position))
}

func (in PlayerInput) Validate() error {
	if in.Name == "" {
		return fmt.Errorf("%w: player name is required", ErrBadRequest)
	}
	if in.Number < MinNumber || in.Number > MaxNumber {
		return fmt.Errorf("%w: number must be %d-%d", ErrBadRequest, MinNumber, MaxNumber)
	}
	if in.Position != "" && !IsValidPosition(in.Position) {
		return fmt.Errorf("%w: position must be one of: %s", ErrBadRequest, strings.Join(ValidPositions, ", "))
	}
	if in.BirthYear != 0 && (in.BirthYear < 1940 || in.BirthYear > time.Now().Year()) {
		return fmt.Errorf("%w: invalid birthYear", ErrBadRequest)
	}
	return nil
}

type UpdatePlayerInput struct {
	Name      *string `json:"name,omitempty"`
	Number    *int    `json:"number,omitempty"`
	Position  *string `json:"position,omitempty"`
	BirthYear *int    `json:"birthYear,omitempty"`
	Active    *bool   `json:"active,omitempty"`
}

// CheckRosterAdd validates adding n players with the given numbers to a
// roster. excludeID skips one existing player (used when renumbering).
func CheckRosterAdd(roster []Player, numbers []int, excludeID string) error {
	current := 0
	taken := map[int]bool{}
	for _, p := range roster {
		if p.ID == excludeID {
			continue
		}
		current++
		taken[p.Number] = true
	}
	if excludeID == "" && current+len(numbers) > MaxRoster {
		return fmt.Errorf("%w: roster is limited to %d players", ErrBadRequest, MaxRoster)
	}
	for _, n := range numbers {
		if taken[n] {
			return fmt.Errorf("%w: number %d is already taken", ErrBadRequest, n)
		}
		taken[n] = true
	}
	return nil
}

// Member is a non-owner collaborator stored at teamMembers/{teamId_uid}.
type Member struct {
	TeamID      string    `firestore:"teamId" json:"teamId"`
	UID         string    `firestore:"uid" json:"uid"`
	Email       string    `firestore:"email" json:"email"`
	DisplayName string    `firestore:"displayName,omitempty" json:"displayName,omitempty"`
	Role        string    `firestore:"role" json:"role"`
	JoinedAt    time.Time `firestore:"joinedAt" json:"joinedAt"`
}

func MemberDocID(teamID, uid string) string { return teamID + "_" + uid }
