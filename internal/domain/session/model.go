package session

import (
	"fmt"
	"strings"
	"time"

	"lapizarra/backend/internal/domain/exercise"
	"lapizarra/backend/internal/utils"
)

// MaxPerPhase caps the exercises in a single phase.
const MaxPerPhase = 15

// Phases holds ordered exercise ids per training phase. The same exercise
// may appear in more than one phase.
type Phases struct {
	Inicial   []string `firestore:"inicial" json:"inicial"`
	Principal []string `firestore:"principal" json:"principal"`
	Final     []string `firestore:"final" json:"final"`
}

func (p Phases) byName() map[string][]string {
	return map[string][]string{
		exercise.PhaseInicial:   p.Inicial,
		exercise.PhasePrincipal: p.Principal,
		exercise.PhaseFinal:     p.Final,
	}
}

// IDs returns every referenced exercise id once, in phase order.
func (p Phases) IDs() []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range [][]string{p.Inicial, p.Principal, p.Final} {
		for _, id := range list {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

func (p *Phases) normalize() {
	p.Inicial = cleanIDs(p.Inicial)
	p.Principal = cleanIDs(p.Principal)
	p.Final = cleanIDs(p.Final)
}

func (p Phases) validate() error {
	for name, list := range p.byName() {
		if len(list) > MaxPerPhase {
			return fmt.Errorf("%w: phase %s holds at most %d exercises", ErrBadRequest, name, MaxPerPhase)
		}
	}
	return nil
}

// TotalMinutes sums the duration of every referenced slot, counting an
// exercise once per appearance.
func (p Phases) TotalMinutes(durations map[string]int) int {
	total := 0
	for _, list := range [][]string{p.Inicial, p.Principal, p.Final} {
		for _, id := range list {
			total += durations[id]
		}
	}
	return total
}

func cleanIDs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, id := range in {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// Session is a planned training: three phases of exercises on a date.
type Session struct {
	ID           string    `firestore:"id" json:"id"`
	Title        string    `firestore:"title" json:"title"`
	Date         string    `firestore:"date" json:"date"` // YYYY-MM-DD
	TeamID       string    `firestore:"teamId,omitempty" json:"teamId,omitempty"`
	OwnerID      string    `firestore:"ownerId" json:"ownerId"`
	Notes        string    `firestore:"notes,omitempty" json:"notes,omitempty"`
	Phases       Phases    `firestore:"phases" json:"phases"`
	TotalMinutes int       `firestore:"totalMinutes" json:"totalMinutes"`
	CreatedAt    time.Time `firestore:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt" json:"updatedAt"`
}

type CreateSessionInput struct {
	Title  string `json:"title"`
	Date   string `json:"date"`
	TeamID string `json:"teamId,omitempty"`
	Notes  string `json:"notes,omitempty"`
	Phases Phases `json:"phases"`
}

func (in *CreateSessionInput) Trim() {
	in.Title = strings.TrimSpace(in.Title)
	in.Date = strings.TrimSpace(in.Date)
	in.TeamID = strings.TrimSpace(in.TeamID)
	in.Notes = strings.TrimSpace(in.Notes)
	in.Phases.normalize()
}

func (in CreateSessionInput) Validate() error {
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", ErrBadRequest)
	}
	if !isValidDate(in.Date) {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrBadRequest)
	}
	return in.Phases.validate()
}

// UpdateSessionInput replaces whole phase lists; omitted fields are kept.
type UpdateSessionInput struct {
	Title  *string `json:"title,omitempty"`
	Date   *string `json:"date,omitempty"`
	TeamID *string `json:"teamId,omitempty"`
	Notes  *string `json:"notes,omitempty"`
	Phases *Phases `json:"phases,omitempty"`
}

func (in *UpdateSessionInput) Trim() {
	if in.Title != nil {
		*in.Title = strings.TrimSpace(*in.Title)
	}
	if in.Date != nil {
		*in.Date = strings.TrimSpace(*in.Date)
	}
	if in.TeamID != nil {
		*in.TeamID = strings.TrimSpace(*in.TeamID)
	}
	if in.Notes != nil {
		*in.Notes = strings.TrimSpace(*in.Notes)
	}
	if in.Phases != nil {
		in.Phases.normalize()
	}
}

// ListSessionsInput filters the caller's sessions. From and To are
// inclusive YYYY-MM-DD bounds.
type ListSessionsInput struct {
	TeamID string `json:"teamId,omitempty"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

func (in ListSessionsInput) Validate() error {
	if in.From != "" && !isValidDate(in.From) {
		return fmt.Errorf("%w: from must be YYYY-MM-DD", ErrBadRequest)
	}
	if in.To != "" && !isValidDate(in.To) {
		return fmt.Errorf("%w: to must be YYYY-MM-DD", ErrBadRequest)
	}
	if in.From != "" && in.To != "" && in.From > in.To {
		return fmt.Errorf("%w: from must not be after to", ErrBadRequest)
	}
	return nil
}

func isValidDate(s string) bool {
	_, err := utils.ParseDate(s)
	return err == nil
}
