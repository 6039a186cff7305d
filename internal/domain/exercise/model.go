package exercise

import (
	"fmt"
	"strings"
	"time"

	"lapizarra/backend/internal/utils"
)

const (
	PhaseInicial   = "inicial"
	PhasePrincipal = "principal"
	PhaseFinal     = "final"

	VisibilityPublic  = "public"
	VisibilityPrivate = "private"

	MinDuration = 1
	MaxDuration = 120

	maxNameLen        = 120
	maxDescriptionLen = 4000
)

var (
	Phases     = []string{PhaseInicial, PhasePrincipal, PhaseFinal}
	Categories = []string{"tecnica", "tactica", "fisica", "porteros", "abp", "juego"}
	AgeGroups  = []string{"prebenjamin", "benjamin", "alevin", "infantil", "cadete", "juvenil", "senior"}
)

type Exercise struct {
	ID              string    `firestore:"id" json:"id"`
	Name            string    `firestore:"name" json:"name"`
	NameLower       string    `firestore:"nameLower" json:"-"`
	Keywords        []string  `firestore:"keywords" json:"-"`
	Description     string    `firestore:"description" json:"description"`
	Objectives      []string  `firestore:"objectives" json:"objectives"`
	Phase           string    `firestore:"phase" json:"phase"`
	Category        string    `firestore:"category" json:"category"`
	AgeGroups       []string  `firestore:"ageGroups" json:"ageGroups"`
	DurationMinutes int       `firestore:"durationMinutes" json:"durationMinutes"`
	Players         string    `firestore:"players,omitempty" json:"players,omitempty"`
	Materials       []string  `firestore:"materials" json:"materials"`
	MediaURL        string    `firestore:"mediaUrl,omitempty" json:"mediaUrl,omitempty"`
	Visibility      string    `firestore:"visibility" json:"visibility"`
	Official        bool      `firestore:"official" json:"official"`
	OwnerID         string    `firestore:"ownerId" json:"ownerId"`
	CreatedAt       time.Time `firestore:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time `firestore:"updatedAt" json:"updatedAt"`
}

// CanView reports whether uid may read ex.
func CanView(ex Exercise, uid string, admin bool) bool {
	return admin || ex.Visibility == VisibilityPublic || ex.OwnerID == uid
}

func CanEdit(ex Exercise, uid string, admin bool) bool {
	return admin || ex.OwnerID == uid
}

type Input struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Objectives      []string `json:"objectives,omitempty"`
	Phase           string   `json:"phase"`
	Category        string   `json:"category"`
	AgeGroups       []string `json:"ageGroups,omitempty"`
	DurationMinutes int      `json:"durationMinutes"`
	Players         string   `json:"players,omitempty"`
	Materials       []string `json:"materials,omitempty"`
	MediaURL        string   `json:"mediaUrl,omitempty"`
	Visibility      string   `json:"visibility,omitempty"`
	Official        bool     `json:"official,omitempty"`
}

// Normalize trims text and folds enum values so "Táctica" matches "tactica".
func (in *Input) Normalize() {
	in.Name = utils.TrimMax(in.Name, maxNameLen)
	in.Description = utils.TrimMax(in.Description, maxDescriptionLen)
	in.Phase = utils.FoldLower(in.Phase)
	in.Category = utils.FoldLower(in.Category)
	in.Players = strings.TrimSpace(in.Players)
	in.MediaURL = strings.TrimSpace(in.MediaURL)
	in.Visibility = utils.FoldLower(in.Visibility)
	if in.Visibility == "" {
		in.Visibility = VisibilityPrivate
	}
	in.AgeGroups = foldAll(in.AgeGroups)
	in.Objectives = trimAll(in.Objectives)
	in.Materials = trimAll(in.Materials)
}

func (in Input) Validate() error {
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrBadRequest)
	}
	if !utils.Contains(Phases, in.Phase) {
		return fmt.Errorf("%w: phase must be one of: %s", ErrBadRequest, strings.Join(Phases, ", "))
	}
	if !utils.Contains(Categories, in.Category) {
		return fmt.Errorf("%w: category must be one of: %s", ErrBadRequest, strings.Join(Categories, ", "))
	}
	for _, g := range in.AgeGroups {
		if !utils.Contains(AgeGroups, g) {
			return fmt.Errorf("%w: unknown age group %q", ErrBadRequest, g)
		}
	}
	if in.DurationMinutes < MinDuration || in.DurationMinutes > MaxDuration {
		return fmt.Errorf("%w: durationMinutes must be %d-%d", ErrBadRequest, MinDuration, MaxDuration)
	}
	if in.Visibility != VisibilityPublic && in.Visibility != VisibilityPrivate {
		return fmt.Errorf("%w: visibility must be public or private", ErrBadRequest)
	}
	if in.MediaURL != "" && !strings.HasPrefix(in.MediaURL, "https://") {
		return fmt.Errorf("%w: mediaUrl must be https", ErrBadRequest)
	}
	return nil
}

// build turns a validated input into a document.
func (in Input) build(uid string, now time.Time) Exercise {
	return Exercise{
		Name:            in.Name,
		NameLower:       utils.FoldLower(in.Name),
		Keywords:        utils.SearchKeywords(in.Name, in.Category, in.Phase),
		Description:     in.Description,
		Objectives:      in.Objectives,
		Phase:           in.Phase,
		Category:        in.Category,
		AgeGroups:       in.AgeGroups,
		DurationMinutes: in.DurationMinutes,
		Players:         in.Players,
		Materials:       in.Materials,
		MediaURL:        in.MediaURL,
		Visibility:      in.Visibility,
		Official:        in.Official,
		OwnerID:         uid,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

type UpdateInput struct {
	Name            *string   `json:"name,omitempty"`
	Description     *string   `json:"description,omitempty"`
	Objectives      *[]string `json:"objectives,omitempty"`
	Phase           *string   `json:"phase,omitempty"`
	Category        *string   `json:"category,omitempty"`
	AgeGroups       *[]string `json:"ageGroups,omitempty"`
	DurationMinutes *int      `json:"durationMinutes,omitempty"`
	Players         *string   `json:"players,omitempty"`
	Materials       *[]string `json:"materials,omitempty"`
	MediaURL        *string   `json:"mediaUrl,omitempty"`
	Visibility      *string   `json:"visibility,omitempty"`
	Official        *bool     `json:"official,omitempty"`
}

// apply overlays the set fields on the current document as an Input.
func (u UpdateInput) apply(cur Exercise) Input {
	in := Input{
		Name:            cur.Name,
		Description:     cur.Description,
		Objectives:      cur.Objectives,
		Phase:           cur.Phase,
		Category:        cur.Category,
		AgeGroups:       cur.AgeGroups,
		DurationMinutes: cur.DurationMinutes,
		Players:         cur.Players,
		Materials:       cur.Materials,
		MediaURL:        cur.MediaURL,
		Visibility:      cur.Visibility,
		Official:        cur.Official,
	}
	if u.Name != nil {
		in.Name = *u.Name
	}
	if u.Description != nil {
		in.Description = *u.Description
	}
	if u.Objectives != nil {
		in.Objectives = *u.Objectives
	}
	if u.Phase != nil {
		in.Phase = *u.Phase
	}
	if u.Category != nil {
		in.Category = *u.Category
	}
	if u.AgeGroups != nil {
		in.AgeGroups = *u.AgeGroups
	}
	if u.DurationMinutes != nil {
		in.DurationMinutes = *u.DurationMinutes
	}
	if u.Players != nil {
		in.Players = *u.Players
	}
	if u.Materials != nil {
		in.Materials = *u.Materials
	}
	if u.MediaURL != nil {
		in.MediaURL = *u.MediaURL
	}
	if u.Visibility != nil {
		in.Visibility = *u.Visibility
	}
	if u.Official != nil {
		in.Official = *u.Official
	}
	return in
}

const (
	ScopePublic   = "public"
	ScopeMine     = "mine"
	ScopeOfficial = "official"
	ScopeAll      = "all"
)

// ListFilter selects exercises. Scope is "public" (default), "mine",
// "official" or "all" (admins only). Visibility narrows any scope to
// public or private exercises.
type ListFilter struct {
	Scope      string
	Visibility string
	Phase      string
	Category   string
	AgeGroup   string
	Query      string
	Limit      int
}

func (f *ListFilter) Normalize() {
	f.Scope = strings.ToLower(strings.TrimSpace(f.Scope))
	if f.Scope == "" {
		f.Scope = ScopePublic
	}
	f.Visibility = strings.ToLower(strings.TrimSpace(f.Visibility))
	f.Phase = utils.FoldLower(f.Phase)
	f.Category = utils.FoldLower(f.Category)
	f.AgeGroup = utils.FoldLower(f.AgeGroup)
	f.Query = utils.FoldLower(f.Query)
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
}

// Authorize checks the filter for the caller and pins the visibility a
// non-admin is allowed to see. Call after Normalize.
func (f *ListFilter) Authorize(admin bool) error {
	switch f.Visibility {
	case "", VisibilityPublic, VisibilityPrivate:
	default:
		return fmt.Errorf("%w: visibility must be public or private", ErrBadRequest)
	}

	switch f.Scope {
	case ScopeMine:
	case ScopePublic:
		if f.Visibility == VisibilityPrivate {
			return fmt.Errorf("%w: scope public only lists public exercises", ErrBadRequest)
		}
		f.Visibility = VisibilityPublic
	case ScopeOfficial:
		if admin {
			return nil
		}
		if f.Visibility == VisibilityPrivate {
			return fmt.Errorf("%w: only admins can list private official exercises", ErrUnauthorized)
		}
		f.Visibility = VisibilityPublic
	case ScopeAll:
		if !admin {
			return fmt.Errorf("%w: only admins can list every exercise", ErrUnauthorized)
		}
	default:
		return fmt.Errorf("%w: scope must be public, mine, official or all", ErrBadRequest)
	}
	return nil
}

// SplitVisible returns, in the order of ids, the exercises uid may see and
// the ids that have no document. Exercises that exist but are hidden from
// uid are in neither list.
func SplitVisible(ids []string, existing []Exercise, uid string, admin bool) (visible []Exercise, missing []string) {
	byID := make(map[string]Exercise, len(existing))
	for _, ex := range existing {
		byID[ex.ID] = ex
	}
	visible = make([]Exercise, 0, len(existing))
	for _, id := range ids {
		ex, ok := byID[id]
		switch {
		case !ok:
			missing = append(missing, id)
		case CanView(ex, uid, admin):
			visible = append(visible, ex)
		}
	}
	return visible, missing
}

func foldAll(in []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, s := range in {
		s = utils.FoldLower(s)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func trimAll(in []string) []string {
	out := []string{}
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
