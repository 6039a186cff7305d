package exercise

import (
	"testing"
	"time"

	"lapizarra/backend/internal/sheet"
)

func validInput() Input {
	return Input{
		Name:            "Rondo 4x2",
		Phase:           "Principal",
		Category:        "Táctica",
		AgeGroups:       []string{"Alevín", "infantil", "alevin"},
		DurationMinutes: 15,
	}
}

func TestInputNormalizeValidate(t *testing.T) {
	in := validInput()
	in.Normalize()
	if err := in.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if in.Category != "tactica" || in.Phase != "principal" {
		t.Errorf("enums not folded: %+v", in)
	}
	if len(in.AgeGroups) != 2 || in.AgeGroups[0] != "alevin" {
		t.Errorf("age groups = %v", in.AgeGroups)
	}
	if in.Visibility != VisibilityPrivate {
		t.Errorf("default visibility = %q", in.Visibility)
	}

	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"no name", func(in *Input) { in.Name = " " }},
		{"bad phase", func(in *Input) { in.Phase = "calentamiento" }},
		{"bad category", func(in *Input) { in.Category = "yoga" }},
		{"bad age group", func(in *Input) { in.AgeGroups = []string{"veteranos"} }},
		{"zero duration", func(in *Input) { in.DurationMinutes = 0 }},
		{"too long", func(in *Input) { in.DurationMinutes = 121 }},
		{"bad visibility", func(in *Input) { in.Visibility = "team" }},
		{"http media", func(in *Input) { in.MediaURL = "http://example.com/a.mp4" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			in.Normalize()
			if err := in.Validate(); !IsErrBadRequest(err) {
				t.Fatalf("want bad request, got %v", err)
			}
		})
	}
}

func TestBuildSearchKeys(t *testing.T) {
	in := validInput()
	in.Name = "Conducción en Pívot"
	in.Normalize()
	ex := in.build("u1", time.Now())
	if ex.NameLower != "conduccion en pivot" {
		t.Errorf("NameLower = %q", ex.NameLower)
	}
	found := false
	for _, k := range ex.Keywords {
		if k == "pivot" {
			found = true
		}
	}
	if !found {
		t.Errorf("keywords = %v", ex.Keywords)
	}
}

func TestVisibility(t *testing.T) {
	priv := Exercise{OwnerID: "u1", Visibility: VisibilityPrivate}
	pub := Exercise{OwnerID: "u1", Visibility: VisibilityPublic}

	if !CanView(priv, "u1", false) || CanView(priv, "u2", false) || !CanView(priv, "u2", true) {
		t.Error("private visibility rules")
	}
	if !CanView(pub, "u2", false) {
		t.Error("public exercise hidden")
	}
	if CanEdit(pub, "u2", false) || !CanEdit(pub, "u2", true) {
		t.Error("edit rules")
	}
}

func TestUpdateApply(t *testing.T) {
	cur := Exercise{Name: "A", Phase: "inicial", Category: "fisica", DurationMinutes: 10, Visibility: "public"}
	d := 20
	name := "B"
	in := UpdateInput{Name: &name, DurationMinutes: &d}.apply(cur)
	if in.Name != "B" || in.DurationMinutes != 20 || in.Phase != "inicial" || in.Visibility != "public" {
		t.Errorf("apply = %+v", in)
	}
}

func TestParseRows(t *testing.T) {
	rows := []sheet.Row{
		sheet.NewRow(2, map[string]string{"name": "Rondo", "phase": "principal", "category": "tactica", "duration": "15", "ageGroups": "alevin; infantil", "materials": "conos, petos"}),
		sheet.NewRow(3, map[string]string{"name": "Sin duración", "phase": "final", "category": "juego", "duration": ""}),
		sheet.NewRow(4, map[string]string{"nombre": "Porteros 1x1", "fase": "Inicial", "categoría": "Porteros", "duración": "200"}),
		sheet.NewRow(5, map[string]string{"name": "Partido", "phase": "final", "category": "juego", "duration": "20", "visibility": "public"}),
	}

	valid, errs := ParseRows(rows, false)
	if len(valid) != 2 || len(errs) != 2 {
		t.Fatalf("valid=%d errs=%+v", len(valid), errs)
	}
	if errs[0].Line != 3 || errs[1].Line != 4 {
		t.Errorf("error lines = %+v", errs)
	}
	first := valid[0].Input
	if first.Visibility != VisibilityPrivate || first.Official {
		t.Errorf("coach default = %+v", first)
	}
	if len(first.AgeGroups) != 2 || len(first.Materials) != 2 {
		t.Errorf("list cells = %v / %v", first.AgeGroups, first.Materials)
	}
	if valid[1].Input.Visibility != VisibilityPublic {
		t.Errorf("explicit visibility ignored")
	}

	adminValid, _ := ParseRows(rows[:1], true)
	if !adminValid[0].Input.Official || adminValid[0].Input.Visibility != VisibilityPublic {
		t.Errorf("admin default = %+v", adminValid[0].Input)
	}
}

func TestListFilterNormalize(t *testing.T) {
	f := ListFilter{Query: " Rondó ", Limit: 500}
	f.Normalize()
	if f.Scope != "public" || f.Query != "rondo" || f.Limit != 50 {
		t.Errorf("filter = %+v", f)
	}
}

func TestListFilterAuthorize(t *testing.T) {
	tests := []struct {
		name     string
		in       ListFilter
		admin    bool
		wantVis  string
		wantCode func(error) bool
	}{
		{"public default", ListFilter{}, false, VisibilityPublic, nil},
		{"public asking private", ListFilter{Visibility: "private"}, false, "", IsErrBadRequest},
		{"mine any", ListFilter{Scope: "mine"}, false, "", nil},
		{"mine private", ListFilter{Scope: "Mine", Visibility: " PRIVATE "}, false, VisibilityPrivate, nil},
		{"official coach", ListFilter{Scope: "official"}, false, VisibilityPublic, nil},
		{"official coach private", ListFilter{Scope: "official", Visibility: "private"}, false, "", IsErrUnauthorized},
		{"official admin", ListFilter{Scope: "official"}, true, "", nil},
		{"all coach", ListFilter{Scope: "all"}, false, "", IsErrUnauthorized},
		{"all admin private", ListFilter{Scope: "all", Visibility: "private"}, true, VisibilityPrivate, nil},
		{"bad visibility", ListFilter{Scope: "mine", Visibility: "hidden"}, false, "", IsErrBadRequest},
		{"bad scope", ListFilter{Scope: "team"}, true, "", IsErrBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.in
			f.Normalize()
			err := f.Authorize(tt.admin)
			if tt.wantCode != nil {
				if !tt.wantCode(err) {
					t.Fatalf("err = %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("err = %v", err)
			}
			if f.Visibility != tt.wantVis {
				t.Errorf("visibility = %q, want %q", f.Visibility, tt.wantVis)
			}
		})
	}
}

func TestSplitVisible(t *testing.T) {
	existing := []Exercise{
		{ID: "pub", Visibility: VisibilityPublic, OwnerID: "other"},
		{ID: "mine", Visibility: VisibilityPrivate, OwnerID: "coach"},
		{ID: "hidden", Visibility: VisibilityPrivate, OwnerID: "other"},
	}
	ids := []string{"hidden", "gone", "mine", "pub"}

	visible, missing := SplitVisible(ids, existing, "coach", false)
	if len(visible) != 2 || visible[0].ID != "mine" || visible[1].ID != "pub" {
		t.Errorf("visible = %+v", visible)
	}
	if len(missing) != 1 || missing[0] != "gone" {
		t.Errorf("missing = %v, want only the deleted id", missing)
	}

	visible, missing = SplitVisible(ids, existing, "boss", true)
	if len(visible) != 3 || len(missing) != 1 {
		t.Errorf("admin: visible=%d missing=%v", len(visible), missing)
	}
}
