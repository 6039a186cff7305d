package session

import (
	"context"
	"strconv"
	"testing"

	"lapizarra/backend/internal/domain/exercise"
)

func TestPhasesIDsAndTotal(t *testing.T) {
	p := Phases{
		Inicial:   []string{"a", "b"},
		Principal: []string{"c", "a"},
		Final:     []string{"d"},
	}
	ids := p.IDs()
	if len(ids) != 4 || ids[0] != "a" || ids[2] != "c" {
		t.Errorf("IDs = %v", ids)
	}
	// "a" counts once per appearance
	got := p.TotalMinutes(map[string]int{"a": 10, "b": 5, "c": 20, "d": 7})
	if got != 52 {
		t.Errorf("TotalMinutes = %d, want 52", got)
	}
}

func TestCreateSessionInputValidate(t *testing.T) {
	many := make([]string, MaxPerPhase+1)
	for i := range many {
		many[i] = "ex" + strconv.Itoa(i)
	}
	tests := []struct {
		name    string
		in      CreateSessionInput
		wantErr bool
	}{
		{"ok", CreateSessionInput{Title: "Martes", Date: "2026-03-10"}, false},
		{"no title", CreateSessionInput{Date: "2026-03-10"}, true},
		{"bad date", CreateSessionInput{Title: "x", Date: "10/03/2026"}, true},
		{"phase full", CreateSessionInput{Title: "x", Date: "2026-03-10", Phases: Phases{Principal: many[:MaxPerPhase]}}, false},
		{"phase over", CreateSessionInput{Title: "x", Date: "2026-03-10", Phases: Phases{Principal: many}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Trim()
			err := tt.in.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsErrBadRequest(err) {
				t.Errorf("want bad request, got %v", err)
			}
		})
	}
}

func TestTrimDropsBlankIDs(t *testing.T) {
	in := CreateSessionInput{Title: " x ", Phases: Phases{Inicial: []string{" a ", "", "  "}}}
	in.Trim()
	if in.Title != "x" || len(in.Phases.Inicial) != 1 || in.Phases.Inicial[0] != "a" {
		t.Errorf("trimmed = %+v", in)
	}
	if in.Phases.Final == nil {
		t.Error("empty phases should be non-nil")
	}
}

func TestListSessionsInputValidate(t *testing.T) {
	if err := (ListSessionsInput{From: "2026-01-01", To: "2026-01-31"}).Validate(); err != nil {
		t.Error(err)
	}
	if err := (ListSessionsInput{From: "2026-02-01", To: "2026-01-31"}).Validate(); !IsErrBadRequest(err) {
		t.Errorf("inverted range: %v", err)
	}
	if err := (ListSessionsInput{To: "tomorrow"}).Validate(); !IsErrBadRequest(err) {
		t.Errorf("bad to: %v", err)
	}
}

type fakeExercises map[string]int

func (f fakeExercises) Visible(_ context.Context, _ string, _ bool, ids []string) ([]exercise.Exercise, error) {
	var out []exercise.Exercise
	for _, id := range ids {
		if d, ok := f[id]; ok {
			out = append(out, exercise.Exercise{ID: id, DurationMinutes: d})
		}
	}
	return out, nil
}

func TestResolveAndPrune(t *testing.T) {
	s := NewService(nil, fakeExercises{"a": 10, "b": 15}, nil, nil)
	ctx := context.Background()

	total, err := s.resolve(ctx, "u1", false, Phases{Inicial: []string{"a"}, Final: []string{"b", "a"}})
	if err != nil || total != 35 {
		t.Errorf("resolve = %d, %v", total, err)
	}
	if _, err := s.resolve(ctx, "u1", false, Phases{Principal: []string{"a", "hidden"}}); !IsErrBadRequest(err) {
		t.Errorf("hidden exercise: %v", err)
	}

	p, total, err := s.prune(ctx, "u1", false, Phases{Inicial: []string{"a", "gone"}, Principal: []string{"b"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Inicial) != 1 || total != 25 {
		t.Errorf("prune = %+v total %d", p, total)
	}
}
