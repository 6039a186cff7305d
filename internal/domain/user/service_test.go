package user

import (
	"context"
	"testing"

	"lapizarra/backend/internal/domain/exercise"
)

// catalog resolves ids against a fixed set of exercises.
type catalog map[string]exercise.Exercise

func (c catalog) Get(_ context.Context, uid string, admin bool, id string) (*exercise.Exercise, error) {
	ex, ok := c[id]
	if !ok || !exercise.CanView(ex, uid, admin) {
		return nil, exercise.ErrNotFound
	}
	return &ex, nil
}

func (c catalog) Resolve(_ context.Context, uid string, admin bool, ids []string) ([]exercise.Exercise, []string, error) {
	existing := make([]exercise.Exercise, 0, len(c))
	for _, ex := range c {
		existing = append(existing, ex)
	}
	visible, missing := exercise.SplitVisible(ids, existing, uid, admin)
	return visible, missing, nil
}

func TestListFavoritesPrunesOnlyDeleted(t *testing.T) {
	r := emulatorRepo(t)
	ctx := context.Background()
	uid := seedUser(t, r)

	ex := catalog{
		"pub":    {ID: "pub", Visibility: exercise.VisibilityPublic, OwnerID: "other"},
		"hidden": {ID: "hidden", Visibility: exercise.VisibilityPrivate, OwnerID: "other"},
	}
	for _, id := range []string{"pub", "hidden", "gone"} {
		if _, err := r.ToggleFavorite(ctx, uid, id); err != nil {
			t.Fatal(err)
		}
	}

	s := NewService(r, ex, nil)
	list, err := s.ListFavorites(ctx, uid, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != "pub" {
		t.Errorf("favorites = %+v", list)
	}

	p, err := r.Get(ctx, uid)
	if err != nil {
		t.Fatal(err)
	}
	kept := map[string]bool{}
	for _, id := range p.Favorites {
		kept[id] = true
	}
	if len(p.Favorites) != 2 || !kept["pub"] || !kept["hidden"] {
		t.Errorf("stored favorites = %v, want pub and hidden", p.Favorites)
	}
}
