package firebase

import "testing"

func TestUpdates(t *testing.T) {
	ups := Updates(map[string]interface{}{
		"subscription.status": "active",
		"name":                "Ana",
		"active":              true,
	})
	want := []string{"active", "name", "subscription.status"}
	if len(ups) != len(want) {
		t.Fatalf("len = %d", len(ups))
	}
	for i, u := range ups {
		if u.Path != want[i] {
			t.Errorf("ups[%d].Path = %q, want %q", i, u.Path, want[i])
		}
	}
	if len(Updates(nil)) != 0 {
		t.Error("nil map should yield no updates")
	}
}
