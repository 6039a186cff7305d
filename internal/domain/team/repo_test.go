package team

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/jonboulle/clockwork"
)

// emulatorRepo connects to the Firestore emulator, skipping when it is not
// running.
func emulatorRepo(t *testing.T, clock clockwork.Clock) *Repo {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "demo-lapizarra")
	if err != nil {
		t.Fatalf("firestore client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return NewRepo(client, clock)
}

func TestUpdateTeamStampsAndNeverRecreates(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC))
	r := emulatorRepo(t, clock)
	ctx := context.Background()

	tm, err := r.CreateTeam(ctx, Team{Name: "Alevín A", Category: "alevin", OwnerID: "coach", MemberIDs: []string{}})
	if err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Hour)
	if err := r.UpdateTeam(ctx, tm.ID, map[string]interface{}{"name": "Alevín B"}); err != nil {
		t.Fatal(err)
	}
	got, err := r.GetTeam(ctx, tm.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Alevín B" || !got.UpdatedAt.Equal(clock.Now()) {
		t.Errorf("team = %+v", got)
	}

	if err := r.DeleteTeam(ctx, tm.ID); err != nil {
		t.Fatal(err)
	}
	if err := r.UpdateTeam(ctx, tm.ID, map[string]interface{}{"name": "ghost"}); !IsErrNotFound(err) {
		t.Fatalf("update deleted team: %v", err)
	}
	if _, err := r.GetTeam(ctx, tm.ID); !IsErrNotFound(err) {
		t.Errorf("deleted team came back: %v", err)
	}
	if err := r.UpdatePlayer(ctx, tm.ID, "missing", map[string]interface{}{"name": "x"}); !IsErrNotFound(err) {
		t.Errorf("update missing player: %v", err)
	}
}
