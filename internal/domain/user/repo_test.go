package user

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
)

// emulatorRepo connects to the Firestore emulator, skipping when it is not
// running.
func emulatorRepo(t *testing.T) *Repo {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "demo-lapizarra")
	if err != nil {
		t.Fatalf("firestore client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return NewRepo(client)
}

func seedUser(t *testing.T, r *Repo) string {
	t.Helper()
	uid := "u-" + uuid.NewString()
	created, err := r.Create(context.Background(), Profile{
		UID:          uid,
		Subscription: Subscription{Tier: TierFree},
		ReferralCode: newReferralCode(),
		Favorites:    []string{},
		CreatedAt:    time.Now(),
	})
	if err != nil || !created {
		t.Fatalf("seed: created=%v err=%v", created, err)
	}
	return uid
}

func TestToggleFavoriteConcurrent(t *testing.T) {
	r := emulatorRepo(t)
	ctx := context.Background()
	uid := seedUser(t, r)

	// an even number of concurrent toggles must leave the list unchanged
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.ToggleFavorite(ctx, uid, "ex-1"); err != nil {
				t.Errorf("toggle: %v", err)
			}
		}()
	}
	wg.Wait()

	p, err := r.Get(ctx, uid)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Favorites) != 0 {
		t.Errorf("favorites = %v, want empty", p.Favorites)
	}
}

func TestRedeemReferralOnce(t *testing.T) {
	r := emulatorRepo(t)
	ctx := context.Background()
	referrer := seedUser(t, r)
	uid := seedUser(t, r)

	if err := r.RedeemReferral(ctx, uid, referrer); err != nil {
		t.Fatal(err)
	}
	if err := r.RedeemReferral(ctx, uid, referrer); !IsErrConflict(err) {
		t.Fatalf("second redeem: %v", err)
	}
	p, err := r.Get(ctx, referrer)
	if err != nil {
		t.Fatal(err)
	}
	if p.ReferralCount != 1 {
		t.Errorf("referralCount = %d", p.ReferralCount)
	}

	claimed, err := r.ClaimReferralReward(ctx, uid)
	if err != nil || !claimed {
		t.Fatalf("claim: %v %v", claimed, err)
	}
	if claimed, _ := r.ClaimReferralReward(ctx, uid); claimed {
		t.Error("reward claimed twice")
	}
}

func TestCreateIsIdempotent(t *testing.T) {
	r := emulatorRepo(t)
	uid := seedUser(t, r)
	created, err := r.Create(context.Background(), Profile{UID: uid})
	if err != nil || created {
		t.Errorf("second create: created=%v err=%v", created, err)
	}
}
