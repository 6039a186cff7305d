package match

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lapizarra/backend/internal/domain/team"

	"github.com/jonboulle/clockwork"
)

type fakeStore struct {
	mu       sync.Mutex
	matches  map[string]Match
	saves    int
	applied  []Totals
	applyErr error
}

func newFakeStore() *fakeStore { return &fakeStore{matches: map[string]Match{}} }

func (f *fakeStore) Create(_ context.Context, m Match) (*Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = "m" + string(rune('0'+len(f.matches)))
	f.matches[m.ID] = m
	return &m, nil
}

func (f *fakeStore) Get(_ context.Context, id string) (*Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matches[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (f *fakeStore) ListByTeam(_ context.Context, teamID string, _ int) ([]Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Match{}
	for _, m := range f.matches {
		if m.TeamID == teamID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.matches, id)
	return nil
}

func (f *fakeStore) SaveState(_ context.Context, id string, st State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.matches[id]
	m.State = st
	f.matches[id] = m
	f.saves++
	return nil
}

func (f *fakeStore) ApplyTotals(_ context.Context, m Match, t Totals) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return f.applyErr
	}
	f.matches[m.ID] = m
	f.applied = append(f.applied, t)
	return nil
}

type fakeTeams struct {
	roles   map[string]string // uid -> role on team "t1"
	players []team.Player
}

func (f *fakeTeams) Access(_ context.Context, teamID, uid string) (*team.Team, string, error) {
	if teamID != "t1" {
		return nil, "", team.ErrNotFound
	}
	return &team.Team{ID: "t1", OwnerID: "coach"}, f.roles[uid], nil
}

func (f *fakeTeams) ListPlayers(_ context.Context, _ string) ([]team.Player, error) {
	return f.players, nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	views []View
}

func (p *recordingPublisher) Publish(_ string, v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.views = append(p.views, v.(View))
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.views)
}

func setup(t *testing.T) (*Service, *fakeStore, *clockwork.FakeClock, *recordingPublisher) {
	t.Helper()
	store := newFakeStore()
	teams := &fakeTeams{
		roles: map[string]string{"coach": team.RoleOwner, "helper": team.RoleAssist, "parent": team.RoleViewer},
		players: []team.Player{
			{ID: "p1", Name: "Sergio", Number: 1, Active: true},
			{ID: "p2", Name: "Dani", Number: 10, Active: true},
			{ID: "p3", Name: "Injured", Number: 7, Active: false},
		},
	}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC))
	pub := &recordingPublisher{}
	svc := NewService(store, teams, clock)
	svc.SetPublisher(pub)
	return svc, store, clock, pub
}

func createMatch(t *testing.T, svc *Service) *Match {
	t.Helper()
	m, err := svc.Create(context.Background(), "coach", CreateMatchInput{TeamID: "t1", Opponent: "Rival FS"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return m
}

func TestCreate(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx := context.Background()

	m := createMatch(t, svc)
	if len(m.Players) != 2 {
		t.Errorf("inactive players should be left out: %+v", m.Players)
	}
	if m.HomeAway != "home" || m.PeriodLengthSec != DefaultPeriodSeconds || m.Period != 1 {
		t.Errorf("defaults not applied: %+v", m)
	}

	picked, err := svc.Create(ctx, "coach", CreateMatchInput{TeamID: "t1", Opponent: "X", PlayerIDs: []string{"p3"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(picked.Players) != 1 || picked.Players[0].PlayerID != "p3" {
		t.Errorf("explicit call-up = %+v", picked.Players)
	}

	tests := []struct {
		name string
		uid  string
		in   CreateMatchInput
		is   func(error) bool
	}{
		{"no opponent", "coach", CreateMatchInput{TeamID: "t1"}, IsErrBadRequest},
		{"bad homeAway", "coach", CreateMatchInput{TeamID: "t1", Opponent: "X", HomeAway: "neutral"}, IsErrBadRequest},
		{"bad date", "coach", CreateMatchInput{TeamID: "t1", Opponent: "X", ScheduledAt: "tomorrow"}, IsErrBadRequest},
		{"unknown player", "coach", CreateMatchInput{TeamID: "t1", Opponent: "X", PlayerIDs: []string{"nope"}}, IsErrBadRequest},
		{"viewer", "parent", CreateMatchInput{TeamID: "t1", Opponent: "X"}, IsErrUnauthorized},
		{"stranger", "nobody", CreateMatchInput{TeamID: "t1", Opponent: "X"}, IsErrUnauthorized},
		{"no team", "coach", CreateMatchInput{TeamID: "t9", Opponent: "X"}, IsErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.uid, tt.in)
			if !tt.is(err) {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}

func TestMutationsPublishAndAuthorize(t *testing.T) {
	svc, _, clock, pub := setup(t)
	ctx := context.Background()
	m := createMatch(t, svc)

	if _, err := svc.SetOnCourt(ctx, "helper", m.ID, CourtInput{PlayerID: "p1", OnCourt: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Start(ctx, "coach", m.ID); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Minute)
	v, err := svc.AddGoal(ctx, "coach", m.ID, GoalInput{Side: SideLocal, PlayerID: "p1"})
	if err != nil {
		t.Fatal(err)
	}
	if v.Score.Local != 1 || v.ElapsedMs != 120_000 {
		t.Errorf("view = score %+v elapsed %d", v.Score, v.ElapsedMs)
	}
	if pub.count() != 3 {
		t.Errorf("published %d views, want 3", pub.count())
	}

	if _, err := svc.Pause(ctx, "parent", m.ID); !IsErrUnauthorized(err) {
		t.Errorf("viewer mutated board: %v", err)
	}
	if _, err := svc.Get(ctx, "parent", m.ID); err != nil {
		t.Errorf("viewer cannot read: %v", err)
	}
	if _, err := svc.Get(ctx, "nobody", m.ID); !IsErrUnauthorized(err) {
		t.Errorf("stranger read board: %v", err)
	}
	if _, err := svc.AdjustStat(ctx, "coach", m.ID, StatInput{PlayerID: "p1", Stat: "tackles", Delta: 1}); !IsErrBadRequest(err) {
		t.Errorf("unknown stat: %v", err)
	}
	if pub.count() != 3 {
		t.Errorf("failed mutations must not publish")
	}
}

func TestFlushDirty(t *testing.T) {
	svc, store, clock, pub := setup(t)
	ctx := context.Background()
	m := createMatch(t, svc)

	if _, err := svc.AdjustRivalFouls(ctx, "coach", m.ID, 1); err != nil {
		t.Fatal(err)
	}
	if err := svc.FlushDirty(ctx); err != nil {
		t.Fatal(err)
	}
	if store.saves != 1 {
		t.Fatalf("saves = %d, want 1", store.saves)
	}
	if err := svc.FlushDirty(ctx); err != nil {
		t.Fatal(err)
	}
	if store.saves != 1 {
		t.Errorf("clean board saved again")
	}
	if got := store.matches[m.ID].TeamFouls.Rival; got != 1 {
		t.Errorf("persisted rival fouls = %d", got)
	}

	// a running clock is persisted every tick and its expiry is pushed
	if _, err := svc.Start(ctx, "coach", m.ID); err != nil {
		t.Fatal(err)
	}
	before := pub.count()
	clock.Advance(time.Duration(DefaultPeriodSeconds+1) * time.Second)
	if err := svc.FlushDirty(ctx); err != nil {
		t.Fatal(err)
	}
	if pub.count() != before+1 {
		t.Errorf("expiry not published")
	}
	if store.matches[m.ID].Timer.Running {
		t.Errorf("persisted timer still running")
	}

	clock.Advance(idleEviction)
	if err := svc.FlushDirty(ctx); err != nil {
		t.Fatal(err)
	}
	if svc.LiveCount() != 0 {
		t.Errorf("idle board not evicted")
	}
}

func TestFinalizeReopen(t *testing.T) {
	svc, store, _, _ := setup(t)
	ctx := context.Background()
	m := createMatch(t, svc)

	if _, err := svc.AddGoal(ctx, "coach", m.ID, GoalInput{Side: SideRival}); err != nil {
		t.Fatal(err)
	}
	v, err := svc.Finalize(ctx, "coach", m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Finished || len(store.applied) != 1 || store.applied[0].Team.Losses != 1 {
		t.Fatalf("finalize: finished=%v applied=%+v", v.Finished, store.applied)
	}
	if _, err := svc.Finalize(ctx, "coach", m.ID); !IsErrConflict(err) {
		t.Errorf("double finalize: %v", err)
	}
	if err := svc.Delete(ctx, "coach", m.ID); !IsErrConflict(err) {
		t.Errorf("delete finished match: %v", err)
	}

	v, err = svc.Reopen(ctx, "coach", m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if v.Finished || store.applied[1].Team.Losses != -1 {
		t.Errorf("reopen: finished=%v revert=%+v", v.Finished, store.applied[1])
	}
	if err := svc.Delete(ctx, "coach", m.ID); err != nil {
		t.Errorf("delete reopened match: %v", err)
	}
}

func TestFinalizeRollsBackOnWriteError(t *testing.T) {
	svc, store, _, _ := setup(t)
	ctx := context.Background()
	m := createMatch(t, svc)

	store.applyErr = errors.New("firestore down")
	if _, err := svc.Finalize(ctx, "coach", m.ID); err == nil {
		t.Fatal("expected error")
	}
	v, err := svc.Get(ctx, "coach", m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if v.Finished || v.Applied != nil {
		t.Errorf("board not restored: %+v", v.State)
	}

	store.applyErr = nil
	if _, err := svc.Finalize(ctx, "coach", m.ID); err != nil {
		t.Errorf("retry finalize: %v", err)
	}
}

// evictingTeams runs onAccess once, between the board lookup and the
// mutation, to line up an autosave tick with an in-flight request.
type evictingTeams struct {
	*fakeTeams
	once     sync.Once
	onAccess func()
}

func (f *evictingTeams) Access(ctx context.Context, teamID, uid string) (*team.Team, string, error) {
	if f.onAccess != nil {
		f.once.Do(f.onAccess)
	}
	return f.fakeTeams.Access(ctx, teamID, uid)
}

func TestMutationSurvivesEviction(t *testing.T) {
	store := newFakeStore()
	teams := &evictingTeams{fakeTeams: &fakeTeams{roles: map[string]string{"coach": team.RoleOwner}}}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC))
	svc := NewService(store, teams, clock)
	ctx := context.Background()

	m := createMatch(t, svc)
	if _, err := svc.Get(ctx, "coach", m.ID); err != nil {
		t.Fatal(err)
	}
	clock.Advance(idleEviction + time.Minute)

	teams.onAccess = func() {
		if err := svc.FlushDirty(ctx); err != nil {
			t.Errorf("FlushDirty: %v", err)
		}
		if svc.LiveCount() != 0 {
			t.Errorf("board not evicted")
		}
	}
	if _, err := svc.AddGoal(ctx, "coach", m.ID, GoalInput{Side: SideRival}); err != nil {
		t.Fatal(err)
	}

	v, err := svc.Get(ctx, "coach", m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if v.Score.Rival != 1 {
		t.Fatalf("rival score = %d, want 1", v.Score.Rival)
	}
	if err := svc.FlushDirty(ctx); err != nil {
		t.Fatal(err)
	}
	if got := store.matches[m.ID].Score.Rival; got != 1 {
		t.Errorf("persisted rival score = %d, want 1", got)
	}
}

func TestConcurrentGoalsWithAutosave(t *testing.T) {
	svc, store, clock, _ := setup(t)
	ctx := context.Background()
	m := createMatch(t, svc)

	const goals = 25
	stop := make(chan struct{})
	flushed := make(chan struct{})
	go func() {
		defer close(flushed)
		for {
			select {
			case <-stop:
				return
			default:
			}
			clock.Advance(idleEviction)
			_ = svc.FlushDirty(ctx)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < goals; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.AddGoal(ctx, "coach", m.ID, GoalInput{Side: SideRival}); err != nil {
				t.Errorf("AddGoal: %v", err)
			}
		}()
	}
	wg.Wait()
	close(stop)
	<-flushed

	if err := svc.FlushDirty(ctx); err != nil {
		t.Fatal(err)
	}
	store.mu.Lock()
	got := store.matches[m.ID].Score.Rival
	store.mu.Unlock()
	if got != goals {
		t.Errorf("persisted rival score = %d, want %d", got, goals)
	}
}
