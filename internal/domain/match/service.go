package match

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lapizarra/backend/internal/domain/team"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Live boards that are paused, saved and untouched for this long are
// dropped from memory by FlushDirty.
const idleEviction = 30 * time.Minute

type Store interface {
	Create(ctx context.Context, m Match) (*Match, error)
	Get(ctx context.Context, matchID string) (*Match, error)
	ListByTeam(ctx context.Context, teamID string, limit int) ([]Match, error)
	Delete(ctx context.Context, matchID string) error
	SaveState(ctx context.Context, matchID string, st State) error
	ApplyTotals(ctx context.Context, m Match, t Totals) error
}

type Teams interface {
	Access(ctx context.Context, teamID, uid string) (*team.Team, string, error)
	ListPlayers(ctx context.Context, teamID string) ([]team.Player, error)
}

// Publisher fans a board view out to live viewers.
type Publisher interface {
	Publish(matchID string, v any)
}

type liveEntry struct {
	mu      sync.Mutex
	meta    Match
	board   *Board
	version uint64
	saved   uint64
	touched time.Time
	evicted bool
}

type Service struct {
	store Store
	teams Teams
	clock clockwork.Clock
	pub   Publisher

	mu   sync.Mutex
	live map[string]*liveEntry
}

func NewService(store Store, teams Teams, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{store: store, teams: teams, clock: clock, live: map[string]*liveEntry{}}
}

func (s *Service) SetPublisher(p Publisher) {
	s.pub = p
}

func (s *Service) authorize(ctx context.Context, teamID, uid string, edit bool) error {
	_, role, err := s.teams.Access(ctx, teamID, uid)
	if err != nil {
		if team.IsErrNotFound(err) {
			return fmt.Errorf("%w: team not found", ErrNotFound)
		}
		return err
	}
	if role == "" {
		return fmt.Errorf("%w: not a member of this team", ErrUnauthorized)
	}
	if edit && !team.CanEdit(role) {
		return fmt.Errorf("%w: read-only access to this team", ErrUnauthorized)
	}
	return nil
}

// entry returns the in-memory board for matchID, loading it on first use.
func (s *Service) entry(ctx context.Context, matchID string) (*liveEntry, error) {
	s.mu.Lock()
	e, ok := s.live[matchID]
	s.mu.Unlock()
	if ok {
		return e, nil
	}

	m, err := s.store.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.live[matchID]; ok {
		return e, nil
	}
	e = &liveEntry{meta: *m, board: NewBoard(m.State, s.clock), touched: s.clock.Now()}
	s.live[matchID] = e
	return e, nil
}

// acquire locks e, reloading the board if it was evicted while the caller
// was not holding the lock. The returned entry is locked.
func (s *Service) acquire(ctx context.Context, matchID string, e *liveEntry) (*liveEntry, error) {
	for {
		e.mu.Lock()
		if !e.evicted {
			return e, nil
		}
		e.mu.Unlock()
		next, err := s.entry(ctx, matchID)
		if err != nil {
			return nil, err
		}
		e = next
	}
}

// drop removes e from the live set. Called with e.mu held.
func (s *Service) drop(matchID string, e *liveEntry) {
	e.evicted = true
	s.mu.Lock()
	if s.live[matchID] == e {
		delete(s.live, matchID)
	}
	s.mu.Unlock()
}

// view must be called with e.mu held.
func (e *liveEntry) view() View {
	m := e.meta
	m.State = e.board.Snapshot()
	return View{
		Match:       m,
		RemainingMs: e.board.Remaining().Milliseconds(),
		ElapsedMs:   e.board.Elapsed().Milliseconds(),
	}
}

func (s *Service) publish(matchID string, v View) {
	if s.pub != nil {
		s.pub.Publish(matchID, v)
	}
}

// mutate runs fn against the board under the entry lock and pushes the new
// view to live viewers.
func (s *Service) mutate(ctx context.Context, uid, matchID string, fn func(b *Board) error) (*View, error) {
	e, err := s.entry(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, e.meta.TeamID, uid, true); err != nil {
		return nil, err
	}

	if e, err = s.acquire(ctx, matchID, e); err != nil {
		return nil, err
	}
	if err := fn(e.board); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.version++
	e.touched = s.clock.Now()
	v := e.view()
	e.mu.Unlock()

	s.publish(matchID, v)
	return &v, nil
}

func (s *Service) Create(ctx context.Context, uid string, in CreateMatchInput) (*Match, error) {
	in.Trim()
	if in.TeamID == "" {
		return nil, fmt.Errorf("%w: teamId is required", ErrBadRequest)
	}
	if in.Opponent == "" {
		return nil, fmt.Errorf("%w: opponent is required", ErrBadRequest)
	}
	switch in.HomeAway {
	case "":
		in.HomeAway = "home"
	case "home", "away":
	default:
		return nil, fmt.Errorf("%w: homeAway must be home or away", ErrBadRequest)
	}
	if in.PeriodLengthSec != 0 && (in.PeriodLengthSec < 60 || in.PeriodLengthSec > 3600) {
		return nil, fmt.Errorf("%w: periodLengthSec must be 60-3600", ErrBadRequest)
	}
	now := s.clock.Now().UTC()
	scheduled := now
	if in.ScheduledAt != "" {
		t, err := time.Parse(time.RFC3339, in.ScheduledAt)
		if err != nil {
			return nil, fmt.Errorf("%w: scheduledAt must be RFC3339", ErrBadRequest)
		}
		scheduled = t.UTC()
	}

	if err := s.authorize(ctx, in.TeamID, uid, true); err != nil {
		return nil, err
	}
	roster, err := s.teams.ListPlayers(ctx, in.TeamID)
	if err != nil {
		return nil, err
	}
	lineup, err := selectLineup(roster, in.PlayerIDs)
	if err != nil {
		return nil, err
	}

	return s.store.Create(ctx, Match{
		TeamID:      in.TeamID,
		OwnerID:     uid,
		Opponent:    in.Opponent,
		Competition: in.Competition,
		HomeAway:    in.HomeAway,
		ScheduledAt: scheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
		State:       NewState(in.PeriodLengthSec, lineup),
	})
}

// selectLineup picks the called-up players, or every active player when ids
// is empty.
func selectLineup(roster []team.Player, ids []string) ([]PlayerLine, error) {
	byID := make(map[string]team.Player, len(roster))
	for _, p := range roster {
		byID[p.ID] = p
	}
	out := []PlayerLine{}
	if len(ids) == 0 {
		for _, p := range roster {
			if p.Active {
				out = append(out, PlayerLine{PlayerID: p.ID, Name: p.Name, Number: p.Number})
			}
		}
		return out, nil
	}
	seen := map[string]bool{}
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: player %s is not on the roster", ErrBadRequest, id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, PlayerLine{PlayerID: p.ID, Name: p.Name, Number: p.Number})
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, uid, matchID string) (*View, error) {
	e, err := s.entry(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, e.meta.TeamID, uid, false); err != nil {
		return nil, err
	}
	if e, err = s.acquire(ctx, matchID, e); err != nil {
		return nil, err
	}
	v := e.view()
	e.mu.Unlock()
	return &v, nil
}

func (s *Service) ListByTeam(ctx context.Context, uid, teamID string, limit int) ([]Match, error) {
	if teamID == "" {
		return nil, fmt.Errorf("%w: teamId is required", ErrBadRequest)
	}
	if err := s.authorize(ctx, teamID, uid, false); err != nil {
		return nil, err
	}
	out, err := s.store.ListByTeam(ctx, teamID, limit)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	entries := make(map[int]*liveEntry)
	for i := range out {
		if e, ok := s.live[out[i].ID]; ok {
			entries[i] = e
		}
	}
	s.mu.Unlock()

	for i, e := range entries {
		e.mu.Lock()
		if !e.evicted {
			out[i].State = e.board.Snapshot()
		}
		e.mu.Unlock()
	}
	return out, nil
}

// Delete removes a match. A finished match must be reopened first so its
// totals are reverted.
func (s *Service) Delete(ctx context.Context, uid, matchID string) error {
	e, err := s.entry(ctx, matchID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, e.meta.TeamID, uid, true); err != nil {
		return err
	}
	if e, err = s.acquire(ctx, matchID, e); err != nil {
		return err
	}
	defer e.mu.Unlock()
	if e.board.st.Finished {
		return fmt.Errorf("%w: reopen the match before deleting it", ErrConflict)
	}
	if err := s.store.Delete(ctx, matchID); err != nil {
		return err
	}
	s.drop(matchID, e)
	return nil
}

func (s *Service) Start(ctx context.Context, uid, matchID string) (*View, error) {
	return s.mutate(ctx, uid, matchID, (*Board).Start)
}

func (s *Service) Pause(ctx context.Context, uid, matchID string) (*View, error) {
	return s.mutate(ctx, uid, matchID, (*Board).Pause)
}

func (s *Service) ResetTimer(ctx context.Context, uid, matchID string) (*View, error) {
	return s.mutate(ctx, uid, matchID, (*Board).ResetTimer)
}

func (s *Service) NextPeriod(ctx context.Context, uid, matchID string) (*View, error) {
	return s.mutate(ctx, uid, matchID, (*Board).NextPeriod)
}

func (s *Service) SetOnCourt(ctx context.Context, uid, matchID string, in CourtInput) (*View, error) {
	return s.mutate(ctx, uid, matchID, func(b *Board) error {
		return b.SetOnCourt(in.PlayerID, in.OnCourt)
	})
}

func (s *Service) AdjustStat(ctx context.Context, uid, matchID string, in StatInput) (*View, error) {
	return s.mutate(ctx, uid, matchID, func(b *Board) error {
		return b.AdjustStat(in.PlayerID, in.Stat, in.Delta)
	})
}

func (s *Service) AdjustRivalFouls(ctx context.Context, uid, matchID string, delta int) (*View, error) {
	return s.mutate(ctx, uid, matchID, func(b *Board) error {
		return b.AdjustRivalFouls(delta)
	})
}

func (s *Service) CallTimeout(ctx context.Context, uid, matchID string, side Side) (*View, error) {
	return s.mutate(ctx, uid, matchID, func(b *Board) error {
		return b.CallTimeout(side)
	})
}

func (s *Service) AddGoal(ctx context.Context, uid, matchID string, in GoalInput) (*View, error) {
	return s.mutate(ctx, uid, matchID, func(b *Board) error {
		_, err := b.AddGoal(in)
		return err
	})
}

func (s *Service) RemoveGoal(ctx context.Context, uid, matchID, goalID string) (*View, error) {
	return s.mutate(ctx, uid, matchID, func(b *Board) error {
		return b.RemoveGoal(goalID)
	})
}

// Save flushes the board to Firestore now.
func (s *Service) Save(ctx context.Context, uid, matchID string) (*View, error) {
	e, err := s.entry(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, e.meta.TeamID, uid, true); err != nil {
		return nil, err
	}
	if e, err = s.acquire(ctx, matchID, e); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	if err := s.store.SaveState(ctx, matchID, e.board.Snapshot()); err != nil {
		return nil, err
	}
	e.saved = e.version
	v := e.view()
	return &v, nil
}

// Finalize closes the match and applies its totals to the team record and
// season stats. The board is restored if the write fails.
func (s *Service) Finalize(ctx context.Context, uid, matchID string) (*View, error) {
	return s.settleTotals(ctx, uid, matchID, (*Board).Finalize)
}

// Reopen reverts exactly the totals applied by Finalize.
func (s *Service) Reopen(ctx context.Context, uid, matchID string) (*View, error) {
	return s.settleTotals(ctx, uid, matchID, (*Board).Reopen)
}

func (s *Service) settleTotals(ctx context.Context, uid, matchID string, fn func(*Board) (Totals, error)) (*View, error) {
	e, err := s.entry(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, e.meta.TeamID, uid, true); err != nil {
		return nil, err
	}

	if e, err = s.acquire(ctx, matchID, e); err != nil {
		return nil, err
	}
	prev := e.board.Snapshot()
	totals, err := fn(e.board)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	m := e.meta
	m.State = e.board.Snapshot()
	if err := s.store.ApplyTotals(ctx, m, totals); err != nil {
		e.board = NewBoard(prev, s.clock)
		e.mu.Unlock()
		return nil, err
	}
	e.version++
	e.saved = e.version
	e.touched = s.clock.Now()
	v := e.view()
	e.mu.Unlock()

	s.publish(matchID, v)
	return &v, nil
}

// Watch authorizes a live viewer and returns the current board.
func (s *Service) Watch(ctx context.Context, uid, matchID string) (*View, error) {
	return s.Get(ctx, uid, matchID)
}

// FlushDirty persists every board changed since its last save and evicts
// idle ones. A running clock that ran out since the last tick is pushed to
// viewers as a stopped board.
func (s *Service) FlushDirty(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.live))
	entries := make([]*liveEntry, 0, len(s.live))
	for id, e := range s.live {
		ids = append(ids, id)
		entries = append(entries, e)
	}
	s.mu.Unlock()

	var firstErr error
	now := s.clock.Now()
	for i, e := range entries {
		id := ids[i]
		e.mu.Lock()
		if e.evicted {
			e.mu.Unlock()
			continue
		}
		wasRunning := e.board.st.Timer.Running
		st := e.board.Snapshot()
		var expired *View
		if wasRunning && !st.Timer.Running {
			e.version++
			v := e.view()
			expired = &v
		}
		dirty := e.version != e.saved || st.Timer.Running
		if dirty {
			if err := s.store.SaveState(ctx, id, st); err != nil {
				log.Warn().Err(err).Str("matchId", id).Msg("autosave failed")
				if firstErr == nil {
					firstErr = err
				}
			} else {
				e.saved = e.version
			}
		}
		if e.version == e.saved && !st.Timer.Running && now.Sub(e.touched) >= idleEviction {
			s.drop(id, e)
		}
		e.mu.Unlock()

		if expired != nil {
			s.publish(id, *expired)
		}
	}
	return firstErr
}

// LiveCount is the number of boards held in memory.
func (s *Service) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}
