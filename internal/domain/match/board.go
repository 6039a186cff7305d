package match

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Board applies scorekeeping operations to a match State. Every operation
// first settles the timer so that on-court time is credited up to now.
// A Board is not safe for concurrent use; the Service serializes access.
type Board struct {
	st    State
	clock clockwork.Clock
}

// NewState returns a fresh board for the given lineup.
func NewState(periodLengthSec int, players []PlayerLine) State {
	if periodLengthSec <= 0 {
		periodLengthSec = DefaultPeriodSeconds
	}
	lines := make([]PlayerLine, 0, len(players))
	for _, p := range players {
		lines = append(lines, PlayerLine{PlayerID: p.PlayerID, Name: p.Name, Number: p.Number})
	}
	return State{
		PeriodLengthSec: periodLengthSec,
		Period:          1,
		Timer:           Timer{RemainingMs: int64(periodLengthSec) * 1000},
		Players:         lines,
		Goals:           []GoalEvent{},
	}
}

func NewBoard(st State, clock clockwork.Clock) *Board {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Board{st: st.Clone(), clock: clock}
}

// Snapshot settles the board and returns a copy of its state.
func (b *Board) Snapshot() State {
	b.settle()
	return b.st.Clone()
}

// Remaining is the time left in the current period.
func (b *Board) Remaining() time.Duration {
	if !b.st.Timer.Running {
		return time.Duration(b.st.Timer.RemainingMs) * time.Millisecond
	}
	left := b.st.Timer.EndsAt.Sub(b.clock.Now())
	if left < 0 {
		return 0
	}
	return left
}

// Elapsed is the time played in the current period.
func (b *Board) Elapsed() time.Duration {
	return b.st.periodLength() - b.Remaining()
}

// settle credits running time to on-court players up to min(now, EndsAt)
// and stops the timer once the period has run out.
func (b *Board) settle() {
	t := &b.st.Timer
	if !t.Running {
		return
	}
	now := b.clock.Now()
	end := now
	if t.EndsAt.Before(end) {
		end = t.EndsAt
	}
	if d := end.Sub(t.SettledAt); d > 0 {
		for i := range b.st.Players {
			if b.st.Players[i].OnCourt {
				b.st.Players[i].PlayedMs += d.Milliseconds()
			}
		}
		t.SettledAt = end
	}
	if !now.Before(t.EndsAt) {
		t.Running = false
		t.RemainingMs = 0
		t.EndsAt = time.Time{}
	}
}

func (b *Board) open() error {
	if b.st.Finished {
		return fmt.Errorf("%w: match is finished", ErrConflict)
	}
	return nil
}

func (b *Board) player(id string) (*PlayerLine, error) {
	for i := range b.st.Players {
		if b.st.Players[i].PlayerID == id {
			return &b.st.Players[i], nil
		}
	}
	return nil, fmt.Errorf("%w: player %s is not in this match", ErrBadRequest, id)
}

func (b *Board) onCourtCount() int {
	n := 0
	for _, p := range b.st.Players {
		if p.OnCourt {
			n++
		}
	}
	return n
}

func (b *Board) Start() error {
	if err := b.open(); err != nil {
		return err
	}
	b.settle()
	t := &b.st.Timer
	if t.Running {
		return nil
	}
	if t.RemainingMs <= 0 {
		return fmt.Errorf("%w: period %d is over", ErrBadRequest, b.st.Period)
	}
	now := b.clock.Now()
	t.Running = true
	t.EndsAt = now.Add(time.Duration(t.RemainingMs) * time.Millisecond)
	t.SettledAt = now
	return nil
}

func (b *Board) Pause() error {
	if err := b.open(); err != nil {
		return err
	}
	b.pause()
	return nil
}

func (b *Board) pause() {
	b.settle()
	t := &b.st.Timer
	if !t.Running {
		return
	}
	t.RemainingMs = t.EndsAt.Sub(t.SettledAt).Milliseconds()
	t.Running = false
	t.EndsAt = time.Time{}
}

// ResetTimer stops the clock and restores the full period length.
func (b *Board) ResetTimer() error {
	if err := b.open(); err != nil {
		return err
	}
	b.pause()
	b.st.Timer.RemainingMs = b.st.periodLength().Milliseconds()
	return nil
}

// NextPeriod stops the clock and moves to the next period with a fresh
// countdown, clearing accumulated team fouls and timeouts.
func (b *Board) NextPeriod() error {
	if err := b.open(); err != nil {
		return err
	}
	if b.st.Period >= MaxPeriods {
		return fmt.Errorf("%w: no periods left", ErrBadRequest)
	}
	b.pause()
	b.st.Period++
	b.st.Timer.RemainingMs = b.st.periodLength().Milliseconds()
	b.st.TeamFouls = PerSide{}
	b.st.Timeouts = PerSide{}
	return nil
}

func (b *Board) SetOnCourt(playerID string, on bool) error {
	if err := b.open(); err != nil {
		return err
	}
	b.settle()
	p, err := b.player(playerID)
	if err != nil {
		return err
	}
	if p.OnCourt == on {
		return nil
	}
	if on {
		if p.RedCards > 0 {
			return fmt.Errorf("%w: player was sent off", ErrBadRequest)
		}
		if b.onCourtCount() >= MaxOnCourt {
			return fmt.Errorf("%w: max %d players on court", ErrBadRequest, MaxOnCourt)
		}
	}
	p.OnCourt = on
	return nil
}

// AdjustStat adds delta to a player counter, clamping at zero. A second
// yellow card implies a red card; a red card takes the player off court.
func (b *Board) AdjustStat(playerID string, stat Stat, delta int) error {
	if err := b.open(); err != nil {
		return err
	}
	if !stat.Valid() {
		return fmt.Errorf("%w: unknown stat %q", ErrBadRequest, stat)
	}
	if delta == 0 {
		return nil
	}
	b.settle()
	p, err := b.player(playerID)
	if err != nil {
		return err
	}

	c := p.counter(stat)
	before := *c
	*c += delta
	if *c < 0 {
		*c = 0
	}
	applied := *c - before

	switch stat {
	case StatFouls:
		f := b.st.TeamFouls.of(SideLocal)
		*f += applied
		if *f < 0 {
			*f = 0
		}
	case StatYellowCards:
		if applied > 0 && p.YellowCards >= 2 && p.RedCards == 0 {
			p.RedCards = 1
		}
	}
	if p.RedCards > 0 {
		p.OnCourt = false
	}
	return nil
}

// AdjustRivalFouls changes the opponent's accumulated fouls for the period.
func (b *Board) AdjustRivalFouls(delta int) error {
	if err := b.open(); err != nil {
		return err
	}
	b.st.TeamFouls.Rival += delta
	if b.st.TeamFouls.Rival < 0 {
		b.st.TeamFouls.Rival = 0
	}
	return nil
}

// CallTimeout pauses the clock and consumes the side's timeout for the period.
func (b *Board) CallTimeout(side Side) error {
	if err := b.open(); err != nil {
		return err
	}
	if !side.Valid() {
		return fmt.Errorf("%w: invalid side", ErrBadRequest)
	}
	used := b.st.Timeouts.of(side)
	if *used >= 1 {
		return fmt.Errorf("%w: %s timeout already used this period", ErrBadRequest, side)
	}
	b.pause()
	*used++
	return nil
}

// AddGoal records a goal. Local goals may name a scorer and an assistant;
// rival goals carry neither.
func (b *Board) AddGoal(in GoalInput) (GoalEvent, error) {
	if err := b.open(); err != nil {
		return GoalEvent{}, err
	}
	if !in.Side.Valid() {
		return GoalEvent{}, fmt.Errorf("%w: invalid side", ErrBadRequest)
	}
	b.settle()

	ev := GoalEvent{
		ID:        uuid.NewString(),
		Side:      in.Side,
		Period:    b.st.Period,
		ElapsedMs: b.Elapsed().Milliseconds(),
		CreatedAt: b.clock.Now().UTC(),
	}

	if in.Side == SideRival {
		b.st.Score.Rival++
		b.st.Goals = append(b.st.Goals, ev)
		return ev, nil
	}

	var scorer, assist *PlayerLine
	if in.PlayerID != "" {
		p, err := b.player(in.PlayerID)
		if err != nil {
			return GoalEvent{}, err
		}
		scorer = p
	}
	if in.AssistID != "" {
		if in.AssistID == in.PlayerID {
			return GoalEvent{}, fmt.Errorf("%w: scorer cannot assist own goal", ErrBadRequest)
		}
		p, err := b.player(in.AssistID)
		if err != nil {
			return GoalEvent{}, err
		}
		assist = p
	}

	b.st.Score.Local++
	if scorer != nil {
		scorer.Goals++
		ev.PlayerID = scorer.PlayerID
	}
	if assist != nil {
		assist.Assists++
		ev.AssistID = assist.PlayerID
	}
	b.st.Goals = append(b.st.Goals, ev)
	return ev, nil
}

// RemoveGoal undoes exactly the effects of a previously recorded goal.
func (b *Board) RemoveGoal(goalID string) error {
	if err := b.open(); err != nil {
		return err
	}
	idx := -1
	for i, g := range b.st.Goals {
		if g.ID == goalID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: goal not found", ErrNotFound)
	}
	b.settle()

	g := b.st.Goals[idx]
	if g.Side == SideRival {
		b.st.Score.Rival = max(b.st.Score.Rival-1, 0)
	} else {
		b.st.Score.Local = max(b.st.Score.Local-1, 0)
		if p, err := b.player(g.PlayerID); err == nil {
			p.Goals = max(p.Goals-1, 0)
		}
		if p, err := b.player(g.AssistID); err == nil {
			p.Assists = max(p.Assists-1, 0)
		}
	}
	b.st.Goals = append(b.st.Goals[:idx], b.st.Goals[idx+1:]...)
	return nil
}

// Finalize stops the clock, marks the match finished and returns the totals
// to apply to season stats. The totals are also kept on the state so that
// Reopen can revert exactly what was applied.
func (b *Board) Finalize() (Totals, error) {
	if err := b.open(); err != nil {
		return Totals{}, err
	}
	b.pause()
	for i := range b.st.Players {
		b.st.Players[i].OnCourt = false
	}
	t := b.totals()
	b.st.Finished = true
	b.st.Applied = &t
	return t.Clone(), nil
}

// Reopen clears the finished flag and returns the totals that must be
// reverted.
func (b *Board) Reopen() (Totals, error) {
	if !b.st.Finished {
		return Totals{}, fmt.Errorf("%w: match is not finished", ErrConflict)
	}
	var applied Totals
	if b.st.Applied != nil {
		applied = b.st.Applied.Clone()
	}
	b.st.Finished = false
	b.st.Applied = nil
	return applied.Negate(), nil
}

func (b *Board) totals() Totals {
	var t Totals
	s := b.st.Score
	t.Team = TeamDelta{Played: 1, GoalsFor: s.Local, GoalsAgainst: s.Rival}
	switch {
	case s.Local > s.Rival:
		t.Team.Wins = 1
	case s.Local < s.Rival:
		t.Team.Losses = 1
	default:
		t.Team.Draws = 1
	}
	for _, p := range b.st.Players {
		if !p.Participated() {
			continue
		}
		t.Players = append(t.Players, PlayerDelta{
			PlayerID:      p.PlayerID,
			Matches:       1,
			Goals:         p.Goals,
			Assists:       p.Assists,
			YellowCards:   p.YellowCards,
			RedCards:      p.RedCards,
			Saves:         p.Saves,
			SecondsPlayed: p.PlayedMs / 1000,
		})
	}
	return t
}
