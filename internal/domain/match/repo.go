package match

import (
	"context"
	"fmt"
	"time"

	"lapizarra/backend/internal/firebase"

	"cloud.google.com/go/firestore"
	"github.com/jonboulle/clockwork"
	"google.golang.org/api/iterator"
)

type Repo struct {
	fs    *firestore.Client
	clock clockwork.Clock
}

func NewRepo(fs *firestore.Client, clock clockwork.Clock) *Repo {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Repo{fs: fs, clock: clock}
}

func (r *Repo) col() *firestore.CollectionRef {
	return r.fs.Collection("matches")
}

func (r *Repo) Create(ctx context.Context, m Match) (*Match, error) {
	ref := r.col().NewDoc()
	m.ID = ref.ID
	if _, err := ref.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}
	return &m, nil
}

func (r *Repo) Get(ctx context.Context, matchID string) (*Match, error) {
	doc, err := r.col().Doc(matchID).Get(ctx)
	if err != nil {
		if firebase.IsNotFound(err) {
			return nil, fmt.Errorf("%w: match not found", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	var m Match
	if err := doc.DataTo(&m); err != nil {
		return nil, fmt.Errorf("failed to decode match: %w", err)
	}
	m.ID = doc.Ref.ID
	return &m, nil
}

func (r *Repo) ListByTeam(ctx context.Context, teamID string, limit int) ([]Match, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	iter := r.col().
		Where("teamId", "==", teamID).
		OrderBy("scheduledAt", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	out := []Match{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list matches: %w", err)
		}
		var m Match
		if err := doc.DataTo(&m); err != nil {
			continue
		}
		m.ID = doc.Ref.ID
		out = append(out, m)
	}
	return out, nil
}

func (r *Repo) Delete(ctx context.Context, matchID string) error {
	if _, err := r.col().Doc(matchID).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete match: %w", err)
	}
	return nil
}

func stateUpdates(st State, now time.Time) []firestore.Update {
	var applied any
	if st.Applied != nil {
		applied = *st.Applied
	}
	return []firestore.Update{
		{Path: "periodLengthSec", Value: st.PeriodLengthSec},
		{Path: "period", Value: st.Period},
		{Path: "score", Value: st.Score},
		{Path: "timer", Value: st.Timer},
		{Path: "players", Value: st.Players},
		{Path: "goals", Value: st.Goals},
		{Path: "teamFouls", Value: st.TeamFouls},
		{Path: "timeouts", Value: st.Timeouts},
		{Path: "finished", Value: st.Finished},
		{Path: "applied", Value: applied},
		{Path: "updatedAt", Value: now},
	}
}

// SaveState writes the board fields of the match document.
func (r *Repo) SaveState(ctx context.Context, matchID string, st State) error {
	if _, err := r.col().Doc(matchID).Update(ctx, stateUpdates(st, r.clock.Now().UTC())); err != nil {
		if firebase.IsNotFound(err) {
			return fmt.Errorf("%w: match not found", ErrNotFound)
		}
		return fmt.Errorf("failed to save match state: %w", err)
	}
	return nil
}

// ApplyTotals writes the board state and adds t to the team record and to
// each player's season stats in a single transaction. Players that were
// removed from the roster since the match are skipped.
func (r *Repo) ApplyTotals(ctx context.Context, m Match, t Totals) error {
	teamRef := r.fs.Collection("teams").Doc(m.TeamID)
	matchRef := r.col().Doc(m.ID)
	now := r.clock.Now().UTC()

	return r.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		type playerWrite struct {
			ref *firestore.DocumentRef
			d   PlayerDelta
		}
		writes := make([]playerWrite, 0, len(t.Players))
		for _, d := range t.Players {
			ref := teamRef.Collection("players").Doc(d.PlayerID)
			if _, err := tx.Get(ref); err != nil {
				if firebase.IsNotFound(err) {
					continue
				}
				return err
			}
			writes = append(writes, playerWrite{ref: ref, d: d})
		}

		if err := tx.Update(matchRef, stateUpdates(m.State, now)); err != nil {
			return err
		}
		if err := tx.Update(teamRef, []firestore.Update{
			{Path: "record.played", Value: firestore.Increment(t.Team.Played)},
			{Path: "record.wins", Value: firestore.Increment(t.Team.Wins)},
			{Path: "record.draws", Value: firestore.Increment(t.Team.Draws)},
			{Path: "record.losses", Value: firestore.Increment(t.Team.Losses)},
			{Path: "record.goalsFor", Value: firestore.Increment(t.Team.GoalsFor)},
			{Path: "record.goalsAgainst", Value: firestore.Increment(t.Team.GoalsAgainst)},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}
		for _, w := range writes {
			if err := tx.Update(w.ref, []firestore.Update{
				{Path: "seasonStats.matches", Value: firestore.Increment(w.d.Matches)},
				{Path: "seasonStats.goals", Value: firestore.Increment(w.d.Goals)},
				{Path: "seasonStats.assists", Value: firestore.Increment(w.d.Assists)},
				{Path: "seasonStats.yellowCards", Value: firestore.Increment(w.d.YellowCards)},
				{Path: "seasonStats.redCards", Value: firestore.Increment(w.d.RedCards)},
				{Path: "seasonStats.saves", Value: firestore.Increment(w.d.Saves)},
				{Path: "seasonStats.secondsPlayed", Value: firestore.Increment(w.d.SecondsPlayed)},
			}); err != nil {
				return err
			}
		}
		return nil
	})
}
