package team

import (
	"context"
	"fmt"

	"lapizarra/backend/internal/firebase"

	"cloud.google.com/go/firestore"
	"github.com/jonboulle/clockwork"
	"google.golang.org/api/iterator"
)

// Firestore caps a write batch at 500 operations.
const batchLimit = 500

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

func (r *Repo) teams() *firestore.CollectionRef { return r.fs.Collection("teams") }

func (r *Repo) players(teamID string) *firestore.CollectionRef {
	return r.teams().Doc(teamID).Collection("players")
}

func (r *Repo) members() *firestore.CollectionRef { return r.fs.Collection("teamMembers") }

func (r *Repo) CreateTeam(ctx context.Context, t Team) (*Team, error) {
	ref := r.teams().NewDoc()
	t.ID = ref.ID
	if _, err := ref.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}
	return &t, nil
}

func (r *Repo) GetTeam(ctx context.Context, teamID string) (*Team, error) {
	doc, err := r.teams().Doc(teamID).Get(ctx)
	if err != nil {
		if firebase.IsNotFound(err) {
			return nil, fmt.Errorf("%w: team not found", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	var t Team
	if err := doc.DataTo(&t); err != nil {
		return nil, fmt.Errorf("failed to decode team: %w", err)
	}
	t.ID = doc.Ref.ID
	return &t, nil
}

// ListForUser returns teams owned by uid followed by teams uid was invited to.
func (r *Repo) ListForUser(ctx context.Context, uid string) ([]Team, error) {
	out := []Team{}
	seen := map[string]bool{}
	queries := []firestore.Query{
		r.teams().Where("ownerId", "==", uid),
		r.teams().Where("memberIds", "array-contains", uid),
	}
	for _, q := range queries {
		iter := q.Documents(ctx)
		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				iter.Stop()
				return nil, fmt.Errorf("failed to list teams: %w", err)
			}
			if seen[doc.Ref.ID] {
				continue
			}
			var t Team
			if err := doc.DataTo(&t); err != nil {
				continue
			}
			t.ID = doc.Ref.ID
			seen[t.ID] = true
			out = append(out, t)
		}
		iter.Stop()
	}
	return out, nil
}

func (r *Repo) UpdateTeam(ctx context.Context, teamID string, updates map[string]interface{}) error {
	updates["updatedAt"] = r.clock.Now().UTC()
	if _, err := r.teams().Doc(teamID).Update(ctx, firebase.Updates(updates)); err != nil {
		if firebase.IsNotFound(err) {
			return fmt.Errorf("%w: team not found", ErrNotFound)
		}
		return fmt.Errorf("failed to update team: %w", err)
	}
	return nil
}

// DeleteTeam removes the team with its players, attendance and member docs.
func (r *Repo) DeleteTeam(ctx context.Context, teamID string) error {
	teamRef := r.teams().Doc(teamID)
	var refs []*firestore.DocumentRef
	for _, q := range []firestore.Query{
		r.players(teamID).Query,
		teamRef.Collection("attendance").Query,
		r.members().Where("teamId", "==", teamID),
	} {
		docs, err := q.Documents(ctx).GetAll()
		if err != nil {
			return fmt.Errorf("failed to list team documents: %w", err)
		}
		for _, d := range docs {
			refs = append(refs, d.Ref)
		}
	}
	refs = append(refs, teamRef)

	for start := 0; start < len(refs); start += batchLimit {
		end := start + batchLimit
		if end > len(refs) {
			end = len(refs)
		}
		batch := r.fs.Batch()
		for _, ref := range refs[start:end] {
			batch.Delete(ref)
		}
		if _, err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("failed to delete team: %w", err)
		}
	}
	return nil
}

// Access resolves uid's role on the team. An empty role means no access.
func (r *Repo) Access(ctx context.Context, teamID, uid string) (*Team, string, error) {
	t, err := r.GetTeam(ctx, teamID)
	if err != nil {
		return nil, "", err
	}
	if t.OwnerID == uid {
		return t, RoleOwner, nil
	}
	isMember := false
	for _, m := range t.MemberIDs {
		if m == uid {
			isMember = true
			break
		}
	}
	if !isMember {
		return t, "", nil
	}
	m, err := r.GetMember(ctx, teamID, uid)
	if err != nil {
		if IsErrNotFound(err) {
			return t, RoleViewer, nil
		}
		return nil, "", err
	}
	return t, m.Role, nil
}

// --- players ---

func (r *Repo) ListPlayers(ctx context.Context, teamID string) ([]Player, error) {
	iter := r.players(teamID).OrderBy("number", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	out := []Player{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list players: %w", err)
		}
		var p Player
		if err := doc.DataTo(&p); err != nil {
			continue
		}
		p.ID = doc.Ref.ID
		out = append(out, p)
	}
	return out, nil
}

func (r *Repo) GetPlayer(ctx context.Context, teamID, playerID string) (*Player, error) {
	doc, err := r.players(teamID).Doc(playerID).Get(ctx)
	if err != nil {
		if firebase.IsNotFound(err) {
			return nil, fmt.Errorf("%w: player not found", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	var p Player
	if err := doc.DataTo(&p); err != nil {
		return nil, fmt.Errorf("failed to decode player: %w", err)
	}
	p.ID = doc.Ref.ID
	return &p, nil
}

// AddPlayers inserts players after re-checking roster size and number
// uniqueness inside a transaction.
func (r *Repo) AddPlayers(ctx context.Context, teamID string, in []Player) ([]Player, error) {
	col := r.players(teamID)
	out := make([]Player, 0, len(in))
	err := r.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		out = out[:0]
		docs, err := tx.Documents(col).GetAll()
		if err != nil {
			return err
		}
		roster := make([]Player, 0, len(docs))
		for _, d := range docs {
			var p Player
			if err := d.DataTo(&p); err != nil {
				continue
			}
			p.ID = d.Ref.ID
			roster = append(roster, p)
		}
		numbers := make([]int, len(in))
		for i, p := range in {
			numbers[i] = p.Number
		}
		if err := CheckRosterAdd(roster, numbers, ""); err != nil {
			return err
		}
		for _, p := range in {
			ref := col.NewDoc()
			p.ID = ref.ID
			p.TeamID = teamID
			if err := tx.Create(ref, p); err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		if IsErrBadRequest(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to add players: %w", err)
	}
	return out, nil
}

// UpdatePlayer applies updates; when number changes it is re-checked for
// uniqueness in the same transaction.
func (r *Repo) UpdatePlayer(ctx context.Context, teamID, playerID string, updates map[string]interface{}) error {
	col := r.players(teamID)
	err := r.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if n, ok := updates["number"].(int); ok {
			docs, err := tx.Documents(col).GetAll()
			if err != nil {
				return err
			}
			roster := make([]Player, 0, len(docs))
			for _, d := range docs {
				var p Player
				if err := d.DataTo(&p); err != nil {
					continue
				}
				p.ID = d.Ref.ID
				roster = append(roster, p)
			}
			if err := CheckRosterAdd(roster, []int{n}, playerID); err != nil {
				return err
			}
		}
		updates["updatedAt"] = r.clock.Now().UTC()
		return tx.Update(col.Doc(playerID), firebase.Updates(updates))
	})
	if err != nil {
		if IsErrBadRequest(err) {
			return err
		}
		if firebase.IsNotFound(err) {
			return fmt.Errorf("%w: player not found", ErrNotFound)
		}
		return fmt.Errorf("failed to update player: %w", err)
	}
	return nil
}

func (r *Repo) DeletePlayer(ctx context.Context, teamID, playerID string) error {
	if _, err := r.players(teamID).Doc(playerID).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete player: %w", err)
	}
	return nil
}

// --- members ---

func (r *Repo) GetMember(ctx context.Context, teamID, uid string) (*Member, error) {
	doc, err := r.members().Doc(MemberDocID(teamID, uid)).Get(ctx)
	if err != nil {
		if firebase.IsNotFound(err) {
			return nil, fmt.Errorf("%w: member not found", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	var m Member
	if err := doc.DataTo(&m); err != nil {
		return nil, fmt.Errorf("failed to decode member: %w", err)
	}
	return &m, nil
}

func (r *Repo) ListMembers(ctx context.Context, teamID string) ([]Member, error) {
	iter := r.members().Where("teamId", "==", teamID).Documents(ctx)
	defer iter.Stop()

	out := []Member{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list members: %w", err)
		}
		var m Member
		if err := doc.DataTo(&m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// RemoveMember deletes the member doc and drops uid from memberIds.
func (r *Repo) RemoveMember(ctx context.Context, teamID, uid string) error {
	batch := r.fs.Batch()
	batch.Delete(r.members().Doc(MemberDocID(teamID, uid)))
	batch.Update(r.teams().Doc(teamID), []firestore.Update{
		{Path: "memberIds", Value: firestore.ArrayRemove(uid)},
		{Path: "updatedAt", Value: r.clock.Now().UTC()},
	})
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}
