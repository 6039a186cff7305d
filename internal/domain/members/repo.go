package members

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lapizarra/backend/internal/domain/team"
	"lapizarra/backend/internal/firebase"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

type Repo struct {
	client *firestore.Client
}

func NewRepo(client *firestore.Client) *Repo {
	return &Repo{client: client}
}

func (r *Repo) col() *firestore.CollectionRef {
	return r.client.Collection("invitations")
}

func decode(doc *firestore.DocumentSnapshot) (*Invitation, error) {
	var inv Invitation
	if err := doc.DataTo(&inv); err != nil {
		return nil, fmt.Errorf("failed to decode invitation: %w", err)
	}
	inv.ID = doc.Ref.ID
	return &inv, nil
}

func notFound(err error) error {
	if firebase.IsNotFound(err) {
		return fmt.Errorf("%w: invitation not found", ErrNotFound)
	}
	return fmt.Errorf("failed to get invitation: %w", err)
}

// CreatePending stores inv unless a pending invitation for the same team
// and email already exists.
func (r *Repo) CreatePending(ctx context.Context, inv Invitation) (*Invitation, error) {
	ref := r.col().NewDoc()
	inv.ID = ref.ID
	inv.Status = StatusPending

	dup := r.col().
		Where("teamId", "==", inv.TeamID).
		Where("email", "==", inv.Email).
		Where("status", "==", StatusPending).
		Limit(1)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docs, err := tx.Documents(dup).GetAll()
		if err != nil {
			return err
		}
		if len(docs) > 0 {
			return fmt.Errorf("%w: %s already has a pending invitation", ErrConflict, inv.Email)
		}
		return tx.Create(ref, inv)
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}
	return &inv, nil
}

func (r *Repo) Get(ctx context.Context, id string) (*Invitation, error) {
	doc, err := r.col().Doc(id).Get(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return decode(doc)
}

func (r *Repo) list(ctx context.Context, q firestore.Query) ([]Invitation, error) {
	iter := q.OrderBy("createdAt", firestore.Desc).Limit(100).Documents(ctx)
	defer iter.Stop()

	out := []Invitation{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list invitations: %w", err)
		}
		inv, err := decode(doc)
		if err != nil {
			continue
		}
		out = append(out, *inv)
	}
	return out, nil
}

// ListByEmail returns invitations addressed to email; an empty status
// returns all of them.
func (r *Repo) ListByEmail(ctx context.Context, email, status string) ([]Invitation, error) {
	q := r.col().Where("email", "==", email)
	if status != "" {
		q = q.Where("status", "==", status)
	}
	return r.list(ctx, q)
}

func (r *Repo) ListByTeam(ctx context.Context, teamID string) ([]Invitation, error) {
	return r.list(ctx, r.col().Where("teamId", "==", teamID))
}

// Accept marks the invitation accepted and adds uid to the team in one
// transaction.
func (r *Repo) Accept(ctx context.Context, id, uid, email, displayName string, now time.Time) (*Invitation, error) {
	invRef := r.col().Doc(id)
	var out *Invitation

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(invRef)
		if err != nil {
			return notFound(err)
		}
		inv, err := decode(doc)
		if err != nil {
			return err
		}
		if err := inv.respond(email); err != nil {
			return err
		}

		teamRef := r.client.Collection("teams").Doc(inv.TeamID)
		teamDoc, err := tx.Get(teamRef)
		if err != nil {
			if firebase.IsNotFound(err) {
				return fmt.Errorf("%w: team no longer exists", ErrNotFound)
			}
			return err
		}
		var t team.Team
		if err := teamDoc.DataTo(&t); err != nil {
			return err
		}
		if t.OwnerID == uid {
			return fmt.Errorf("%w: you already own this team", ErrBadRequest)
		}

		memberRef := r.client.Collection("teamMembers").Doc(team.MemberDocID(inv.TeamID, uid))
		if err := tx.Set(memberRef, team.Member{
			TeamID:      inv.TeamID,
			UID:         uid,
			Email:       inv.Email,
			DisplayName: displayName,
			Role:        inv.Role,
			JoinedAt:    now,
		}); err != nil {
			return err
		}
		if err := tx.Update(teamRef, []firestore.Update{
			{Path: "memberIds", Value: firestore.ArrayUnion(uid)},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}

		inv.Status = StatusAccepted
		inv.AcceptedUID = uid
		inv.RespondedAt = &now
		out = inv
		return tx.Update(invRef, []firestore.Update{
			{Path: "status", Value: StatusAccepted},
			{Path: "acceptedUid", Value: uid},
			{Path: "respondedAt", Value: now},
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Decline(ctx context.Context, id, email string, now time.Time) (*Invitation, error) {
	invRef := r.col().Doc(id)
	var out *Invitation

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(invRef)
		if err != nil {
			return notFound(err)
		}
		inv, err := decode(doc)
		if err != nil {
			return err
		}
		if err := inv.respond(email); err != nil {
			return err
		}
		inv.Status = StatusDeclined
		inv.RespondedAt = &now
		out = inv
		return tx.Update(invRef, []firestore.Update{
			{Path: "status", Value: StatusDeclined},
			{Path: "respondedAt", Value: now},
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeletePending removes a still-pending invitation.
func (r *Repo) DeletePending(ctx context.Context, id string) error {
	invRef := r.col().Doc(id)
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(invRef)
		if err != nil {
			return notFound(err)
		}
		inv, err := decode(doc)
		if err != nil {
			return err
		}
		if inv.Status != StatusPending {
			return fmt.Errorf("%w: invitation already %s", ErrConflict, inv.Status)
		}
		return tx.Delete(invRef)
	})
}
