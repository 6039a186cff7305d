package session

import (
	"context"
	"fmt"

	"lapizarra/backend/internal/firebase"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

type Repo struct {
	fs *firestore.Client
}

func NewRepo(fs *firestore.Client) *Repo {
	return &Repo{fs: fs}
}

func (r *Repo) col() *firestore.CollectionRef {
	return r.fs.Collection("sessions")
}

func (r *Repo) Create(ctx context.Context, s Session) (*Session, error) {
	ref := r.col().NewDoc()
	s.ID = ref.ID

	_, err := ref.Set(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &s, nil
}

func (r *Repo) Get(ctx context.Context, sessionID string) (*Session, error) {
	doc, err := r.col().Doc(sessionID).Get(ctx)
	if err != nil {
		if firebase.IsNotFound(err) {
			return nil, fmt.Errorf("%w: session not found", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var s Session
	if err := doc.DataTo(&s); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	s.ID = doc.Ref.ID

	return &s, nil
}

func (r *Repo) Update(ctx context.Context, sessionID string, updates map[string]interface{}) (*Session, error) {
	ref := r.col().Doc(sessionID)

	_, err := ref.Update(ctx, firebase.Updates(updates))
	if err != nil {
		if firebase.IsNotFound(err) {
			return nil, fmt.Errorf("%w: session not found", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	return r.Get(ctx, sessionID)
}

func (r *Repo) Delete(ctx context.Context, sessionID string) error {
	_, err := r.col().Doc(sessionID).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// List returns the owner's sessions, newest date first.
func (r *Repo) List(ctx context.Context, ownerID string, input ListSessionsInput) ([]Session, error) {
	q := r.col().Where("ownerId", "==", ownerID)

	if input.TeamID != "" {
		q = q.Where("teamId", "==", input.TeamID)
	}
	if input.From != "" {
		q = q.Where("date", ">=", input.From)
	}
	if input.To != "" {
		q = q.Where("date", "<=", input.To)
	}

	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q = q.OrderBy("date", firestore.Desc).Limit(limit)

	iter := q.Documents(ctx)
	defer iter.Stop()

	sessions := []Session{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate sessions: %w", err)
		}

		var s Session
		if err := doc.DataTo(&s); err != nil {
			continue
		}
		s.ID = doc.Ref.ID
		sessions = append(sessions, s)
	}

	return sessions, nil
}
