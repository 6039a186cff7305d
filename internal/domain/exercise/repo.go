package exercise

import (
	"context"
	"fmt"
	"time"

	"lapizarra/backend/internal/firebase"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// BatchSize is the Firestore write batch cap.
const BatchSize = 500

type Repo struct {
	fs *firestore.Client
}

func NewRepo(fs *firestore.Client) *Repo {
	return &Repo{fs: fs}
}

func (r *Repo) col() *firestore.CollectionRef {
	return r.fs.Collection("exercises")
}

func (r *Repo) Create(ctx context.Context, ex Exercise) (*Exercise, error) {
	ref := r.col().NewDoc()
	ex.ID = ref.ID
	if _, err := ref.Create(ctx, ex); err != nil {
		return nil, fmt.Errorf("failed to create exercise: %w", err)
	}
	return &ex, nil
}

// CreateMany writes exercises in batches of at most BatchSize. On error the
// exercises committed by earlier batches are returned with it.
func (r *Repo) CreateMany(ctx context.Context, list []Exercise) ([]Exercise, error) {
	out := make([]Exercise, 0, len(list))
	for start := 0; start < len(list); start += BatchSize {
		end := start + BatchSize
		if end > len(list) {
			end = len(list)
		}
		batch := r.fs.Batch()
		chunk := make([]Exercise, 0, end-start)
		for _, ex := range list[start:end] {
			ref := r.col().NewDoc()
			ex.ID = ref.ID
			batch.Create(ref, ex)
			chunk = append(chunk, ex)
		}
		if _, err := batch.Commit(ctx); err != nil {
			return out, fmt.Errorf("failed to commit exercise batch: %w", err)
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func (r *Repo) Get(ctx context.Context, id string) (*Exercise, error) {
	doc, err := r.col().Doc(id).Get(ctx)
	if err != nil {
		if firebase.IsNotFound(err) {
			return nil, fmt.Errorf("%w: exercise not found", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get exercise: %w", err)
	}
	var ex Exercise
	if err := doc.DataTo(&ex); err != nil {
		return nil, fmt.Errorf("failed to decode exercise: %w", err)
	}
	ex.ID = doc.Ref.ID
	return &ex, nil
}

// GetMany returns the exercises that exist among ids, in the order given.
func (r *Repo) GetMany(ctx context.Context, ids []string) ([]Exercise, error) {
	if len(ids) == 0 {
		return []Exercise{}, nil
	}
	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = r.col().Doc(id)
	}
	docs, err := r.fs.GetAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("failed to get exercises: %w", err)
	}
	out := make([]Exercise, 0, len(docs))
	for _, doc := range docs {
		if !doc.Exists() {
			continue
		}
		var ex Exercise
		if err := doc.DataTo(&ex); err != nil {
			continue
		}
		ex.ID = doc.Ref.ID
		out = append(out, ex)
	}
	return out, nil
}

func (r *Repo) Replace(ctx context.Context, ex Exercise) error {
	ex.UpdatedAt = time.Now().UTC()
	if _, err := r.col().Doc(ex.ID).Set(ctx, ex); err != nil {
		return fmt.Errorf("failed to update exercise: %w", err)
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	if _, err := r.col().Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete exercise: %w", err)
	}
	return nil
}

func (r *Repo) List(ctx context.Context, uid string, f ListFilter) ([]Exercise, error) {
	q := r.col().Query
	switch f.Scope {
	case ScopeMine:
		q = q.Where("ownerId", "==", uid)
	case ScopeOfficial:
		q = q.Where("official", "==", true)
	}
	if f.Visibility != "" {
		q = q.Where("visibility", "==", f.Visibility)
	}
	if f.Phase != "" {
		q = q.Where("phase", "==", f.Phase)
	}
	if f.Category != "" {
		q = q.Where("category", "==", f.Category)
	}
	if f.AgeGroup != "" {
		q = q.Where("ageGroups", "array-contains", f.AgeGroup)
	}
	if f.Query != "" {
		// prefix search on the folded name
		q = q.Where("nameLower", ">=", f.Query).
			Where("nameLower", "<", f.Query+"\uf8ff").
			OrderBy("nameLower", firestore.Asc)
	} else {
		q = q.OrderBy("createdAt", firestore.Desc)
	}

	iter := q.Limit(f.Limit).Documents(ctx)
	defer iter.Stop()

	out := []Exercise{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list exercises: %w", err)
		}
		var ex Exercise
		if err := doc.DataTo(&ex); err != nil {
			continue
		}
		ex.ID = doc.Ref.ID
		out = append(out, ex)
	}
	return out, nil
}
