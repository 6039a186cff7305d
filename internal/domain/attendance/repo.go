package attendance

import (
	"context"
	"fmt"

	"lapizarra/backend/internal/firebase"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// batchLimit is Firestore's per-batch write cap.
const batchLimit = 500

type Repo struct {
	client *firestore.Client
}

func NewRepo(client *firestore.Client) *Repo {
	return &Repo{client: client}
}

func (r *Repo) attendanceCol(teamID string) *firestore.CollectionRef {
	return r.client.Collection("teams").Doc(teamID).Collection("attendance")
}

// Upsert writes a record under its date_playerId id.
func (r *Repo) Upsert(ctx context.Context, att Attendance) (*Attendance, error) {
	att.ID = DocID(att.Date, att.PlayerID)
	if _, err := r.attendanceCol(att.TeamID).Doc(att.ID).Set(ctx, att); err != nil {
		return nil, fmt.Errorf("failed to record attendance: %w", err)
	}
	return &att, nil
}

// BulkUpsert writes all records in one batch.
func (r *Repo) BulkUpsert(ctx context.Context, teamID string, records []Attendance) error {
	if len(records) > batchLimit {
		return fmt.Errorf("%w: at most %d records per request", ErrBadRequest, batchLimit)
	}
	batch := r.client.Batch()
	for _, att := range records {
		att.ID = DocID(att.Date, att.PlayerID)
		batch.Set(r.attendanceCol(teamID).Doc(att.ID), att)
	}
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("batch commit failed: %w", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, teamID, id string) (*Attendance, error) {
	doc, err := r.attendanceCol(teamID).Doc(id).Get(ctx)
	if err != nil {
		if firebase.IsNotFound(err) {
			return nil, fmt.Errorf("%w: attendance not found", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get attendance: %w", err)
	}

	var att Attendance
	if err := doc.DataTo(&att); err != nil {
		return nil, fmt.Errorf("failed to decode attendance: %w", err)
	}
	att.ID = doc.Ref.ID
	return &att, nil
}

func (r *Repo) Delete(ctx context.Context, teamID, id string) error {
	if _, err := r.attendanceCol(teamID).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete attendance: %w", err)
	}
	return nil
}

// List lists attendance records, newest date first. A zero limit returns
// every match.
func (r *Repo) List(ctx context.Context, teamID string, input ListAttendanceInput) ([]Attendance, error) {
	query := r.attendanceCol(teamID).Query

	if input.Date != "" {
		query = query.Where("date", "==", input.Date)
	} else {
		if input.From != "" {
			query = query.Where("date", ">=", input.From)
		}
		if input.To != "" {
			query = query.Where("date", "<=", input.To)
		}
	}
	if input.PlayerID != "" {
		query = query.Where("playerId", "==", input.PlayerID)
	}

	query = query.OrderBy("date", firestore.Desc)
	if input.Limit > 0 {
		query = query.Limit(input.Limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	records := []Attendance{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list attendance: %w", err)
		}

		var att Attendance
		if err := doc.DataTo(&att); err != nil {
			continue
		}
		att.ID = doc.Ref.ID
		records = append(records, att)
	}

	return records, nil
}
