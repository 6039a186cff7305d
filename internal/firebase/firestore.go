package firebase

import (
	"context"
	"sort"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Firestore struct {
	Client *firestore.Client
}

func NewFirestore(ctx context.Context, app *firebase.App) (*Firestore, error) {
	c, err := app.Firestore(ctx)
	if err != nil {
		return nil, err
	}
	return &Firestore{Client: c}, nil
}

func (f *Firestore) Close() {
	if f == nil || f.Client == nil {
		return
	}
	_ = f.Client.Close()
}

// Updates turns a field map into update operations in key order. Keys may
// be dotted paths such as "subscription.status".
func Updates(fields map[string]interface{}) []firestore.Update {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ups := make([]firestore.Update, 0, len(keys))
	for _, k := range keys {
		ups = append(ups, firestore.Update{Path: k, Value: fields[k]})
	}
	return ups
}

// IsNotFound reports whether err is a Firestore "document not found" error.
func IsNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// IsAlreadyExists reports whether a Create hit an existing document.
func IsAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}
