package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lapizarra/backend/internal/domain/user"
	"lapizarra/backend/internal/firebase"

	"cloud.google.com/go/firestore"
	firestorepb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"firebase.google.com/go/v4/messaging"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
)

var (
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("not found")
)

func IsErrBadRequest(err error) bool { return errors.Is(err, ErrBadRequest) }
func IsErrNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }

// Pusher sends FCM multicasts; *messaging.Client satisfies it.
type Pusher interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Tokens reads and prunes a user's device tokens.
type Tokens interface {
	Get(ctx context.Context, uid string) (*user.Profile, error)
	RemoveTokens(ctx context.Context, uid string, tokens []string) error
}

type Service struct {
	client *firestore.Client
	pusher Pusher
	tokens Tokens
	clock  clockwork.Clock
}

// NewService builds the service. msg may be nil, which disables push.
func NewService(client *firestore.Client, msg *messaging.Client, tokens Tokens, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Service{client: client, tokens: tokens, clock: clock}
	if msg != nil {
		s.pusher = msg
	}
	return s
}

func (s *Service) SetPusher(p Pusher) {
	s.pusher = p
}

func (s *Service) notificationsCol(uid string) *firestore.CollectionRef {
	return s.client.Collection("users").Doc(uid).Collection("notifications")
}

// GetNotifications gets notifications for a user
func (s *Service) GetNotifications(ctx context.Context, uid string, unreadOnly bool, limit int) (*NotificationsListResult, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, fmt.Errorf("%w: uid is required", ErrBadRequest)
	}

	query := s.notificationsCol(uid).Query
	if unreadOnly {
		query = query.Where("read", "==", false)
	}
	query = query.OrderBy("createdAt", firestore.Desc)

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query = query.Limit(limit)

	iter := query.Documents(ctx)
	defer iter.Stop()
	notifications := []Notification{}

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get notifications: %w", err)
		}

		var n Notification
		if err := doc.DataTo(&n); err != nil {
			continue
		}
		n.ID = doc.Ref.ID
		notifications = append(notifications, n)
	}

	unread, err := s.unreadCount(ctx, uid)
	if err != nil {
		log.Warn().Err(err).Str("uid", uid).Msg("unread count failed")
	}

	return &NotificationsListResult{
		Notifications: notifications,
		UnreadCount:   unread,
	}, nil
}

func (s *Service) unreadCount(ctx context.Context, uid string) (int64, error) {
	q := s.notificationsCol(uid).Where("read", "==", false)
	res, err := q.NewAggregationQuery().WithCount("unread").Get(ctx)
	if err != nil {
		return 0, err
	}
	v, ok := res["unread"].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("unexpected aggregation result")
	}
	return v.GetIntegerValue(), nil
}

// MarkRead marks one or all notifications as read
func (s *Service) MarkRead(ctx context.Context, uid string, input MarkReadInput) (int, error) {
	input.Trim()
	if uid == "" {
		return 0, fmt.Errorf("%w: uid is required", ErrBadRequest)
	}

	now := s.clock.Now().UTC()
	update := []firestore.Update{
		{Path: "read", Value: true},
		{Path: "readAt", Value: now},
	}

	if input.MarkAll {
		iter := s.notificationsCol(uid).Where("read", "==", false).Documents(ctx)
		defer iter.Stop()
		batch := s.client.Batch()
		count, pending := 0, 0

		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return 0, fmt.Errorf("failed to get notifications: %w", err)
			}

			batch.Update(doc.Ref, update)
			count++
			pending++

			if pending == 450 {
				if _, err := batch.Commit(ctx); err != nil {
					return 0, fmt.Errorf("failed to mark notifications as read: %w", err)
				}
				batch = s.client.Batch()
				pending = 0
			}
		}

		if pending > 0 {
			if _, err := batch.Commit(ctx); err != nil {
				return 0, fmt.Errorf("failed to mark notifications as read: %w", err)
			}
		}

		return count, nil
	}

	if input.NotificationID != "" {
		if _, err := s.notificationsCol(uid).Doc(input.NotificationID).Update(ctx, update); err != nil {
			if firebase.IsNotFound(err) {
				return 0, fmt.Errorf("%w: notification not found", ErrNotFound)
			}
			return 0, fmt.Errorf("failed to mark notification as read: %w", err)
		}
		return 1, nil
	}

	return 0, fmt.Errorf("%w: notificationId or markAll is required", ErrBadRequest)
}

// DeleteNotification deletes a single notification doc for the user
func (s *Service) DeleteNotification(ctx context.Context, uid string, notificationID string) error {
	notificationID = strings.TrimSpace(notificationID)
	if uid == "" || notificationID == "" {
		return fmt.Errorf("%w: uid and notificationId are required", ErrBadRequest)
	}

	_, err := s.notificationsCol(uid).Doc(notificationID).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

// Notify stores a notification for the target user and pushes it to their
// devices. Push failures are logged, never returned.
func (s *Service) Notify(ctx context.Context, senderUID string, input CreateNotificationInput) (string, error) {
	input.Trim()
	if input.TargetUID == "" || input.Title == "" {
		return "", fmt.Errorf("%w: targetUid and title are required", ErrBadRequest)
	}
	if input.Type == "" {
		input.Type = TypeGeneral
	}

	ref := s.notificationsCol(input.TargetUID).NewDoc()
	n := Notification{
		ID:        ref.ID,
		Title:     input.Title,
		Body:      input.Body,
		Type:      input.Type,
		Data:      input.Data,
		TeamID:    input.TeamID,
		SenderUID: senderUID,
		CreatedAt: s.clock.Now().UTC(),
	}
	if _, err := ref.Set(ctx, n); err != nil {
		return "", fmt.Errorf("failed to create notification: %w", err)
	}

	if _, err := s.Push(ctx, n.ID, input); err != nil {
		log.Warn().Err(err).Str("uid", input.TargetUID).Msg("push failed")
	}
	return n.ID, nil
}

// Push sends the notification to every registered device of the target and
// drops tokens FCM reports as invalid.
func (s *Service) Push(ctx context.Context, notificationID string, input CreateNotificationInput) (*PushResult, error) {
	if s.pusher == nil || s.tokens == nil {
		return &PushResult{}, nil
	}
	p, err := s.tokens.Get(ctx, input.TargetUID)
	if err != nil {
		return nil, err
	}
	if len(p.FCMTokens) == 0 {
		return &PushResult{}, nil
	}

	data := map[string]string{"type": input.Type, "notificationId": notificationID}
	for k, v := range input.Data {
		data[k] = v
	}
	if input.TeamID != "" {
		data["teamId"] = input.TeamID
	}

	resp, err := s.pusher.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens: p.FCMTokens,
		Notification: &messaging.Notification{
			Title: input.Title,
			Body:  input.Body,
		},
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("fcm send: %w", err)
	}

	out := &PushResult{Sent: resp.SuccessCount, Failed: resp.FailureCount}
	out.Removed = invalidTokens(p.FCMTokens, resp)
	if len(out.Removed) > 0 {
		if err := s.tokens.RemoveTokens(ctx, input.TargetUID, out.Removed); err != nil {
			log.Warn().Err(err).Str("uid", input.TargetUID).Msg("failed to prune fcm tokens")
		} else {
			log.Info().Str("uid", input.TargetUID).Int("removed", len(out.Removed)).Msg("pruned fcm tokens")
		}
	}
	return out, nil
}

// invalidTokens pairs responses with tokens by index.
func invalidTokens(tokens []string, resp *messaging.BatchResponse) []string {
	var out []string
	for i, r := range resp.Responses {
		if i >= len(tokens) || r == nil || r.Success {
			continue
		}
		if messaging.IsUnregistered(r.Error) || messaging.IsInvalidArgument(r.Error) {
			out = append(out, tokens[i])
		}
	}
	return out
}
