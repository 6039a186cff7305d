package notifications

import (
	"context"
	"errors"
	"testing"

	"lapizarra/backend/internal/domain/user"

	"firebase.google.com/go/v4/messaging"
)

type fakeTokens struct {
	tokens  []string
	removed []string
}

func (f *fakeTokens) Get(_ context.Context, uid string) (*user.Profile, error) {
	return &user.Profile{UID: uid, FCMTokens: f.tokens}, nil
}

func (f *fakeTokens) RemoveTokens(_ context.Context, _ string, tokens []string) error {
	f.removed = append(f.removed, tokens...)
	return nil
}

type fakePusher struct {
	last *messaging.MulticastMessage
	resp *messaging.BatchResponse
}

func (f *fakePusher) SendEachForMulticast(_ context.Context, m *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	f.last = m
	return f.resp, nil
}

func TestPushDisabled(t *testing.T) {
	s := NewService(nil, nil, &fakeTokens{tokens: []string{"a"}}, nil)
	res, err := s.Push(context.Background(), "n1", CreateNotificationInput{TargetUID: "u1", Title: "hola"})
	if err != nil || res.Sent != 0 {
		t.Errorf("push without messaging = %+v, %v", res, err)
	}
}

func TestPushSendsData(t *testing.T) {
	tokens := &fakeTokens{tokens: []string{"tok1", "tok2"}}
	pusher := &fakePusher{resp: &messaging.BatchResponse{
		SuccessCount: 1,
		FailureCount: 1,
		Responses: []*messaging.SendResponse{
			{Success: true, MessageID: "m1"},
			{Success: false, Error: errors.New("transient")},
		},
	}}
	s := NewService(nil, nil, tokens, nil)
	s.SetPusher(pusher)

	res, err := s.Push(context.Background(), "n1", CreateNotificationInput{
		TargetUID: "u1",
		Title:     "Nueva invitación",
		Type:      TypeInvitation,
		TeamID:    "t1",
		Data:      map[string]string{"invitationId": "i1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Sent != 1 || res.Failed != 1 {
		t.Errorf("result = %+v", res)
	}
	// transient failures keep the token
	if len(tokens.removed) != 0 {
		t.Errorf("removed = %v", tokens.removed)
	}
	d := pusher.last.Data
	if d["type"] != TypeInvitation || d["teamId"] != "t1" || d["invitationId"] != "i1" || d["notificationId"] != "n1" {
		t.Errorf("data = %v", d)
	}
	if len(pusher.last.Tokens) != 2 || pusher.last.Notification.Title != "Nueva invitación" {
		t.Errorf("message = %+v", pusher.last)
	}
}

func TestPushNoTokens(t *testing.T) {
	pusher := &fakePusher{}
	s := NewService(nil, nil, &fakeTokens{}, nil)
	s.SetPusher(pusher)
	if _, err := s.Push(context.Background(), "n1", CreateNotificationInput{TargetUID: "u1", Title: "x"}); err != nil {
		t.Fatal(err)
	}
	if pusher.last != nil {
		t.Error("sent without tokens")
	}
}

func TestNotifyValidation(t *testing.T) {
	s := NewService(nil, nil, nil, nil)
	if _, err := s.Notify(context.Background(), "u0", CreateNotificationInput{TargetUID: " ", Title: "x"}); !IsErrBadRequest(err) {
		t.Errorf("err = %v", err)
	}
}
