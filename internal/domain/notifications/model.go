package notifications

import (
	"strings"
	"time"
)

const (
	TypeGeneral            = "general"
	TypeInvitation         = "team_invitation"
	TypeInvitationAccepted = "invitation_accepted"
)

// Notification represents a notification
type Notification struct {
	ID        string            `firestore:"id" json:"id"`
	Title     string            `firestore:"title" json:"title"`
	Body      string            `firestore:"body" json:"body"`
	Type      string            `firestore:"type" json:"type"`
	Data      map[string]string `firestore:"data,omitempty" json:"data,omitempty"`
	TeamID    string            `firestore:"teamId,omitempty" json:"teamId,omitempty"`
	Read      bool              `firestore:"read" json:"read"`
	ReadAt    *time.Time        `firestore:"readAt,omitempty" json:"readAt,omitempty"`
	SenderUID string            `firestore:"senderUid,omitempty" json:"senderUid,omitempty"`
	CreatedAt time.Time         `firestore:"createdAt" json:"createdAt"`
}

// CreateNotificationInput represents input for creating a notification
type CreateNotificationInput struct {
	TargetUID string            `json:"targetUid"`
	Title     string            `json:"title"`
	Body      string            `json:"body,omitempty"`
	Type      string            `json:"type,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	TeamID    string            `json:"teamId,omitempty"`
}

func (in *CreateNotificationInput) Trim() {
	in.TargetUID = strings.TrimSpace(in.TargetUID)
	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)
	in.Type = strings.TrimSpace(in.Type)
	in.TeamID = strings.TrimSpace(in.TeamID)
}

// MarkReadInput represents input for marking notifications as read
type MarkReadInput struct {
	NotificationID string `json:"notificationId,omitempty"`
	MarkAll        bool   `json:"markAll,omitempty"`
}

func (in *MarkReadInput) Trim() {
	in.NotificationID = strings.TrimSpace(in.NotificationID)
}

// NotificationsListResult represents the result of listing notifications
type NotificationsListResult struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int64          `json:"unreadCount"`
}

// PushResult reports a multicast send.
type PushResult struct {
	Sent    int      `json:"sent"`
	Failed  int      `json:"failed"`
	Removed []string `json:"-"`
}
