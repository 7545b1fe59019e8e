package domain

import "time"

// NotificationType classifies why a notification was raised, in decreasing
// precedence: broadcast (announcement), important, reply, unread.
type NotificationType string

const (
	NotificationUnread    NotificationType = "unread"
	NotificationReply     NotificationType = "reply"
	NotificationImportant NotificationType = "important"
	NotificationBroadcast NotificationType = "broadcast"
)

// Notification is raised for every participant other than the sender when a
// message is posted, and flipped to read when the message is marked read.
type Notification struct {
	ID        int64            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID    int64            `gorm:"column:user_id;index:idx_notif_user" json:"user_id"`
	UserRole  Role             `gorm:"column:user_role;size:20;index:idx_notif_user" json:"user_role"`
	MessageID int64            `gorm:"column:message_id;index:idx_notif_msg" json:"message_id"`
	Type      NotificationType `gorm:"column:notification_type;size:10" json:"type"`
	IsRead    bool             `gorm:"column:is_read;default:false" json:"is_read"`
	ReadAt    *time.Time       `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt time.Time        `gorm:"column:created_at" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

// NotificationTypeFor picks the notification type for a freshly posted
// message following the precedence rule. The mandatory flag raises a
// normal message's notification to important.
func NotificationTypeFor(status MessageStatus, isReply, mandatory bool) NotificationType {
	switch {
	case status == StatusAnnonce:
		return NotificationBroadcast
	case status == StatusImportant || status == StatusUrgent || mandatory:
		return NotificationImportant
	case isReply:
		return NotificationReply
	}
	return NotificationUnread
}

// NotificationSummary is the unread badge payload.
type NotificationSummary struct {
	TotalUnread int64 `json:"total_unread"`
}
