package domain

import "time"

// MessageStatus qualifies a message.
type MessageStatus string

const (
	StatusNormal    MessageStatus = "normal"
	StatusImportant MessageStatus = "important"
	StatusUrgent    MessageStatus = "urgent"
	StatusAnnonce   MessageStatus = "annonce"
)

// MaxBodyLength is the maximum message body size in characters.
const MaxBodyLength = 10000

// DeriveStatus computes the stored status from the send request: an
// announcement always wins over the importance level.
func DeriveStatus(isAnnouncement bool, importance string) MessageStatus {
	if isAnnouncement {
		return StatusAnnonce
	}
	switch MessageStatus(importance) {
	case StatusImportant:
		return StatusImportant
	case StatusUrgent:
		return StatusUrgent
	}
	return StatusNormal
}

// Message is immutable once created, except for soft-deletion by its sender.
type Message struct {
	ID              int64         `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ConversationID  int64         `gorm:"column:conversation_id;index:idx_msg_conv" json:"conversation_id"`
	SenderID        int64         `gorm:"column:sender_id" json:"sender_id"`
	SenderRole      Role          `gorm:"column:sender_role;size:20" json:"sender_role"`
	Body            string        `gorm:"column:body;type:text" json:"body"`
	Status          MessageStatus `gorm:"column:status;size:10;default:'normal'" json:"status"`
	ParentMessageID *int64        `gorm:"column:parent_message_id" json:"parent_message_id,omitempty"`
	IsDeleted       bool          `gorm:"column:is_deleted;default:false" json:"-"`
	CreatedAt       time.Time     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"column:updated_at" json:"updated_at"`
}

func (Message) TableName() string {
	return "messages"
}

// SentBy reports whether the message was authored by the given identity.
func (m *Message) SentBy(id Identity) bool {
	return m.SenderID == id.UserID && m.SenderRole == id.Role
}

// SendMessageRequest is the payload for posting a message.
type SendMessageRequest struct {
	Body                  string `json:"body" form:"body"`
	Importance            string `json:"importance" form:"importance"`
	IsAnnouncement        bool   `json:"is_announcement" form:"is_announcement"`
	MandatoryNotification bool   `json:"mandatory_notification" form:"mandatory_notification"`
	ParentMessageID       *int64 `json:"parent_message_id" form:"parent_message_id"`
}

// MessageView is a message annotated for a given viewer.
type MessageView struct {
	Message
	IsRead      bool         `json:"is_read"`
	IsMine      bool         `json:"is_mine"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// MessagePreview is the short form shown in folder listings.
type MessagePreview struct {
	ID         int64         `json:"id"`
	SenderID   int64         `json:"sender_id"`
	SenderRole Role          `json:"sender_role"`
	Body       string        `json:"body"`
	Status     MessageStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
}

// ReaderInfo identifies a participant who has read a message.
type ReaderInfo struct {
	UserID     int64      `json:"user_id"`
	Role       Role       `json:"role"`
	LastReadAt *time.Time `json:"last_read_at,omitempty"`
}

// ReadStatus aggregates read receipts for a message. Informational only,
// not a delivery guarantee.
type ReadStatus struct {
	MessageID int64        `json:"message_id"`
	Total     int64        `json:"total"`
	ReadCount int64        `json:"read_count"`
	Percent   float64      `json:"percent"`
	Readers   []ReaderInfo `json:"readers"`
}
