package domain

import "time"

// Conversation groups messages exchanged between participants.
// A conversation is owned collectively by its participant rows; one with zero
// participant rows is orphaned and ignored by every query.
type Conversation struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Subject   string    `gorm:"column:subject;size:255;not null" json:"subject"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// ParticipantState models a participant's view of a conversation as a closed
// state machine instead of independently-toggleable archive/delete flags.
type ParticipantState string

const (
	ParticipantActive   ParticipantState = "active"
	ParticipantArchived ParticipantState = "archived"
	ParticipantTrashed  ParticipantState = "trashed"
)

// CanTransition reports whether moving from s to "to" is a defined transition.
// Defined: active→archived, archived→active, active→trashed, archived→trashed,
// trashed→active (restore). A trashed row cannot be archived; restore first.
func (s ParticipantState) CanTransition(to ParticipantState) bool {
	switch s {
	case ParticipantActive:
		return to == ParticipantArchived || to == ParticipantTrashed
	case ParticipantArchived:
		return to == ParticipantActive || to == ParticipantTrashed
	case ParticipantTrashed:
		return to == ParticipantActive
	}
	return false
}

// Participant is a (user, conversation) membership record carrying role flags
// and read-state. last_read_message_id is the high-water mark of the last
// message acknowledged; unread_count is a denormalized cache recomputed (not
// decremented) on read; version is bumped on every read-state mutation and is
// the basis of the optimistic-concurrency check.
//
// (conversation_id, user_id, user_role) is logically unique, but no DB
// constraint enforces it: the legacy data carries duplicate rows and Restore
// self-heals them.
type Participant struct {
	ID                int64            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ConversationID    int64            `gorm:"column:conversation_id;index:idx_part_conv" json:"conversation_id"`
	UserID            int64            `gorm:"column:user_id;index:idx_part_user" json:"user_id"`
	UserRole          Role             `gorm:"column:user_role;size:20;index:idx_part_user" json:"user_role"`
	IsAdmin           bool             `gorm:"column:is_admin;default:false" json:"is_admin"`
	IsModerator       bool             `gorm:"column:is_moderator;default:false" json:"is_moderator"`
	State             ParticipantState `gorm:"column:state;size:10;default:'active'" json:"state"`
	LastReadMessageID int64            `gorm:"column:last_read_message_id;default:0" json:"last_read_message_id"`
	LastReadAt        *time.Time       `gorm:"column:last_read_at" json:"last_read_at,omitempty"`
	UnreadCount       int64            `gorm:"column:unread_count;default:0" json:"unread_count"`
	Version           int64            `gorm:"column:version;default:0" json:"-"`
	CreatedAt         time.Time        `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"column:updated_at" json:"updated_at"`
}

func (Participant) TableName() string {
	return "conversation_participants"
}

// Identity returns the participant's identity pair.
func (p *Participant) Identity() Identity {
	return Identity{UserID: p.UserID, Role: p.UserRole}
}

// Folder is one of the mailbox views over a user's conversations.
type Folder string

const (
	FolderReception   Folder = "reception"
	FolderEnvoyes     Folder = "envoyes"
	FolderArchives    Folder = "archives"
	FolderInformation Folder = "information"
	FolderCorbeille   Folder = "corbeille"
)

// ParseFolder validates a raw folder name, defaulting to reception when empty.
func ParseFolder(s string) (Folder, bool) {
	if s == "" {
		return FolderReception, true
	}
	f := Folder(s)
	switch f {
	case FolderReception, FolderEnvoyes, FolderArchives, FolderInformation, FolderCorbeille:
		return f, true
	}
	return "", false
}

// ParticipantRef designates a user to add to a conversation.
type ParticipantRef struct {
	UserID int64 `json:"user_id" binding:"required"`
	Role   Role  `json:"role" binding:"required"`
}

// CreateConversationRequest is the payload for creating a conversation.
type CreateConversationRequest struct {
	Subject      string           `json:"subject" binding:"required"`
	Participants []ParticipantRef `json:"participants" binding:"required"`
}

// ParticipantView is a participant as exposed by the API.
type ParticipantView struct {
	UserID      int64            `json:"user_id"`
	Role        Role             `json:"role"`
	IsAdmin     bool             `json:"is_admin"`
	IsModerator bool             `json:"is_moderator"`
	State       ParticipantState `json:"state"`
}

// ConversationSummary is a conversation as listed in a folder.
type ConversationSummary struct {
	ID           int64             `json:"id"`
	Subject      string            `json:"subject"`
	UpdatedAt    time.Time         `json:"updated_at"`
	State        ParticipantState  `json:"state"`
	UnreadCount  int64             `json:"unread_count"`
	LastMessage  *MessagePreview   `json:"last_message,omitempty"`
	Participants []ParticipantView `json:"participants"`
}
