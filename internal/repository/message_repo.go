package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/pronote-app/messagerie-backend/internal/common"
	"github.com/pronote-app/messagerie-backend/internal/domain"
)

// Retry policy for the optimistic read-tracking loop.
const (
	DefaultReadRetries = 3
	readRetryBackoff   = 100 * time.Millisecond
)

// AddMessageParams carries everything needed to post a message. Attachments
// must already be stored on disk; their rows are inserted in the same
// transaction as the message.
type AddMessageParams struct {
	ConversationID        int64
	Sender                domain.Identity
	Body                  string
	Status                domain.MessageStatus
	MandatoryNotification bool
	ParentMessageID       *int64
	Attachments           []domain.Attachment
}

// MessageRepository owns message rows, read-state tracking and the
// notification fan-out.
type MessageRepository interface {
	Add(params *AddMessageParams) (int64, error)
	FindByID(id int64) (*domain.Message, error)
	ListByConversation(convID int64, viewer domain.Identity, includeTrashedViewer bool) ([]domain.MessageView, error)
	MarkAsRead(messageID int64, id domain.Identity, maxRetries int) error
	MarkAsUnread(messageID int64, id domain.Identity) error
	ReadStatus(messageID int64) (*domain.ReadStatus, error)
	SoftDelete(messageID int64, id domain.Identity) error
	UnreadTotal(id domain.Identity) (int64, error)
}

type messageRepository struct {
	db      *gorm.DB
	backoff time.Duration
}

// NewMessageRepository creates a MessageRepository.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db, backoff: readRetryBackoff}
}

// Add inserts the message and performs the whole fan-out in one transaction:
// conversation bump, sender high-water advance, one notification plus an
// unread increment per other current participant, attachment rows. A partial
// message (row without its notifications) is never observable.
func (r *messageRepository) Add(params *AddMessageParams) (int64, error) {
	var messageID int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		sender, err := findParticipant(tx, params.ConversationID, params.Sender, true)
		if err != nil {
			return err
		}
		if sender == nil {
			return common.ErrNotParticipant
		}

		msg := &domain.Message{
			ConversationID:  params.ConversationID,
			SenderID:        params.Sender.UserID,
			SenderRole:      params.Sender.Role,
			Body:            params.Body,
			Status:          params.Status,
			ParentMessageID: params.ParentMessageID,
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		messageID = msg.ID

		now := time.Now()
		if err := tx.Model(&domain.Conversation{}).Where("id = ?", params.ConversationID).
			UpdateColumn("updated_at", now).Error; err != nil {
			return err
		}

		// The sender has read their own message.
		if err := tx.Model(&domain.Participant{}).Where("id = ?", sender.ID).
			Updates(map[string]interface{}{
				"last_read_message_id": msg.ID,
				"last_read_at":         now,
				"version":              gorm.Expr("version + 1"),
			}).Error; err != nil {
			return err
		}

		others, err := listCurrentParticipants(tx, params.ConversationID)
		if err != nil {
			return err
		}
		notifType := domain.NotificationTypeFor(params.Status, params.ParentMessageID != nil, params.MandatoryNotification)
		for _, p := range others {
			if p.ID == sender.ID {
				continue
			}
			notif := &domain.Notification{
				UserID:    p.UserID,
				UserRole:  p.UserRole,
				MessageID: msg.ID,
				Type:      notifType,
			}
			if err := tx.Create(notif).Error; err != nil {
				return err
			}
			if err := tx.Model(&domain.Participant{}).Where("id = ?", p.ID).
				Updates(map[string]interface{}{
					"unread_count": gorm.Expr("unread_count + 1"),
					"version":      gorm.Expr("version + 1"),
				}).Error; err != nil {
				return err
			}
		}

		for i := range params.Attachments {
			params.Attachments[i].ID = 0
			params.Attachments[i].MessageID = msg.ID
			if err := tx.Create(&params.Attachments[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return messageID, nil
}

func listCurrentParticipants(tx *gorm.DB, convID int64) ([]domain.Participant, error) {
	var parts []domain.Participant
	err := tx.Where("conversation_id = ? AND state <> ?", convID, domain.ParticipantTrashed).
		Order("id ASC").Find(&parts).Error
	return parts, err
}

func (r *messageRepository) FindByID(id int64) (*domain.Message, error) {
	var msg domain.Message
	if err := r.db.Where("id = ? AND is_deleted = ?", id, false).First(&msg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// ListByConversation returns the conversation's messages annotated for the
// viewer. The viewer must hold a participant row; a trashed row suffices only
// when includeTrashedViewer is set (viewing the corbeille).
func (r *messageRepository) ListByConversation(convID int64, viewer domain.Identity, includeTrashedViewer bool) ([]domain.MessageView, error) {
	p, err := findParticipant(r.db, convID, viewer, !includeTrashedViewer)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, common.ErrNotParticipant
	}

	var messages []domain.Message
	if err := r.db.Where("conversation_id = ? AND is_deleted = ?", convID, false).
		Order("id ASC").Find(&messages).Error; err != nil {
		return nil, err
	}

	attachments, err := r.attachmentsByMessage(messages)
	if err != nil {
		return nil, err
	}

	views := make([]domain.MessageView, 0, len(messages))
	for _, m := range messages {
		mine := m.SentBy(viewer)
		views = append(views, domain.MessageView{
			Message:     m,
			IsMine:      mine,
			IsRead:      mine || p.LastReadMessageID >= m.ID,
			Attachments: attachments[m.ID],
		})
	}
	return views, nil
}

func (r *messageRepository) attachmentsByMessage(messages []domain.Message) (map[int64][]domain.Attachment, error) {
	result := make(map[int64][]domain.Attachment)
	if len(messages) == 0 {
		return result, nil
	}
	ids := make([]int64, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
	}
	var atts []domain.Attachment
	if err := r.db.Where("message_id IN ?", ids).Order("id ASC").Find(&atts).Error; err != nil {
		return nil, err
	}
	for _, a := range atts {
		result[a.MessageID] = append(result[a.MessageID], a)
	}
	return result, nil
}

// MarkAsRead advances the participant's high-water mark to messageID with a
// bounded optimistic retry loop. The unread count is recomputed from scratch
// rather than decremented, so missed decrements cannot accumulate drift. An
// exhausted loop surfaces ErrConcurrencyConflict: transient, retry later.
func (r *messageRepository) MarkAsRead(messageID int64, id domain.Identity, maxRetries int) error {
	if maxRetries <= 0 {
		maxRetries = DefaultReadRetries
	}
	msg, err := r.FindByID(messageID)
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		err := r.markAsReadOnce(msg, id)
		if err == nil {
			return nil
		}
		if !errors.Is(err, common.ErrConcurrencyConflict) {
			return err
		}
		if attempt >= maxRetries {
			return common.ErrConcurrencyConflict
		}
		time.Sleep(r.backoff)
	}
}

func (r *messageRepository) markAsReadOnce(msg *domain.Message, id domain.Identity) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		p, err := findParticipant(tx, msg.ConversationID, id, true)
		if err != nil {
			return err
		}
		if p == nil {
			return common.ErrNotParticipant
		}

		now := time.Now()
		if p.LastReadMessageID >= msg.ID {
			// Already past this message; only the notification may lag.
			return markNotificationRead(tx, id, msg.ID, now)
		}

		// Version CAS: a concurrent read-state mutation on the same row makes
		// RowsAffected zero and triggers a retry.
		res := tx.Model(&domain.Participant{}).
			Where("id = ? AND version = ?", p.ID, p.Version).
			Updates(map[string]interface{}{
				"last_read_message_id": msg.ID,
				"last_read_at":         now,
				"version":              p.Version + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return common.ErrConcurrencyConflict
		}

		sub := tx.Model(&domain.Message{}).Select("id").
			Where("conversation_id = ? AND id <= ?", msg.ConversationID, msg.ID)
		if err := tx.Model(&domain.Notification{}).
			Where("user_id = ? AND user_role = ? AND is_read = ? AND message_id IN (?)",
				id.UserID, id.Role, false, sub).
			Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error; err != nil {
			return err
		}

		return recomputeUnread(tx, p.ID, msg.ConversationID, msg.ID, id)
	})
}

func markNotificationRead(tx *gorm.DB, id domain.Identity, messageID int64, now time.Time) error {
	return tx.Model(&domain.Notification{}).
		Where("user_id = ? AND user_role = ? AND message_id = ? AND is_read = ?",
			id.UserID, id.Role, messageID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error
}

// recomputeUnread counts messages above the high-water mark authored by
// someone else and stores the result on the participant row.
func recomputeUnread(tx *gorm.DB, participantID, convID, highWater int64, id domain.Identity) error {
	var unread int64
	err := tx.Model(&domain.Message{}).
		Where("conversation_id = ? AND id > ? AND is_deleted = ?", convID, highWater, false).
		Where("NOT (sender_id = ? AND sender_role = ?)", id.UserID, id.Role).
		Count(&unread).Error
	if err != nil {
		return err
	}
	return tx.Model(&domain.Participant{}).Where("id = ?", participantID).
		UpdateColumn("unread_count", unread).Error
}

// MarkAsUnread rewinds the high-water mark to the message immediately
// preceding messageID in conversation order. This is the only operation that
// decreases the mark; callers must not assume monotonicity across the API.
func (r *messageRepository) MarkAsUnread(messageID int64, id domain.Identity) error {
	msg, err := r.FindByID(messageID)
	if err != nil {
		return err
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		p, err := findParticipant(tx, msg.ConversationID, id, true)
		if err != nil {
			return err
		}
		if p == nil {
			return common.ErrNotParticipant
		}

		var prevID int64
		var prev domain.Message
		err = tx.Where("conversation_id = ? AND id < ? AND is_deleted = ?",
			msg.ConversationID, msg.ID, false).
			Order("id DESC").First(&prev).Error
		switch {
		case err == nil:
			prevID = prev.ID
		case errors.Is(err, gorm.ErrRecordNotFound):
			prevID = 0
		default:
			return err
		}

		if err := tx.Model(&domain.Participant{}).Where("id = ?", p.ID).
			Updates(map[string]interface{}{
				"last_read_message_id": prevID,
				"version":              gorm.Expr("version + 1"),
			}).Error; err != nil {
			return err
		}

		// Flip the notification back to unread, creating one if absent.
		var notif domain.Notification
		err = tx.Where("user_id = ? AND user_role = ? AND message_id = ?",
			id.UserID, id.Role, msg.ID).First(&notif).Error
		switch {
		case err == nil:
			if err := tx.Model(&domain.Notification{}).Where("id = ?", notif.ID).
				Updates(map[string]interface{}{"is_read": false, "read_at": nil}).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			fresh := &domain.Notification{
				UserID:    id.UserID,
				UserRole:  id.Role,
				MessageID: msg.ID,
				Type:      domain.NotificationUnread,
			}
			if err := tx.Create(fresh).Error; err != nil {
				return err
			}
		default:
			return err
		}

		return recomputeUnread(tx, p.ID, msg.ConversationID, prevID, id)
	})
}

// ReadStatus reports how many eligible participants (everyone but the
// sender) have acknowledged the message, with the reader list. Informational
// for the read-receipt UI, not an enforced guarantee.
func (r *messageRepository) ReadStatus(messageID int64) (*domain.ReadStatus, error) {
	msg, err := r.FindByID(messageID)
	if err != nil {
		return nil, err
	}

	parts, err := listCurrentParticipants(r.db, msg.ConversationID)
	if err != nil {
		return nil, err
	}

	status := &domain.ReadStatus{MessageID: msg.ID, Readers: []domain.ReaderInfo{}}
	for _, p := range parts {
		if p.UserID == msg.SenderID && p.UserRole == msg.SenderRole {
			continue
		}
		status.Total++
		if p.LastReadMessageID >= msg.ID {
			status.ReadCount++
			status.Readers = append(status.Readers, domain.ReaderInfo{
				UserID:     p.UserID,
				Role:       p.UserRole,
				LastReadAt: p.LastReadAt,
			})
		}
	}
	if status.Total > 0 {
		status.Percent = float64(status.ReadCount) * 100 / float64(status.Total)
	}
	return status, nil
}

// SoftDelete hides a message. Only its sender may do so.
func (r *messageRepository) SoftDelete(messageID int64, id domain.Identity) error {
	msg, err := r.FindByID(messageID)
	if err != nil {
		return err
	}
	if !msg.SentBy(id) {
		return common.ErrForbidden
	}
	return r.db.Model(&domain.Message{}).Where("id = ?", messageID).
		Update("is_deleted", true).Error
}

// UnreadTotal sums the unread badge over the identity's non-trashed rows.
func (r *messageRepository) UnreadTotal(id domain.Identity) (int64, error) {
	var total int64
	err := r.db.Model(&domain.Participant{}).
		Where("user_id = ? AND user_role = ? AND state <> ?", id.UserID, id.Role, domain.ParticipantTrashed).
		Select("COALESCE(SUM(unread_count), 0)").
		Scan(&total).Error
	return total, err
}
