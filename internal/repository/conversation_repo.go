package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/pronote-app/messagerie-backend/internal/common"
	"github.com/pronote-app/messagerie-backend/internal/domain"
)

// ConversationRepository owns conversation and participant rows.
type ConversationRepository interface {
	Create(subject string, creator domain.Identity, participants []domain.ParticipantRef) (int64, error)
	FindByID(id int64) (*domain.Conversation, error)

	// FindParticipant returns the newest row for the identity in any state.
	FindParticipant(convID int64, id domain.Identity) (*domain.Participant, error)
	// FindCurrentParticipant returns the row if it is not trashed.
	FindCurrentParticipant(convID int64, id domain.Identity) (*domain.Participant, error)
	ListParticipants(convID int64) ([]domain.Participant, error)
	ListCurrentParticipants(convID int64) ([]domain.Participant, error)

	Archive(convID int64, id domain.Identity) error
	Unarchive(convID int64, id domain.Identity) error
	Trash(convID int64, id domain.Identity) error
	Restore(convID int64, id domain.Identity) error
	DeletePermanently(convID int64, id domain.Identity) error
	DeleteManyPermanently(convIDs []int64, id domain.Identity) (int64, error)

	AddParticipant(convID int64, ref domain.ParticipantRef) error
	PromoteModerator(convID int64, target domain.ParticipantRef) error

	ListByFolder(id domain.Identity, folder domain.Folder, page, limit int) ([]domain.ConversationSummary, int64, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a ConversationRepository.
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// Create inserts the conversation, the creator as admin participant and the
// remaining members, all-or-nothing.
func (r *conversationRepository) Create(subject string, creator domain.Identity, participants []domain.ParticipantRef) (int64, error) {
	var convID int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		conv := &domain.Conversation{Subject: subject}
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		convID = conv.ID

		admin := &domain.Participant{
			ConversationID: conv.ID,
			UserID:         creator.UserID,
			UserRole:       creator.Role,
			IsAdmin:        true,
			State:          domain.ParticipantActive,
		}
		if err := tx.Create(admin).Error; err != nil {
			return err
		}

		for _, ref := range participants {
			if ref.UserID == creator.UserID && ref.Role == creator.Role {
				continue
			}
			member := &domain.Participant{
				ConversationID: conv.ID,
				UserID:         ref.UserID,
				UserRole:       ref.Role,
				State:          domain.ParticipantActive,
			}
			if err := tx.Create(member).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return convID, nil
}

func (r *conversationRepository) FindByID(id int64) (*domain.Conversation, error) {
	var conv domain.Conversation
	if err := r.db.Where("id = ?", id).First(&conv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) FindParticipant(convID int64, id domain.Identity) (*domain.Participant, error) {
	return findParticipant(r.db, convID, id, false)
}

func (r *conversationRepository) FindCurrentParticipant(convID int64, id domain.Identity) (*domain.Participant, error) {
	return findParticipant(r.db, convID, id, true)
}

func findParticipant(db *gorm.DB, convID int64, id domain.Identity, currentOnly bool) (*domain.Participant, error) {
	q := db.Where("conversation_id = ? AND user_id = ? AND user_role = ?", convID, id.UserID, id.Role)
	if currentOnly {
		q = q.Where("state <> ?", domain.ParticipantTrashed)
	}
	var p domain.Participant
	if err := q.Order("id DESC").First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *conversationRepository) ListParticipants(convID int64) ([]domain.Participant, error) {
	var parts []domain.Participant
	err := r.db.Where("conversation_id = ?", convID).Order("id ASC").Find(&parts).Error
	return parts, err
}

func (r *conversationRepository) ListCurrentParticipants(convID int64) ([]domain.Participant, error) {
	var parts []domain.Participant
	err := r.db.Where("conversation_id = ? AND state <> ?", convID, domain.ParticipantTrashed).
		Order("id ASC").Find(&parts).Error
	return parts, err
}

// Archive flips the caller's own row to archived. Per-user visibility only,
// never a conversation-wide property.
func (r *conversationRepository) Archive(convID int64, id domain.Identity) error {
	return r.transition(convID, id, domain.ParticipantArchived)
}

// Unarchive moves the caller's row back to active. Refused on a trashed row.
func (r *conversationRepository) Unarchive(convID int64, id domain.Identity) error {
	return r.transition(convID, id, domain.ParticipantActive)
}

func (r *conversationRepository) transition(convID int64, id domain.Identity, to domain.ParticipantState) error {
	p, err := findParticipant(r.db, convID, id, false)
	if err != nil {
		return err
	}
	if p == nil {
		return common.ErrNotParticipant
	}
	if p.State == to {
		return nil
	}
	if !p.State.CanTransition(to) {
		return common.ErrInvalidTransition
	}
	return r.db.Model(&domain.Participant{}).Where("id = ?", p.ID).
		Update("state", to).Error
}

// Trash moves the caller's row to the corbeille. Trashing also clears the
// unread badge: the participant's unread notifications are marked read and
// last_read_at is stamped. Intentional coupling, not incidental.
func (r *conversationRepository) Trash(convID int64, id domain.Identity) error {
	p, err := findParticipant(r.db, convID, id, false)
	if err != nil {
		return err
	}
	if p == nil {
		return common.ErrNotParticipant
	}
	if p.State == domain.ParticipantTrashed {
		return nil
	}

	now := time.Now()
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := markConversationNotificationsRead(tx, convID, id, now); err != nil {
			return err
		}
		return tx.Model(&domain.Participant{}).Where("id = ?", p.ID).
			Updates(map[string]interface{}{
				"state":        domain.ParticipantTrashed,
				"last_read_at": now,
				"unread_count": 0,
				"version":      gorm.Expr("version + 1"),
			}).Error
	})
}

// markConversationNotificationsRead marks the identity's unread notifications
// attached to messages of the conversation as read.
func markConversationNotificationsRead(tx *gorm.DB, convID int64, id domain.Identity, now time.Time) error {
	sub := tx.Model(&domain.Message{}).Select("id").Where("conversation_id = ?", convID)
	return tx.Model(&domain.Notification{}).
		Where("user_id = ? AND user_role = ? AND is_read = ? AND message_id IN (?)",
			id.UserID, id.Role, false, sub).
		Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error
}

// Restore brings a trashed membership back. Idempotent: an existing
// non-trashed row is a successful no-op. When several rows accumulated for
// the same identity, the oldest is revived and the duplicates are removed.
// When no row exists at all, a fresh one is inserted.
func (r *conversationRepository) Restore(convID int64, id domain.Identity) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var rows []domain.Participant
		if err := tx.Where("conversation_id = ? AND user_id = ? AND user_role = ?",
			convID, id.UserID, id.Role).Order("id ASC").Find(&rows).Error; err != nil {
			return err
		}

		for _, p := range rows {
			if p.State != domain.ParticipantTrashed {
				return nil
			}
		}

		if len(rows) == 0 {
			fresh := &domain.Participant{
				ConversationID: convID,
				UserID:         id.UserID,
				UserRole:       id.Role,
				State:          domain.ParticipantActive,
			}
			return tx.Create(fresh).Error
		}

		oldest := rows[0]
		if err := tx.Model(&domain.Participant{}).Where("id = ?", oldest.ID).
			Update("state", domain.ParticipantActive).Error; err != nil {
			return err
		}
		if len(rows) > 1 {
			// Self-healing against accumulated duplicate rows.
			if err := tx.Where("conversation_id = ? AND user_id = ? AND user_role = ? AND id <> ?",
				convID, id.UserID, id.Role, oldest.ID).
				Delete(&domain.Participant{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// DeletePermanently hard-deletes the caller's own participant rows. Other
// participants keep their view of the conversation.
func (r *conversationRepository) DeletePermanently(convID int64, id domain.Identity) error {
	res := r.db.Where("conversation_id = ? AND user_id = ? AND user_role = ?",
		convID, id.UserID, id.Role).Delete(&domain.Participant{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.ErrNotParticipant
	}
	return nil
}

func (r *conversationRepository) DeleteManyPermanently(convIDs []int64, id domain.Identity) (int64, error) {
	if len(convIDs) == 0 {
		return 0, nil
	}
	res := r.db.Where("conversation_id IN ? AND user_id = ? AND user_role = ?",
		convIDs, id.UserID, id.Role).Delete(&domain.Participant{})
	return res.RowsAffected, res.Error
}

// AddParticipant inserts a fresh membership unless one already exists.
func (r *conversationRepository) AddParticipant(convID int64, ref domain.ParticipantRef) error {
	target := domain.Identity{UserID: ref.UserID, Role: ref.Role}
	existing, err := findParticipant(r.db, convID, target, true)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	p := &domain.Participant{
		ConversationID: convID,
		UserID:         ref.UserID,
		UserRole:       ref.Role,
		State:          domain.ParticipantActive,
	}
	return r.db.Create(p).Error
}

// PromoteModerator flags a current member as moderator.
func (r *conversationRepository) PromoteModerator(convID int64, target domain.ParticipantRef) error {
	p, err := findParticipant(r.db, convID, domain.Identity{UserID: target.UserID, Role: target.Role}, true)
	if err != nil {
		return err
	}
	if p == nil {
		return common.ErrNotParticipant
	}
	return r.db.Model(&domain.Participant{}).Where("id = ?", p.ID).
		Update("is_moderator", true).Error
}

// folderScope applies the folder's filter predicate over the caller's
// participant row and the conversation's messages. Total over the closed
// state set, no open flag combinations.
func folderScope(q *gorm.DB, id domain.Identity, folder domain.Folder) *gorm.DB {
	switch folder {
	case domain.FolderReception:
		return q.Where("p.state = ?", domain.ParticipantActive)
	case domain.FolderArchives:
		return q.Where("p.state = ?", domain.ParticipantArchived)
	case domain.FolderCorbeille:
		return q.Where("p.state = ?", domain.ParticipantTrashed)
	case domain.FolderEnvoyes:
		return q.Where("p.state <> ?", domain.ParticipantTrashed).
			Where("EXISTS (SELECT 1 FROM messages m WHERE m.conversation_id = conversations.id"+
				" AND m.sender_id = ? AND m.sender_role = ? AND m.is_deleted = ?)",
				id.UserID, id.Role, false)
	case domain.FolderInformation:
		return q.Where("p.state <> ?", domain.ParticipantTrashed).
			Where("EXISTS (SELECT 1 FROM messages m WHERE m.conversation_id = conversations.id"+
				" AND m.status = ? AND m.is_deleted = ?)", domain.StatusAnnonce, false)
	}
	return q
}

type folderRow struct {
	ID          int64
	Subject     string
	UpdatedAt   time.Time
	State       domain.ParticipantState
	UnreadCount int64
}

// ListByFolder returns the caller's conversations for a folder, newest
// activity first.
func (r *conversationRepository) ListByFolder(id domain.Identity, folder domain.Folder, page, limit int) ([]domain.ConversationSummary, int64, error) {
	base := r.db.Model(&domain.Conversation{}).
		Joins("JOIN conversation_participants p ON p.conversation_id = conversations.id").
		Where("p.user_id = ? AND p.user_role = ?", id.UserID, id.Role)
	base = folderScope(base, id, folder)

	var total int64
	if err := base.Session(&gorm.Session{}).Distinct("conversations.id").Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []folderRow
	err := base.Session(&gorm.Session{}).
		Select("conversations.id AS id, conversations.subject AS subject, conversations.updated_at AS updated_at,"+
			" p.state AS state, p.unread_count AS unread_count").
		Order("conversations.updated_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]domain.ConversationSummary, 0, len(rows))
	for _, row := range rows {
		summary := domain.ConversationSummary{
			ID:          row.ID,
			Subject:     row.Subject,
			UpdatedAt:   row.UpdatedAt,
			State:       row.State,
			UnreadCount: row.UnreadCount,
		}

		var last domain.Message
		if err := r.db.Where("conversation_id = ? AND is_deleted = ?", row.ID, false).
			Order("id DESC").First(&last).Error; err == nil {
			summary.LastMessage = &domain.MessagePreview{
				ID:         last.ID,
				SenderID:   last.SenderID,
				SenderRole: last.SenderRole,
				Body:       last.Body,
				Status:     last.Status,
				CreatedAt:  last.CreatedAt,
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, err
		}

		parts, err := r.ListCurrentParticipants(row.ID)
		if err != nil {
			return nil, 0, err
		}
		for _, p := range parts {
			summary.Participants = append(summary.Participants, domain.ParticipantView{
				UserID:      p.UserID,
				Role:        p.UserRole,
				IsAdmin:     p.IsAdmin,
				IsModerator: p.IsModerator,
				State:       p.State,
			})
		}

		summaries = append(summaries, summary)
	}
	return summaries, total, nil
}
