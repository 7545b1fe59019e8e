package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/pronote-app/messagerie-backend/internal/common"
	"github.com/pronote-app/messagerie-backend/internal/domain"
)

// AttachmentRepository owns attachment rows.
type AttachmentRepository interface {
	SaveBatch(tx *gorm.DB, messageID int64, attachments []domain.Attachment) error
	FindByID(id int64) (*domain.Attachment, error)
	ListByMessage(messageID int64) ([]domain.Attachment, error)
}

type attachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository creates an AttachmentRepository.
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

// SaveBatch persists one row per stored file, linked to the message, within
// the caller's transaction. Any failed insert fails the whole batch so no
// partial linkage is left dangling.
func (r *attachmentRepository) SaveBatch(tx *gorm.DB, messageID int64, attachments []domain.Attachment) error {
	if tx == nil {
		tx = r.db
	}
	for i := range attachments {
		attachments[i].ID = 0
		attachments[i].MessageID = messageID
		if err := tx.Create(&attachments[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *attachmentRepository) FindByID(id int64) (*domain.Attachment, error) {
	var att domain.Attachment
	if err := r.db.Where("id = ?", id).First(&att).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return &att, nil
}

func (r *attachmentRepository) ListByMessage(messageID int64) ([]domain.Attachment, error) {
	var atts []domain.Attachment
	err := r.db.Where("message_id = ?", messageID).Order("id ASC").Find(&atts).Error
	return atts, err
}
