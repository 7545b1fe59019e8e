package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/pronote-app/messagerie-backend/internal/domain"
)

// NotificationRepository serves the notification endpoints (badge, listing).
// Fan-out creation happens inside the message repository's transaction.
type NotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a NotificationRepository.
func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// UnreadCount returns the number of unread notifications for an identity.
func (r *NotificationRepository) UnreadCount(id domain.Identity) (int64, error) {
	var count int64
	err := r.db.Model(&domain.Notification{}).
		Where("user_id = ? AND user_role = ? AND is_read = ?", id.UserID, id.Role, false).
		Count(&count).Error
	return count, err
}

// List returns paginated notifications for an identity, newest first.
func (r *NotificationRepository) List(id domain.Identity, offset, limit int) ([]domain.Notification, int64, error) {
	var notifications []domain.Notification
	var total int64

	if err := r.db.Model(&domain.Notification{}).
		Where("user_id = ? AND user_role = ?", id.UserID, id.Role).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := r.db.Where("user_id = ? AND user_role = ?", id.UserID, id.Role).
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}

// MarkAllAsRead marks every unread notification of the identity as read.
func (r *NotificationRepository) MarkAllAsRead(id domain.Identity) error {
	now := time.Now()
	return r.db.Model(&domain.Notification{}).
		Where("user_id = ? AND user_role = ? AND is_read = ?", id.UserID, id.Role, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error
}
