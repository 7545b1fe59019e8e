package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/pronote-app/messagerie-backend/internal/common"
	"github.com/pronote-app/messagerie-backend/internal/repository"
)

// NotificationHandler serves the notification badge and listing.
type NotificationHandler struct {
	notifications *repository.NotificationRepository
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(notifications *repository.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List handles GET /notifications
func (h *NotificationHandler) List(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	page, perPage := parsePagination(c)

	notifications, total, err := h.notifications.List(id, (page-1)*perPage, perPage)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, gin.H{
		"notifications": notifications,
		"total":         total,
		"page":          page,
		"per_page":      perPage,
	})
}

// UnreadCount handles GET /notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	count, err := h.notifications.UnreadCount(id)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, gin.H{"total_unread": count})
}

// MarkAllRead handles POST /notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	if err := h.notifications.MarkAllAsRead(id); err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, gin.H{})
}
