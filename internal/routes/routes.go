package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/pronote-app/messagerie-backend/internal/handler"
	"github.com/pronote-app/messagerie-backend/internal/middleware"
	"github.com/pronote-app/messagerie-backend/internal/service"
	"github.com/pronote-app/messagerie-backend/pkg/jwt"
)

// Handlers groups the messaging handlers for registration.
type Handlers struct {
	Conversations *handler.ConversationHandler
	Messages      *handler.MessageHandler
	Notifications *handler.NotificationHandler
	Security      *handler.SecurityHandler
}

// Per-action rate limits. Message sending and conversation creation are the
// abuse-prone writes.
const (
	sendMessageLimit        = 20
	createConversationLimit = 10
	actionWindow            = time.Minute
)

// Setup registers the messaging API under /api/v1/messagerie.
func Setup(router *gin.Engine, h *Handlers, jwtManager *jwt.Manager, limiter *service.RateLimiter, rdb *redis.Client) {
	api := router.Group("/api/v1/messagerie")
	api.Use(middleware.JWTAuth(jwtManager))

	if rdb != nil {
		api.Use(middleware.CSRF(rdb))
		api.GET("/csrf", h.Security.CSRFToken)
	}

	sendLimit := middleware.EnforceRateLimit(limiter, "send_message", sendMessageLimit, actionWindow)
	createLimit := middleware.EnforceRateLimit(limiter, "create_conversation", createConversationLimit, actionWindow)

	conversations := api.Group("/conversations")
	conversations.GET("", h.Conversations.List)
	conversations.POST("", createLimit, h.Conversations.Create)
	conversations.POST("/purge", h.Conversations.PurgeBatch)
	conversations.POST("/:id/archive", h.Conversations.Archive)
	conversations.POST("/:id/unarchive", h.Conversations.Unarchive)
	conversations.POST("/:id/restore", h.Conversations.Restore)
	conversations.DELETE("/:id", h.Conversations.Trash)
	conversations.DELETE("/:id/permanent", h.Conversations.Purge)
	conversations.GET("/:id/participants", h.Conversations.Participants)
	conversations.POST("/:id/participants", h.Conversations.AddParticipant)
	conversations.POST("/:id/participants/promote", h.Conversations.PromoteModerator)
	conversations.GET("/:id/messages", h.Messages.List)
	conversations.POST("/:id/messages", sendLimit, h.Messages.Send)

	messages := api.Group("/messages")
	messages.GET("/unread-count", h.Messages.UnreadTotal)
	messages.POST("/:id/read", h.Messages.MarkRead)
	messages.POST("/:id/unread", h.Messages.MarkUnread)
	messages.GET("/:id/read-status", h.Messages.ReadStatus)
	messages.DELETE("/:id", h.Messages.Delete)

	api.GET("/attachments/:id", h.Messages.DownloadAttachment)

	notifications := api.Group("/notifications")
	notifications.GET("", h.Notifications.List)
	notifications.GET("/unread-count", h.Notifications.UnreadCount)
	notifications.POST("/read-all", h.Notifications.MarkAllRead)
}
