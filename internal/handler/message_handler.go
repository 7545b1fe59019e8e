package handler

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pronote-app/messagerie-backend/internal/common"
	"github.com/pronote-app/messagerie-backend/internal/domain"
	"github.com/pronote-app/messagerie-backend/internal/service"
)

// MessageHandler serves the message endpoints.
type MessageHandler struct {
	messages    *service.MessageService
	attachments *service.AttachmentService
}

// NewMessageHandler creates a MessageHandler.
func NewMessageHandler(messages *service.MessageService, attachments *service.AttachmentService) *MessageHandler {
	return &MessageHandler{messages: messages, attachments: attachments}
}

// List handles GET /conversations/:id/messages
// include_deleted=1 lets a trashed participant view a corbeille conversation.
func (h *MessageHandler) List(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	convID, ok := pathID(c, "id")
	if !ok {
		return
	}

	includeTrashed := c.Query("include_deleted") == "1"
	views, err := h.messages.List(id, convID, includeTrashed)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, gin.H{"messages": views})
}

// Send handles POST /conversations/:id/messages. Accepts either a JSON body
// or a multipart form with a files field for attachments.
// @Summary  Post a message, optionally with attachments
// @Tags     messages
// @Accept   json,mpfd
// @Produce  json
// @Success  201  {object}  map[string]interface{}
// @Router   /conversations/{id}/messages [post]
func (h *MessageHandler) Send(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	convID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req domain.SendMessageRequest
	var files []*multipart.FileHeader

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		form, err := c.MultipartForm()
		if err != nil {
			common.Error(c, http.StatusUnprocessableEntity, "formulaire invalide")
			return
		}
		req.Body = c.PostForm("body")
		req.Importance = c.PostForm("importance")
		req.IsAnnouncement = c.PostForm("is_announcement") == "1"
		req.MandatoryNotification = c.PostForm("mandatory_notification") == "1"
		if raw := c.PostForm("parent_message_id"); raw != "" {
			parentID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				common.Error(c, http.StatusUnprocessableEntity, "message parent invalide")
				return
			}
			req.ParentMessageID = &parentID
		}
		files = form.File["files"]
	} else {
		if err := c.ShouldBindJSON(&req); err != nil {
			common.Error(c, http.StatusUnprocessableEntity, "format de requête invalide")
			return
		}
	}

	messageID, err := h.messages.Send(id, convID, &req, files)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Created(c, gin.H{"message_id": messageID})
}

// MarkRead handles POST /messages/:id/read
func (h *MessageHandler) MarkRead(c *gin.Context) {
	h.readStateOp(c, h.messages.MarkRead)
}

// MarkUnread handles POST /messages/:id/unread
func (h *MessageHandler) MarkUnread(c *gin.Context) {
	h.readStateOp(c, h.messages.MarkUnread)
}

func (h *MessageHandler) readStateOp(c *gin.Context, op func(domain.Identity, int64) error) {
	id, ok := identity(c)
	if !ok {
		return
	}
	messageID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := op(id, messageID); err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, gin.H{"message_id": messageID})
}

// ReadStatus handles GET /messages/:id/read-status
func (h *MessageHandler) ReadStatus(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	messageID, ok := pathID(c, "id")
	if !ok {
		return
	}

	status, err := h.messages.ReadStatus(id, messageID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, gin.H{"read_status": status})
}

// Delete handles DELETE /messages/:id
func (h *MessageHandler) Delete(c *gin.Context) {
	h.readStateOp(c, h.messages.Delete)
}

// UnreadTotal handles GET /messages/unread-count
func (h *MessageHandler) UnreadTotal(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	total, err := h.messages.UnreadTotal(id)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, gin.H{"total_unread": total})
}

// DownloadAttachment handles GET /attachments/:id
func (h *MessageHandler) DownloadAttachment(c *gin.Context) {
	if _, ok := identity(c); !ok {
		return
	}
	attachmentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	att, absPath, err := h.attachments.FileForDownload(attachmentID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.FileAttachment(absPath, att.FileName)
}
