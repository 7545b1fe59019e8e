package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pronote-app/messagerie-backend/internal/common"
	"github.com/pronote-app/messagerie-backend/internal/domain"
	"github.com/pronote-app/messagerie-backend/internal/service"
)

// ConversationHandler serves the conversation endpoints.
type ConversationHandler struct {
	conversations *service.ConversationService
}

// NewConversationHandler creates a ConversationHandler.
func NewConversationHandler(conversations *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

// List handles GET /conversations?folder=reception
// @Summary  List the caller's conversations for a folder
// @Tags     conversations
// @Produce  json
// @Param    folder  query  string  false  "reception|envoyes|archives|information|corbeille"
// @Success  200  {object}  map[string]interface{}
// @Router   /conversations [get]
func (h *ConversationHandler) List(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	page, perPage := parsePagination(c)

	summaries, total, err := h.conversations.List(id, c.Query("folder"), page, perPage)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, gin.H{
		"conversations": summaries,
		"total":         total,
		"page":          page,
		"per_page":      perPage,
	})
}

// Create handles POST /conversations
func (h *ConversationHandler) Create(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req domain.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusUnprocessableEntity, "format de requête invalide")
		return
	}

	convID, err := h.conversations.Create(id, &req)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Created(c, gin.H{"conversation_id": convID})
}

// Archive handles POST /conversations/:id/archive
func (h *ConversationHandler) Archive(c *gin.Context) {
	h.transition(c, h.conversations.Archive)
}

// Unarchive handles POST /conversations/:id/unarchive
func (h *ConversationHandler) Unarchive(c *gin.Context) {
	h.transition(c, h.conversations.Unarchive)
}

// Trash handles DELETE /conversations/:id (move to corbeille)
func (h *ConversationHandler) Trash(c *gin.Context) {
	h.transition(c, h.conversations.Trash)
}

// Restore handles POST /conversations/:id/restore
func (h *ConversationHandler) Restore(c *gin.Context) {
	h.transition(c, h.conversations.Restore)
}

// Purge handles DELETE /conversations/:id/permanent
func (h *ConversationHandler) Purge(c *gin.Context) {
	h.transition(c, h.conversations.Purge)
}

func (h *ConversationHandler) transition(c *gin.Context, op func(int64, domain.Identity) error) {
	id, ok := identity(c)
	if !ok {
		return
	}
	convID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := op(convID, id); err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, gin.H{"conversation_id": convID})
}

// PurgeBatch handles POST /conversations/purge
func (h *ConversationHandler) PurgeBatch(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req struct {
		ConversationIDs []int64 `json:"conversation_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusUnprocessableEntity, "format de requête invalide")
		return
	}

	deleted, err := h.conversations.PurgeMany(req.ConversationIDs, id)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, gin.H{"deleted": deleted})
}

// Participants handles GET /conversations/:id/participants
func (h *ConversationHandler) Participants(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	convID, ok := pathID(c, "id")
	if !ok {
		return
	}

	parts, err := h.conversations.Participants(convID, id)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, gin.H{"participants": parts})
}

// AddParticipant handles POST /conversations/:id/participants
func (h *ConversationHandler) AddParticipant(c *gin.Context) {
	h.participantOp(c, h.conversations.AddParticipant)
}

// PromoteModerator handles POST /conversations/:id/participants/promote
func (h *ConversationHandler) PromoteModerator(c *gin.Context) {
	h.participantOp(c, h.conversations.PromoteModerator)
}

func (h *ConversationHandler) participantOp(c *gin.Context, op func(int64, domain.Identity, domain.ParticipantRef) error) {
	id, ok := identity(c)
	if !ok {
		return
	}
	convID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var ref domain.ParticipantRef
	if err := c.ShouldBindJSON(&ref); err != nil {
		common.Error(c, http.StatusUnprocessableEntity, "format de requête invalide")
		return
	}

	if err := op(convID, id, ref); err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, gin.H{"conversation_id": convID})
}
