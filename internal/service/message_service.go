package service

import (
	"fmt"
	"mime/multipart"
	"strings"
	"unicode/utf8"

	"github.com/pronote-app/messagerie-backend/internal/common"
	"github.com/pronote-app/messagerie-backend/internal/domain"
	"github.com/pronote-app/messagerie-backend/internal/repository"
)

// MessageService applies permissions and validation over the message
// repository and the attachment store.
type MessageService struct {
	msgRepo     repository.MessageRepository
	convRepo    repository.ConversationRepository
	attachments *AttachmentService
	perms       *PermissionService
}

// NewMessageService creates a MessageService.
func NewMessageService(msgRepo repository.MessageRepository, convRepo repository.ConversationRepository,
	attachments *AttachmentService, perms *PermissionService) *MessageService {
	return &MessageService{
		msgRepo:     msgRepo,
		convRepo:    convRepo,
		attachments: attachments,
		perms:       perms,
	}
}

// Send posts a message to a conversation, storing any uploaded files first.
func (s *MessageService) Send(id domain.Identity, convID int64, req *domain.SendMessageRequest, files []*multipart.FileHeader) (int64, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return 0, common.ErrEmptyBody
	}
	if utf8.RuneCountInString(body) > domain.MaxBodyLength {
		return 0, fmt.Errorf("%w (%d caractères)", common.ErrBodyTooLong, domain.MaxBodyLength)
	}

	ctx := &PermissionContext{ConversationID: convID}
	if req.IsAnnouncement {
		if err := s.perms.RequirePermission(id, PermSendAnnouncement, nil); err != nil {
			return 0, err
		}
	}
	if err := s.perms.RequirePermission(id, PermSendMessage, ctx); err != nil {
		return 0, err
	}

	if req.ParentMessageID != nil {
		parent, err := s.msgRepo.FindByID(*req.ParentMessageID)
		if err != nil {
			return 0, err
		}
		if parent.ConversationID != convID {
			return 0, fmt.Errorf("%w: le message parent n'appartient pas à cette conversation", common.ErrInvalidInput)
		}
	}

	var stored []domain.Attachment
	if len(files) > 0 {
		var err error
		stored, err = s.attachments.StoreAll(files)
		if err != nil {
			return 0, err
		}
	}

	return s.msgRepo.Add(&repository.AddMessageParams{
		ConversationID:        convID,
		Sender:                id,
		Body:                  body,
		Status:                domain.DeriveStatus(req.IsAnnouncement, req.Importance),
		MandatoryNotification: req.MandatoryNotification,
		ParentMessageID:       req.ParentMessageID,
		Attachments:           stored,
	})
}

// List returns the conversation's messages annotated for the caller.
// includeTrashed lets a trashed participant read a corbeille conversation.
func (s *MessageService) List(id domain.Identity, convID int64, includeTrashed bool) ([]domain.MessageView, error) {
	return s.msgRepo.ListByConversation(convID, id, includeTrashed)
}

// MarkRead advances the caller's read high-water mark to the message.
// A concurrency conflict after retries is transient: retry the user action.
func (s *MessageService) MarkRead(id domain.Identity, messageID int64) error {
	return s.msgRepo.MarkAsRead(messageID, id, repository.DefaultReadRetries)
}

// MarkUnread rewinds the caller's read high-water mark below the message.
func (s *MessageService) MarkUnread(id domain.Identity, messageID int64) error {
	return s.msgRepo.MarkAsUnread(messageID, id)
}

// ReadStatus returns read receipts for a message the caller can view.
func (s *MessageService) ReadStatus(id domain.Identity, messageID int64) (*domain.ReadStatus, error) {
	msg, err := s.msgRepo.FindByID(messageID)
	if err != nil {
		return nil, err
	}
	ctx := &PermissionContext{ConversationID: msg.ConversationID}
	if err := s.perms.RequirePermission(id, PermViewConversation, ctx); err != nil {
		return nil, err
	}
	return s.msgRepo.ReadStatus(messageID)
}

// Delete soft-deletes a message the caller sent.
func (s *MessageService) Delete(id domain.Identity, messageID int64) error {
	return s.msgRepo.SoftDelete(messageID, id)
}

// UnreadTotal returns the caller's unread badge across conversations.
func (s *MessageService) UnreadTotal(id domain.Identity) (int64, error) {
	return s.msgRepo.UnreadTotal(id)
}
