package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pronote-app/messagerie-backend/internal/common"
	"github.com/pronote-app/messagerie-backend/internal/domain"
	"github.com/pronote-app/messagerie-backend/internal/repository"
)

const maxSubjectLength = 255

// ConversationService applies permission checks and validation over the
// conversation repository.
type ConversationService struct {
	repo  repository.ConversationRepository
	perms *PermissionService
}

// NewConversationService creates a ConversationService.
func NewConversationService(repo repository.ConversationRepository, perms *PermissionService) *ConversationService {
	return &ConversationService{repo: repo, perms: perms}
}

// Create opens a conversation with the caller as its admin.
func (s *ConversationService) Create(id domain.Identity, req *domain.CreateConversationRequest) (int64, error) {
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return 0, fmt.Errorf("%w: le sujet est obligatoire", common.ErrInvalidInput)
	}
	if utf8.RuneCountInString(subject) > maxSubjectLength {
		return 0, fmt.Errorf("%w: le sujet dépasse %d caractères", common.ErrInvalidInput, maxSubjectLength)
	}
	if len(req.Participants) == 0 {
		return 0, fmt.Errorf("%w: au moins un destinataire est requis", common.ErrInvalidInput)
	}
	for _, ref := range req.Participants {
		if !ref.Role.Valid() {
			return 0, fmt.Errorf("%w: type d'utilisateur inconnu: %s", common.ErrInvalidInput, ref.Role)
		}
	}

	if err := s.perms.RequirePermission(id, PermSendMessage, nil); err != nil {
		return 0, err
	}
	return s.repo.Create(subject, id, req.Participants)
}

// List returns the caller's conversations for the given folder.
func (s *ConversationService) List(id domain.Identity, folderName string, page, limit int) ([]domain.ConversationSummary, int64, error) {
	folder, ok := domain.ParseFolder(folderName)
	if !ok {
		return nil, 0, fmt.Errorf("%w: dossier inconnu: %s", common.ErrInvalidInput, folderName)
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 20
	}
	return s.repo.ListByFolder(id, folder, page, limit)
}

// Archive hides the conversation from the caller's reception folder.
func (s *ConversationService) Archive(convID int64, id domain.Identity) error {
	if err := s.perms.RequirePermission(id, PermArchiveConversation, &PermissionContext{ConversationID: convID}); err != nil {
		return err
	}
	return s.repo.Archive(convID, id)
}

// Unarchive moves the conversation back to the caller's reception folder.
func (s *ConversationService) Unarchive(convID int64, id domain.Identity) error {
	if err := s.perms.RequirePermission(id, PermArchiveConversation, &PermissionContext{ConversationID: convID}); err != nil {
		return err
	}
	return s.repo.Unarchive(convID, id)
}

// Trash moves the caller's view of the conversation to the corbeille.
func (s *ConversationService) Trash(convID int64, id domain.Identity) error {
	if err := s.perms.RequirePermission(id, PermDeleteConversation, &PermissionContext{ConversationID: convID}); err != nil {
		return err
	}
	return s.repo.Trash(convID, id)
}

// Restore brings a trashed conversation back for the caller. No permission
// gate: the trashed row itself is the entitlement, and restore must succeed
// even though a trashed participant no longer passes the context checks.
func (s *ConversationService) Restore(convID int64, id domain.Identity) error {
	if _, err := s.repo.FindByID(convID); err != nil {
		return err
	}
	return s.repo.Restore(convID, id)
}

// Purge permanently removes the caller's membership rows.
func (s *ConversationService) Purge(convID int64, id domain.Identity) error {
	return s.repo.DeletePermanently(convID, id)
}

// PurgeMany permanently removes the caller's membership rows for several
// conversations at once. Returns how many rows went away.
func (s *ConversationService) PurgeMany(convIDs []int64, id domain.Identity) (int64, error) {
	if len(convIDs) == 0 {
		return 0, fmt.Errorf("%w: aucune conversation sélectionnée", common.ErrInvalidInput)
	}
	return s.repo.DeleteManyPermanently(convIDs, id)
}

// Participants lists the conversation's members for a participant.
func (s *ConversationService) Participants(convID int64, id domain.Identity) ([]domain.ParticipantView, error) {
	if err := s.perms.RequirePermission(id, PermViewConversation, &PermissionContext{ConversationID: convID}); err != nil {
		return nil, err
	}
	parts, err := s.repo.ListCurrentParticipants(convID)
	if err != nil {
		return nil, err
	}
	views := make([]domain.ParticipantView, 0, len(parts))
	for _, p := range parts {
		views = append(views, domain.ParticipantView{
			UserID:      p.UserID,
			Role:        p.UserRole,
			IsAdmin:     p.IsAdmin,
			IsModerator: p.IsModerator,
			State:       p.State,
		})
	}
	return views, nil
}

// AddParticipant adds a member. Moderator or admin standing required.
func (s *ConversationService) AddParticipant(convID int64, id domain.Identity, ref domain.ParticipantRef) error {
	if !ref.Role.Valid() {
		return fmt.Errorf("%w: type d'utilisateur inconnu: %s", common.ErrInvalidInput, ref.Role)
	}
	if err := s.perms.RequirePermission(id, PermManageParticipants, &PermissionContext{ConversationID: convID}); err != nil {
		return err
	}
	return s.repo.AddParticipant(convID, ref)
}

// PromoteModerator promotes a member. Only the conversation admin may do so.
func (s *ConversationService) PromoteModerator(convID int64, id domain.Identity, ref domain.ParticipantRef) error {
	if err := s.perms.RequirePermission(id, PermPromoteModerator, &PermissionContext{ConversationID: convID}); err != nil {
		return err
	}
	return s.repo.PromoteModerator(convID, ref)
}
