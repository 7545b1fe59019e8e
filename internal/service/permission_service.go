package service

import (
	"fmt"

	"github.com/pronote-app/messagerie-backend/internal/common"
	"github.com/pronote-app/messagerie-backend/internal/domain"
	"github.com/pronote-app/messagerie-backend/internal/repository"
)

// Permission names a messaging capability.
type Permission string

const (
	PermSendMessage         Permission = "send_message"
	PermSendClassMessage    Permission = "send_class_message"
	PermSendAnnouncement    Permission = "send_announcement"
	PermManageParticipants  Permission = "manage_participants"
	PermPromoteModerator    Permission = "promote_moderator"
	PermViewConversation    Permission = "view_conversation"
	PermArchiveConversation Permission = "archive_conversation"
	PermDeleteConversation  Permission = "delete_conversation"
)

// rolePermissions is the fixed base table: role → global permissions.
var rolePermissions = map[domain.Role]map[Permission]bool{
	domain.RoleEleve: {
		PermSendMessage: true,
	},
	domain.RoleParent: {
		PermSendMessage: true,
	},
	domain.RoleProfesseur: {
		PermSendMessage:      true,
		PermSendClassMessage: true,
	},
	domain.RoleVieScolaire: {
		PermSendMessage:      true,
		PermSendAnnouncement: true,
	},
	domain.RoleAdministrateur: {
		PermSendMessage:        true,
		PermSendAnnouncement:   true,
		PermManageParticipants: true,
		PermPromoteModerator:   true,
	},
}

// PermissionContext scopes a check to a conversation.
type PermissionContext struct {
	ConversationID int64
}

// PermissionService resolves (identity, permission, context) to a yes/no
// answer. Purely a query over participant data; never mutates state.
type PermissionService struct {
	convRepo repository.ConversationRepository
}

// NewPermissionService creates a PermissionService.
func NewPermissionService(convRepo repository.ConversationRepository) *PermissionService {
	return &PermissionService{convRepo: convRepo}
}

// HasPermission evaluates the base role table plus the conversation context.
// view/archive/delete are purely contextual: any non-trashed participant
// holds them. manage_participants needs moderator or admin standing in the
// conversation; promote_moderator needs the admin (creator) seat.
func (s *PermissionService) HasPermission(id domain.Identity, perm Permission, ctx *PermissionContext) (bool, error) {
	base := rolePermissions[id.Role][perm]

	switch perm {
	case PermViewConversation, PermArchiveConversation, PermDeleteConversation:
		if ctx == nil {
			return false, nil
		}
		p, err := s.convRepo.FindCurrentParticipant(ctx.ConversationID, id)
		if err != nil {
			return false, err
		}
		return p != nil, nil

	case PermSendMessage:
		if !base {
			return false, nil
		}
		if ctx == nil {
			return true, nil
		}
		p, err := s.convRepo.FindCurrentParticipant(ctx.ConversationID, id)
		if err != nil {
			return false, err
		}
		return p != nil, nil

	case PermManageParticipants:
		if ctx == nil {
			return false, nil
		}
		p, err := s.convRepo.FindCurrentParticipant(ctx.ConversationID, id)
		if err != nil {
			return false, err
		}
		return p != nil && (p.IsModerator || p.IsAdmin), nil

	case PermPromoteModerator:
		if ctx == nil {
			return false, nil
		}
		p, err := s.convRepo.FindCurrentParticipant(ctx.ConversationID, id)
		if err != nil {
			return false, err
		}
		return p != nil && p.IsAdmin, nil
	}

	return base, nil
}

// RequirePermission raises an authorization failure when the permission is
// denied. Callers treat this as fatal for the current operation.
func (s *PermissionService) RequirePermission(id domain.Identity, perm Permission, ctx *PermissionContext) error {
	ok, err := s.HasPermission(id, perm, ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", common.ErrForbidden, perm)
	}
	return nil
}
