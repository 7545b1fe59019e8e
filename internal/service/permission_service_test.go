package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pronote-app/messagerie-backend/internal/common"
	"github.com/pronote-app/messagerie-backend/internal/domain"
	"github.com/pronote-app/messagerie-backend/internal/repository"
)

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	err = db.AutoMigrate(
		&domain.Conversation{},
		&domain.Participant{},
		&domain.Message{},
		&domain.Attachment{},
		&domain.Notification{},
	)
	require.NoError(t, err)
	return db
}

var (
	profID   = domain.Identity{UserID: 10, Role: domain.RoleProfesseur}
	parentID = domain.Identity{UserID: 55, Role: domain.RoleParent}
	eleveID  = domain.Identity{UserID: 7, Role: domain.RoleEleve}
	vieScoID = domain.Identity{UserID: 3, Role: domain.RoleVieScolaire}
	adminID  = domain.Identity{UserID: 1, Role: domain.RoleAdministrateur}
)

func TestBasePermissions(t *testing.T) {
	db := setupServiceDB(t)
	perms := NewPermissionService(repository.NewConversationRepository(db))

	tests := []struct {
		name     string
		id       domain.Identity
		perm     Permission
		expected bool
	}{
		{"eleve sends messages", eleveID, PermSendMessage, true},
		{"parent sends messages", parentID, PermSendMessage, true},
		{"eleve no class messages", eleveID, PermSendClassMessage, false},
		{"professeur class messages", profID, PermSendClassMessage, true},
		{"professeur no announcements", profID, PermSendAnnouncement, false},
		{"vie scolaire announcements", vieScoID, PermSendAnnouncement, true},
		{"administrateur announcements", adminID, PermSendAnnouncement, true},
		{"unknown role denied", domain.Identity{UserID: 2, Role: "inconnu"}, PermSendMessage, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := perms.HasPermission(tt.id, tt.perm, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}
}

func TestContextualPermissions(t *testing.T) {
	db := setupServiceDB(t)
	convRepo := repository.NewConversationRepository(db)
	perms := NewPermissionService(convRepo)

	convID, err := convRepo.Create("Conseil de classe", profID,
		[]domain.ParticipantRef{{UserID: parentID.UserID, Role: parentID.Role}})
	require.NoError(t, err)
	ctx := &PermissionContext{ConversationID: convID}

	// Any participant may view, archive and trash their own row.
	for _, perm := range []Permission{PermViewConversation, PermArchiveConversation, PermDeleteConversation} {
		ok, err := perms.HasPermission(parentID, perm, ctx)
		require.NoError(t, err)
		assert.True(t, ok, string(perm))

		ok, err = perms.HasPermission(eleveID, perm, ctx)
		require.NoError(t, err)
		assert.False(t, ok, "non-participant denied "+string(perm))
	}

	// Sending into a conversation needs membership on top of the base right.
	ok, err := perms.HasPermission(eleveID, PermSendMessage, ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// A plain member cannot manage participants; the creator (admin) can.
	ok, err = perms.HasPermission(parentID, PermManageParticipants, ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = perms.HasPermission(profID, PermManageParticipants, ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// Promotion grants management but not further promotion rights.
	require.NoError(t, convRepo.PromoteModerator(convID,
		domain.ParticipantRef{UserID: parentID.UserID, Role: parentID.Role}))

	ok, err = perms.HasPermission(parentID, PermManageParticipants, ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = perms.HasPermission(parentID, PermPromoteModerator, ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = perms.HasPermission(profID, PermPromoteModerator, ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestContextualPermissionsTrashedRow(t *testing.T) {
	db := setupServiceDB(t)
	convRepo := repository.NewConversationRepository(db)
	perms := NewPermissionService(convRepo)

	convID, err := convRepo.Create("Sortie musée", profID,
		[]domain.ParticipantRef{{UserID: parentID.UserID, Role: parentID.Role}})
	require.NoError(t, err)
	require.NoError(t, convRepo.Trash(convID, parentID))

	// A trashed row no longer passes any contextual check.
	ok, err := perms.HasPermission(parentID, PermViewConversation, &PermissionContext{ConversationID: convID})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRequirePermission(t *testing.T) {
	db := setupServiceDB(t)
	perms := NewPermissionService(repository.NewConversationRepository(db))

	assert.NoError(t, perms.RequirePermission(vieScoID, PermSendAnnouncement, nil))

	err := perms.RequirePermission(eleveID, PermSendAnnouncement, nil)
	assert.ErrorIs(t, err, common.ErrForbidden)
}
