package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParticipantStateTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    ParticipantState
		to      ParticipantState
		allowed bool
	}{
		{"active to archived", ParticipantActive, ParticipantArchived, true},
		{"active to trashed", ParticipantActive, ParticipantTrashed, true},
		{"archived to active", ParticipantArchived, ParticipantActive, true},
		{"archived to trashed", ParticipantArchived, ParticipantTrashed, true},
		{"trashed to active", ParticipantTrashed, ParticipantActive, true},
		{"trashed to archived", ParticipantTrashed, ParticipantArchived, false},
		{"active to active", ParticipantActive, ParticipantActive, false},
		{"unknown state", ParticipantState("gone"), ParticipantActive, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to))
		})
	}
}

func TestParseFolder(t *testing.T) {
	tests := []struct {
		raw      string
		expected Folder
		ok       bool
	}{
		{"", FolderReception, true},
		{"reception", FolderReception, true},
		{"envoyes", FolderEnvoyes, true},
		{"archives", FolderArchives, true},
		{"information", FolderInformation, true},
		{"corbeille", FolderCorbeille, true},
		{"spam", "", false},
		{"Reception", "", false},
	}

	for _, tt := range tests {
		t.Run("folder "+tt.raw, func(t *testing.T) {
			f, ok := ParseFolder(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.expected, f)
			}
		})
	}
}

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, StatusAnnonce, DeriveStatus(true, "urgent"))
	assert.Equal(t, StatusUrgent, DeriveStatus(false, "urgent"))
	assert.Equal(t, StatusImportant, DeriveStatus(false, "important"))
	assert.Equal(t, StatusNormal, DeriveStatus(false, ""))
	assert.Equal(t, StatusNormal, DeriveStatus(false, "whatever"))
}

func TestNotificationTypeFor(t *testing.T) {
	// An announcement wins over everything, importance over reply.
	assert.Equal(t, NotificationBroadcast, NotificationTypeFor(StatusAnnonce, true, false))
	assert.Equal(t, NotificationImportant, NotificationTypeFor(StatusImportant, true, false))
	assert.Equal(t, NotificationImportant, NotificationTypeFor(StatusUrgent, false, false))
	assert.Equal(t, NotificationReply, NotificationTypeFor(StatusNormal, true, false))
	assert.Equal(t, NotificationUnread, NotificationTypeFor(StatusNormal, false, false))

	// The mandatory flag promotes a normal message but yields to announcements.
	assert.Equal(t, NotificationImportant, NotificationTypeFor(StatusNormal, false, true))
	assert.Equal(t, NotificationImportant, NotificationTypeFor(StatusNormal, true, true))
	assert.Equal(t, NotificationBroadcast, NotificationTypeFor(StatusAnnonce, false, true))
}
