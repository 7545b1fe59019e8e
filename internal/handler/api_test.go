package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pronote-app/messagerie-backend/internal/domain"
	"github.com/pronote-app/messagerie-backend/internal/handler"
	"github.com/pronote-app/messagerie-backend/internal/repository"
	"github.com/pronote-app/messagerie-backend/internal/routes"
	"github.com/pronote-app/messagerie-backend/internal/service"
	"github.com/pronote-app/messagerie-backend/pkg/jwt"
)

type apiFixture struct {
	router     *gin.Engine
	jwtManager *jwt.Manager
}

func setupAPI(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	require.NoError(t, db.AutoMigrate(
		&domain.Conversation{},
		&domain.Participant{},
		&domain.Message{},
		&domain.Attachment{},
		&domain.Notification{},
	))

	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	attRepo := repository.NewAttachmentRepository(db)

	perms := service.NewPermissionService(convRepo)
	attachments := service.NewAttachmentService(attRepo, t.TempDir())
	conversations := service.NewConversationService(convRepo, perms)
	messages := service.NewMessageService(msgRepo, convRepo, attachments, perms)

	jwtManager := jwt.NewManager("test-secret", 60)
	limiter := service.NewRateLimiter(service.NewMemoryRateLimitStore())

	router := gin.New()
	routes.Setup(router, &routes.Handlers{
		Conversations: handler.NewConversationHandler(conversations),
		Messages:      handler.NewMessageHandler(messages, attachments),
		Notifications: handler.NewNotificationHandler(notifRepo),
		Security:      handler.NewSecurityHandler(nil),
	}, jwtManager, limiter, nil)

	return &apiFixture{router: router, jwtManager: jwtManager}
}

func (f *apiFixture) do(t *testing.T, method, path string, id *domain.Identity, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if id != nil {
		token, err := f.jwtManager.GenerateToken(id.UserID, string(id.Role))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var envelope map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	}
	return w, envelope
}

var (
	profAPI   = domain.Identity{UserID: 10, Role: domain.RoleProfesseur}
	parentAPI = domain.Identity{UserID: 55, Role: domain.RoleParent}
	eleveAPI  = domain.Identity{UserID: 7, Role: domain.RoleEleve}
)

func TestAuthRequired(t *testing.T) {
	f := setupAPI(t)

	w, envelope := f.do(t, http.MethodGet, "/api/v1/messagerie/conversations", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, false, envelope["success"])
	assert.NotEmpty(t, envelope["error"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/messagerie/conversations", nil)
	req.Header.Set("Authorization", "Bearer n.importe.quoi")
	w2 := httptest.NewRecorder()
	f.router.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusUnauthorized, w2.Code)
}

func TestConversationLifecycleOverHTTP(t *testing.T) {
	f := setupAPI(t)

	w, envelope := f.do(t, http.MethodPost, "/api/v1/messagerie/conversations", &profAPI, gin.H{
		"subject": "Réunion parents d'élèves",
		"participants": []gin.H{
			{"user_id": parentAPI.UserID, "role": string(parentAPI.Role)},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, true, envelope["success"])
	convID := int64(envelope["conversation_id"].(float64))
	require.Greater(t, convID, int64(0))

	// The teacher posts, the parent sees the unread badge move.
	w, _ = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/messagerie/conversations/%d/messages", convID), &profAPI, gin.H{
		"body": "La réunion aura lieu jeudi à 18h.",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, envelope = f.do(t, http.MethodGet, "/api/v1/messagerie/messages/unread-count", &parentAPI, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), envelope["total_unread"])

	w, envelope = f.do(t, http.MethodGet, "/api/v1/messagerie/conversations?folder=reception", &parentAPI, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), envelope["total"])

	// An outsider with a valid token is still refused.
	w, envelope = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/messagerie/conversations/%d/messages", convID), &eleveAPI, gin.H{
		"body": "Je m'incruste",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, false, envelope["success"])

	// Trash then restore, as seen through folder listings.
	w, _ = f.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/messagerie/conversations/%d", convID), &parentAPI, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, envelope = f.do(t, http.MethodGet, "/api/v1/messagerie/conversations?folder=corbeille", &parentAPI, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), envelope["total"])

	w, _ = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/messagerie/conversations/%d/restore", convID), &parentAPI, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, envelope = f.do(t, http.MethodGet, "/api/v1/messagerie/conversations?folder=reception", &parentAPI, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), envelope["total"])
}

func TestValidationStatusCodes(t *testing.T) {
	f := setupAPI(t)

	w, envelope := f.do(t, http.MethodGet, "/api/v1/messagerie/conversations?folder=spam", &profAPI, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, false, envelope["success"])

	w, _ = f.do(t, http.MethodPost, "/api/v1/messagerie/conversations/abc/archive", &profAPI, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/v1/messagerie/messages/999/read", &profAPI, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendRateLimitOverHTTP(t *testing.T) {
	f := setupAPI(t)

	w, envelope := f.do(t, http.MethodPost, "/api/v1/messagerie/conversations", &profAPI, gin.H{
		"subject":      "Limite d'envoi",
		"participants": []gin.H{{"user_id": parentAPI.UserID, "role": string(parentAPI.Role)}},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	convID := int64(envelope["conversation_id"].(float64))

	path := fmt.Sprintf("/api/v1/messagerie/conversations/%d/messages", convID)
	for i := 0; i < 20; i++ {
		w, _ = f.do(t, http.MethodPost, path, &profAPI, gin.H{"body": fmt.Sprintf("message %d", i)})
		require.Equal(t, http.StatusCreated, w.Code, "message %d within the limit", i+1)
	}

	w, envelope = f.do(t, http.MethodPost, path, &profAPI, gin.H{"body": "un de trop"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, false, envelope["success"])
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}
