package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/pronote-app/messagerie-backend/internal/common"
	"github.com/pronote-app/messagerie-backend/internal/middleware"
)

// SecurityHandler mints CSRF tokens for the front-end.
type SecurityHandler struct {
	rdb *redis.Client
}

// NewSecurityHandler creates a SecurityHandler.
func NewSecurityHandler(rdb *redis.Client) *SecurityHandler {
	return &SecurityHandler{rdb: rdb}
}

// CSRFToken handles GET /csrf
func (h *SecurityHandler) CSRFToken(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	token, err := middleware.IssueCSRFToken(h.rdb, c, id)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, gin.H{"csrf_token": token})
}
