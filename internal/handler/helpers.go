package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pronote-app/messagerie-backend/internal/common"
	"github.com/pronote-app/messagerie-backend/internal/domain"
	"github.com/pronote-app/messagerie-backend/internal/middleware"
)

// identity pulls the authenticated identity, replying 401 when absent.
func identity(c *gin.Context) (domain.Identity, bool) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		common.Error(c, http.StatusUnauthorized, "authentification requise")
		return domain.Identity{}, false
	}
	return id, true
}

// pathID parses a positive int64 path parameter.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		common.Error(c, http.StatusUnprocessableEntity, "identifiant invalide")
		return 0, false
	}
	return id, true
}

// parsePagination reads page/per_page query parameters with bounds.
func parsePagination(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 50 {
		perPage = 20
	}
	return page, perPage
}
