package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pronote-app/messagerie-backend/internal/common"
	"github.com/pronote-app/messagerie-backend/internal/domain"
)

const (
	csrfHeader    = "X-CSRF-Token"
	csrfBodyField = "csrf_token"
	csrfKeyPrefix = "csrf:"

	// Tokens expire after one hour of inactivity; each successful check
	// refreshes the TTL.
	csrfTTL = time.Hour
)

// IssueCSRFToken mints a token bound to the identity and stores it in Redis.
func IssueCSRFToken(rdb *redis.Client, c *gin.Context, id domain.Identity) (string, error) {
	token := uuid.NewString()
	if err := rdb.Set(c.Request.Context(), csrfKeyPrefix+token, id.Key(), csrfTTL).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// CSRF validates the token on mutating requests. The token may arrive in the
// X-CSRF-Token header or in a csrf_token field of a JSON or form body.
// Validation failures are a 403, like any other authorization failure.
func CSRF(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		id, ok := GetIdentity(c)
		if !ok {
			common.AbortError(c, http.StatusUnauthorized, "authentification requise")
			return
		}

		token := c.GetHeader(csrfHeader)
		if token == "" {
			token = tokenFromBody(c)
		}
		if token == "" {
			common.AbortError(c, http.StatusForbidden, common.ErrInvalidCSRF.Error())
			return
		}

		key := csrfKeyPrefix + token
		owner, err := rdb.Get(c.Request.Context(), key).Result()
		if err != nil || owner != id.Key() {
			common.AbortError(c, http.StatusForbidden, common.ErrInvalidCSRF.Error())
			return
		}

		rdb.Expire(c.Request.Context(), key, csrfTTL)
		c.Next()
	}
}

// tokenFromBody pulls csrf_token out of a JSON or multipart/form body
// without consuming it for the handler.
func tokenFromBody(c *gin.Context) string {
	contentType := c.ContentType()

	if strings.HasPrefix(contentType, "multipart/form-data") ||
		contentType == "application/x-www-form-urlencoded" {
		return c.PostForm(csrfBodyField)
	}

	if contentType != "application/json" || c.Request.Body == nil {
		return ""
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	var probe struct {
		Token string `json:"csrf_token"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.Token
}
