package common

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pronote-app/messagerie-backend/pkg/logger"
)

// API wire format:
//   success: {"success": true, ...payload}
//   failure: {"success": false, "error": "<message>"}

// Success returns a 200 response with the payload merged into the envelope.
func Success(c *gin.Context, payload gin.H) {
	respond(c, http.StatusOK, payload)
}

// Created returns a 201 response with the payload merged into the envelope.
func Created(c *gin.Context, payload gin.H) {
	respond(c, http.StatusCreated, payload)
}

func respond(c *gin.Context, status int, payload gin.H) {
	body := gin.H{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(status, body)
}

// Error returns an error response with the given status and message.
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}

// AbortError aborts the middleware chain with an error response.
func AbortError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": message})
}

// Fail classifies err, logs unexpected failures with request context, and
// serializes the error envelope. Validation and permission messages are not
// secrets and pass through verbatim; storage failures are masked outside of
// debug mode.
func Fail(c *gin.Context, err error) {
	status := StatusForError(err)
	message := err.Error()

	if status >= http.StatusInternalServerError {
		logger.GetLogger().Error().
			Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("client_ip", c.ClientIP()).
			Msg("storage failure")
		if gin.Mode() == gin.ReleaseMode {
			message = "une erreur interne est survenue"
		}
	}

	Error(c, status, message)
}
