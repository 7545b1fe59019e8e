package common

import (
	"errors"
	"net/http"
)

// Business logic errors. Messages are surfaced verbatim to the caller for
// validation failures; storage failures are replaced by a generic message in
// production (see response.go).
var (
	// Auth errors
	ErrUnauthorized = errors.New("authentification requise")
	ErrForbidden    = errors.New("accès refusé")
	ErrInvalidCSRF  = errors.New("jeton CSRF invalide ou expiré")

	// Not-found errors
	ErrNotFound             = errors.New("ressource introuvable")
	ErrConversationNotFound = errors.New("conversation introuvable")
	ErrMessageNotFound      = errors.New("message introuvable")

	// Validation errors
	ErrInvalidInput   = errors.New("données invalides")
	ErrBodyTooLong    = errors.New("le message dépasse la longueur maximale autorisée")
	ErrEmptyBody      = errors.New("le message est vide")
	ErrNotParticipant = errors.New("vous ne participez pas à cette conversation")

	// Transient errors
	ErrConcurrencyConflict = errors.New("conflit de mise à jour, veuillez réessayer")
	ErrRateLimited         = errors.New("trop de requêtes, veuillez réessayer plus tard")

	// State machine errors
	ErrInvalidTransition = errors.New("opération impossible dans l'état actuel de la conversation")
)

// StatusForError maps an error to the HTTP status it should be served with.
// This is the single classification point of the gateway; repositories and
// services never emit HTTP themselves.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNotParticipant), errors.Is(err, ErrInvalidCSRF):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConversationNotFound),
		errors.Is(err, ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrBodyTooLong),
		errors.Is(err, ErrEmptyBody),
		errors.Is(err, ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
