package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vsinha/tandas/pkg/domain/entities"
)

// statusFor maps an error to the HTTP status reported to the client
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, entities.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, entities.ErrSubmitInFlight),
		errors.Is(err, entities.ErrTransitionInFlight),
		errors.Is(err, entities.ErrCapacityExceeded):
		return http.StatusConflict
	case errors.Is(err, entities.ErrEmptySelection),
		errors.Is(err, entities.ErrZeroWeight),
		errors.Is(err, entities.ErrNothingToTransition),
		errors.Is(err, entities.ErrNoLineSelected),
		errors.Is(err, entities.ErrOrderNotAvailable),
		errors.Is(err, entities.ErrNotConfirmable),
		errors.Is(err, entities.ErrTerminalState):
		return http.StatusUnprocessableEntity
	default:
		// Submission, transition and load failures all come from the backend
		return http.StatusBadGateway
	}
}

// abortWithError records err for the error logger and answers with an
// operator-facing message
func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	message := entities.UserMessage(err)
	if errors.Is(err, ErrSessionNotFound) {
		message = "Session not found."
	}
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": message})
}

func abortBadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message})
}
