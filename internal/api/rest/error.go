package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apierrors "github.com/pixelatlas/conquest-engine/internal/api/shared/errors"
	"github.com/pixelatlas/conquest-engine/internal/domain"
	"github.com/pixelatlas/conquest-engine/internal/logger"
)

// failureResponse is the standardized error envelope
type failureResponse struct {
	Success bool                `json:"success"`
	Error   *apierrors.APIError `json:"error"`
}

func respondWithAPIError(c *gin.Context, statusCode int, apiErr *apierrors.APIError) {
	c.JSON(statusCode, failureResponse{Success: false, Error: apiErr})
}

// respondBadRequest sends a 400 Bad Request response
func respondBadRequest(c *gin.Context, message string, details ...string) {
	respondWithAPIError(c, http.StatusBadRequest, apierrors.NewBadRequestError(message, details...))
}

// respondValidationError sends a 400 Bad Request with validation details
func respondValidationError(c *gin.Context, details string) {
	respondWithAPIError(c, http.StatusBadRequest, apierrors.NewValidationError(details))
}

// respondNotFound sends a 404 Not Found response
func respondNotFound(c *gin.Context, message string, details ...string) {
	respondWithAPIError(c, http.StatusNotFound, apierrors.NewNotFoundError(message, details...))
}

// respondInternalError sends a 500 Internal Server Error response and logs the error
func respondInternalError(c *gin.Context, err error, message string, fields ...zap.Field) {
	logger.Error(err, fields...)
	respondWithAPIError(c, http.StatusInternalServerError, apierrors.NewInternalError(message))
}

// respondDomainError maps a domain error to its HTTP shape: validation and
// precondition failures are 400, missing referenced entities 404, anything
// else 500
func respondDomainError(c *gin.Context, err error) {
	switch {
	case domain.IsValidation(err):
		respondValidationError(c, err.Error())
	case domain.IsNotFound(err):
		respondNotFound(c, err.Error())
	case domain.IsPrecondition(err):
		respondWithAPIError(c, http.StatusBadRequest,
			apierrors.NewPreconditionFailedError("Precondition failed", err.Error()))
	default:
		respondInternalError(c, err, "Unexpected failure")
	}
}
