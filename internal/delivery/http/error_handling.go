package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wove-server/internal/models"
)

// handleServiceError транслирует ошибки сервисного слоя в HTTP ответы
// единого формата models.ErrorResponse.
func handleServiceError(c *gin.Context, err error) {
	var statusCode int
	var errResp models.ErrorResponse

	switch {
	case errors.Is(err, models.ErrStoryNotFound),
		errors.Is(err, models.ErrSegmentNotFound),
		errors.Is(err, models.ErrBranchPointNotFound),
		errors.Is(err, models.ErrUserNotFound),
		errors.Is(err, models.ErrReportNotFound),
		errors.Is(err, models.ErrNotificationNotFound),
		errors.Is(err, models.ErrMediaAssetNotFound),
		errors.Is(err, models.ErrParentalLinkNotFound),
		errors.Is(err, models.ErrVerificationNotFound):
		statusCode = http.StatusNotFound
		errResp = models.ErrorResponse{Code: models.ErrCodeNotFound, Message: err.Error()}

	case errors.Is(err, models.ErrNotCollaborator),
		errors.Is(err, models.ErrInsufficientRole),
		errors.Is(err, models.ErrForbidden):
		statusCode = http.StatusForbidden
		errResp = models.ErrorResponse{Code: models.ErrCodeForbidden, Message: err.Error()}

	case errors.Is(err, models.ErrUserBanned):
		statusCode = http.StatusForbidden
		errResp = models.ErrorResponse{Code: models.ErrCodeUserBanned, Message: "User is banned"}

	case errors.Is(err, models.ErrAgeTierInsufficient):
		statusCode = http.StatusForbidden
		errResp = models.ErrorResponse{Code: models.ErrCodeAgeTier, Message: "Verified age tier is insufficient for this content"}

	case errors.Is(err, models.ErrEmptyContent),
		errors.Is(err, models.ErrStoryNotWritable),
		errors.Is(err, models.ErrBranchPointExists),
		errors.Is(err, models.ErrBranchAlreadyResolved),
		errors.Is(err, models.ErrChoiceOptionInvalid),
		errors.Is(err, models.ErrNotEnoughOptions),
		errors.Is(err, models.ErrInvalidSettings),
		errors.Is(err, models.ErrOwnerImmutable),
		errors.Is(err, models.ErrInvalidStatusChange),
		errors.Is(err, models.ErrInvalidPermutation),
		errors.Is(err, models.ErrDuplicateCollaborator),
		errors.Is(err, models.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		errResp = models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: err.Error()}

	case errors.Is(err, models.ErrInvalidCredentials):
		statusCode = http.StatusUnauthorized
		errResp = models.ErrorResponse{Code: models.ErrCodeWrongCredentials, Message: "Invalid username or password"}

	case errors.Is(err, models.ErrUserAlreadyExists):
		statusCode = http.StatusConflict
		errResp = models.ErrorResponse{Code: models.ErrCodeDuplicateUser, Message: "Username already exists"}

	case errors.Is(err, models.ErrEmailAlreadyExists):
		statusCode = http.StatusConflict
		errResp = models.ErrorResponse{Code: models.ErrCodeDuplicateEmail, Message: "Email already exists"}

	case errors.Is(err, models.ErrTokenExpired):
		statusCode = http.StatusUnauthorized
		errResp = models.ErrorResponse{Code: models.ErrCodeTokenExpired, Message: "Token has expired"}

	case errors.Is(err, models.ErrTokenInvalid),
		errors.Is(err, models.ErrTokenMalformed),
		errors.Is(err, models.ErrTokenNotFound),
		errors.Is(err, models.ErrUnauthorized):
		statusCode = http.StatusUnauthorized
		errResp = models.ErrorResponse{Code: models.ErrCodeTokenInvalid, Message: "Token is invalid or revoked"}

	case errors.Is(err, models.ErrRateLimited):
		statusCode = http.StatusTooManyRequests
		errResp = models.ErrorResponse{Code: models.ErrCodeRateLimited, Message: "Too many requests"}

	default:
		zap.L().Error("Unhandled internal error in handleServiceError", zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResp = models.ErrorResponse{Code: models.ErrCodeInternal, Message: "An unexpected internal error occurred"}
	}

	c.AbortWithStatusJSON(statusCode, errResp)
}
