package models

import "errors"

// Ошибки "не найдено" (HTTP 404).
var (
	ErrStoryNotFound       = errors.New("story not found")
	ErrSegmentNotFound     = errors.New("story segment not found")
	ErrBranchPointNotFound = errors.New("branch point not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrReportNotFound      = errors.New("content report not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrMediaAssetNotFound  = errors.New("media asset not found")
	ErrParentalLinkNotFound = errors.New("parental link not found")
	ErrVerificationNotFound = errors.New("age verification request not found")
)

// Ошибки доступа (HTTP 403).
var (
	ErrNotCollaborator     = errors.New("user is not a collaborator of this story")
	ErrInsufficientRole    = errors.New("collaborator role does not permit this operation")
	ErrForbidden           = errors.New("forbidden")
	ErrUserBanned          = errors.New("user is banned")
	ErrAgeTierInsufficient = errors.New("verified age tier is insufficient")
)

// Ошибки недопустимых состояний и входных данных (HTTP 400).
var (
	ErrEmptyContent          = errors.New("segment content must not be empty")
	ErrStoryNotWritable      = errors.New("story does not accept new segments in its current status")
	ErrBranchPointExists     = errors.New("branch point already exists for this segment")
	ErrBranchAlreadyResolved = errors.New("branch point is already resolved")
	ErrChoiceOptionInvalid   = errors.New("choice option does not belong to this branch point")
	ErrNotEnoughOptions      = errors.New("branch point requires at least two options")
	ErrInvalidSettings       = errors.New("invalid story settings")
	ErrOwnerImmutable        = errors.New("owner role cannot be changed or removed")
	ErrInvalidInput          = errors.New("invalid input data")
	ErrInvalidStatusChange   = errors.New("status transition is not allowed")
	ErrDuplicateCollaborator = errors.New("user is already a collaborator of this story")
	ErrInvalidPermutation    = errors.New("reorder request must list every segment exactly once")
)

// Ошибки аутентификации (HTTP 401).
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserAlreadyExists  = errors.New("user with this username already exists")
	ErrEmailAlreadyExists = errors.New("user with this email already exists")
	ErrTokenInvalid       = errors.New("token is invalid")
	ErrTokenMalformed     = errors.New("token is malformed")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenNotFound      = errors.New("token not found in storage")
	ErrUnauthorized       = errors.New("unauthorized")
)

// Прочее.
var (
	ErrRateLimited    = errors.New("too many requests")        // HTTP 429
	ErrInternalServer = errors.New("internal server error")    // HTTP 500
)

// Коды ошибок в теле ответа (ErrorResponse.Code).
const (
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeTokenExpired     = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid     = "TOKEN_INVALID"
	ErrCodeWrongCredentials = "WRONG_CREDENTIALS"
	ErrCodeDuplicateUser    = "DUPLICATE_USER"
	ErrCodeDuplicateEmail   = "DUPLICATE_EMAIL"
	ErrCodeUserBanned       = "USER_BANNED"
	ErrCodeAgeTier          = "AGE_TIER_INSUFFICIENT"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// ErrorResponse - единый формат тела ошибки для HTTP ответов.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
