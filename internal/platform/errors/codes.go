// Package errors provides structured error handling shared by the services.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Caller errors
	CodeCallerMissing     Code = "CALLER_MISSING"
	CodeCallerInvalidRole Code = "CALLER_INVALID_ROLE"

	// Permission errors
	CodePermissionDenied Code = "PERMISSION_DENIED"

	// Task errors
	CodeTaskTitleEmpty      Code = "TASK_TITLE_EMPTY"
	CodeTaskTeamRequired    Code = "TASK_TEAM_REQUIRED"
	CodeTaskTeamNotFound    Code = "TASK_TEAM_NOT_FOUND"
	CodeTaskInvalidStatus   Code = "TASK_INVALID_STATUS"
	CodeTaskInvalidPriority Code = "TASK_INVALID_PRIORITY"
	CodeTaskInvalidDueDate  Code = "TASK_INVALID_DUE_DATE"
	CodeTaskUnknownField    Code = "TASK_UNKNOWN_FIELD"
	CodeTaskNoFields        Code = "TASK_NO_FIELDS"

	// Comment errors
	CodeCommentContentEmpty Code = "COMMENT_CONTENT_EMPTY"

	// Attachment errors
	CodeAttachmentMissingFile Code = "ATTACHMENT_MISSING_FILE"
	CodeUnsupportedMedia      Code = "UNSUPPORTED_MEDIA_TYPE"

	// User errors
	CodeUserUsernameEmpty Code = "USER_USERNAME_EMPTY"
	CodeUserUsernameTaken Code = "USER_USERNAME_TAKEN"
	CodeUserInvalidRole   Code = "USER_INVALID_ROLE"

	// Team errors
	CodeTeamNameEmpty      Code = "TEAM_NAME_EMPTY"
	CodeTeamLeaderRequired Code = "TEAM_LEADER_REQUIRED"

	// Request errors
	CodeInvalidBody Code = "INVALID_BODY"

	// Storage errors
	CodeNotFound            Code = "NOT_FOUND"
	CodeConstraintViolation Code = "CONSTRAINT_VIOLATION"

	// Collaborator errors
	CodeDirectoryUnavailable Code = "DIRECTORY_UNAVAILABLE"
	CodeStorageUnavailable   Code = "STORAGE_UNAVAILABLE"

	// Internal errors
	CodeInternal Code = "INTERNAL"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, malformed input
	case CodeTaskTitleEmpty,
		CodeTaskTeamRequired,
		CodeTaskInvalidStatus,
		CodeTaskInvalidPriority,
		CodeTaskInvalidDueDate,
		CodeTaskUnknownField,
		CodeTaskNoFields,
		CodeCommentContentEmpty,
		CodeAttachmentMissingFile,
		CodeUserUsernameEmpty,
		CodeUserInvalidRole,
		CodeTeamNameEmpty,
		CodeTeamLeaderRequired,
		CodeCallerInvalidRole,
		CodeInvalidBody:
		return http.StatusBadRequest

	// Unauthenticated - no caller identity asserted
	case CodeCallerMissing:
		return http.StatusUnauthorized

	// Forbidden - role/relationship check failed
	case CodePermissionDenied:
		return http.StatusForbidden

	// Not found
	case CodeNotFound, CodeTaskTeamNotFound:
		return http.StatusNotFound

	// Conflict - uniqueness and foreign key violations
	case CodeUserUsernameTaken, CodeConstraintViolation:
		return http.StatusConflict

	// Unsupported media type
	case CodeUnsupportedMedia:
		return http.StatusUnsupportedMediaType

	// Unavailable - pool exhaustion, collaborator outage on a required path
	case CodeDirectoryUnavailable, CodeStorageUnavailable:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
