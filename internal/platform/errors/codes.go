package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Task errors
	CodeTaskTitleEmpty      Code = "TASK_TITLE_EMPTY"
	CodeTaskEmptyOwnerID    Code = "TASK_EMPTY_OWNER_ID"
	CodeTaskEmptyID         Code = "TASK_EMPTY_ID"
	CodeTaskInvalidPriority Code = "TASK_INVALID_PRIORITY"
	CodeTaskEditForbidden   Code = "TASK_EDIT_FORBIDDEN"
	CodeTaskDeleteForbidden Code = "TASK_DELETE_FORBIDDEN"

	// Share request errors
	CodeShareNotOwner          Code = "SHARE_NOT_OWNER"
	CodeShareSelfTarget        Code = "SHARE_SELF_TARGET"
	CodeShareEmptyTargetEmail  Code = "SHARE_EMPTY_TARGET_EMAIL"
	CodeShareInvalidPermission Code = "SHARE_INVALID_PERMISSION"
	CodeShareInvalidDecision   Code = "SHARE_INVALID_DECISION"
	CodeShareRequestNotPending Code = "SHARE_REQUEST_NOT_PENDING"
	CodeShareTargetUnknown     Code = "SHARE_TARGET_UNKNOWN"
	CodeShareNotTarget         Code = "SHARE_NOT_TARGET"

	// Session grant errors
	CodeSessionGrantInvalid  Code = "SESSION_GRANT_INVALID"
	CodeSessionGrantExpired  Code = "SESSION_GRANT_EXPIRED"
	CodeSessionGrantMismatch Code = "SESSION_GRANT_MISMATCH"

	// Session errors
	CodeSessionNoIdentity Code = "SESSION_NO_IDENTITY"
	CodeSessionClosed     Code = "SESSION_CLOSED"

	// Storage errors
	CodeNotFound       Code = "NOT_FOUND"
	CodeStorageFailure Code = "STORAGE_FAILURE"

	// Live feed errors
	CodeFeedFailure Code = "FEED_FAILURE"
)

// Class groups error codes into the failure families callers branch on.
type Class int

const (
	// ClassUnknown classifies unrecognized errors.
	ClassUnknown Class = iota
	// ClassValidation classifies malformed or unauthorized requests.
	ClassValidation
	// ClassNotFound classifies references to absent records.
	ClassNotFound
	// ClassInvalidState classifies operations disallowed by current state.
	ClassInvalidState
	// ClassStorage classifies collaborator I/O failures.
	ClassStorage
	// ClassStream classifies non-fatal live feed failures.
	ClassStream
)

// ErrorClass maps domain codes to failure classes.
func (c Code) ErrorClass() Class {
	switch c {
	case CodeTaskTitleEmpty,
		CodeTaskEmptyOwnerID,
		CodeTaskEmptyID,
		CodeTaskInvalidPriority,
		CodeTaskEditForbidden,
		CodeTaskDeleteForbidden,
		CodeShareNotOwner,
		CodeShareSelfTarget,
		CodeShareEmptyTargetEmail,
		CodeShareInvalidPermission,
		CodeShareInvalidDecision,
		CodeShareNotTarget,
		CodeSessionNoIdentity,
		CodeSessionGrantInvalid,
		CodeSessionGrantExpired,
		CodeSessionGrantMismatch:
		return ClassValidation

	case CodeNotFound,
		CodeShareTargetUnknown:
		return ClassNotFound

	case CodeShareRequestNotPending,
		CodeSessionClosed:
		return ClassInvalidState

	case CodeStorageFailure:
		return ClassStorage

	case CodeFeedFailure:
		return ClassStream

	default:
		return ClassUnknown
	}
}
