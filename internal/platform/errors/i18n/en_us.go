package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
const (
	CodeUnknown = "UNKNOWN"

	CodeTaskTitleEmpty      = "TASK_TITLE_EMPTY"
	CodeTaskEmptyOwnerID    = "TASK_EMPTY_OWNER_ID"
	CodeTaskEmptyID         = "TASK_EMPTY_ID"
	CodeTaskInvalidPriority = "TASK_INVALID_PRIORITY"
	CodeTaskEditForbidden   = "TASK_EDIT_FORBIDDEN"
	CodeTaskDeleteForbidden = "TASK_DELETE_FORBIDDEN"

	CodeShareNotOwner          = "SHARE_NOT_OWNER"
	CodeShareSelfTarget        = "SHARE_SELF_TARGET"
	CodeShareEmptyTargetEmail  = "SHARE_EMPTY_TARGET_EMAIL"
	CodeShareInvalidPermission = "SHARE_INVALID_PERMISSION"
	CodeShareInvalidDecision   = "SHARE_INVALID_DECISION"
	CodeShareRequestNotPending = "SHARE_REQUEST_NOT_PENDING"
	CodeShareTargetUnknown     = "SHARE_TARGET_UNKNOWN"
	CodeShareNotTarget         = "SHARE_NOT_TARGET"

	CodeSessionNoIdentity    = "SESSION_NO_IDENTITY"
	CodeSessionClosed        = "SESSION_CLOSED"
	CodeSessionGrantInvalid  = "SESSION_GRANT_INVALID"
	CodeSessionGrantExpired  = "SESSION_GRANT_EXPIRED"
	CodeSessionGrantMismatch = "SESSION_GRANT_MISMATCH"

	CodeNotFound       = "NOT_FOUND"
	CodeStorageFailure = "STORAGE_FAILURE"
	CodeFeedFailure    = "FEED_FAILURE"
)

var enUSCatalog = &Catalog{
	locale: "en-US",
	messages: map[Code]string{
		CodeUnknown: "An unexpected error occurred",

		// Task errors
		CodeTaskTitleEmpty:      "Task title cannot be empty",
		CodeTaskEmptyOwnerID:    "Task owner is required",
		CodeTaskEmptyID:         "Task ID is required",
		CodeTaskInvalidPriority: "Invalid task priority specified",
		CodeTaskEditForbidden:   "You do not have permission to edit this task",
		CodeTaskDeleteForbidden: "Only the task owner can delete a task",

		// Share request errors
		CodeShareNotOwner:          "Only the task owner can share it",
		CodeShareSelfTarget:        "A task cannot be shared with its owner",
		CodeShareEmptyTargetEmail:  "A target email is required to share a task",
		CodeShareInvalidPermission: "Invalid sharing permission specified",
		CodeShareInvalidDecision:   "Share responses must accept or reject",
		CodeShareRequestNotPending: "This share request was already {{.Status}}",
		CodeShareTargetUnknown:     "No account exists for {{.Email}}",
		CodeShareNotTarget:         "This share request is addressed to someone else",

		// Session errors
		CodeSessionNoIdentity:    "Sign in to manage tasks",
		CodeSessionClosed:        "This session is closed",
		CodeSessionGrantInvalid:  "Session grant is invalid",
		CodeSessionGrantExpired:  "Session grant has expired",
		CodeSessionGrantMismatch: "Session grant does not match this service",

		// Storage errors
		CodeNotFound:       "The requested resource was not found",
		CodeStorageFailure: "The task store is temporarily unavailable",

		// Live feed errors
		CodeFeedFailure: "Live updates are interrupted; showing the last known tasks",
	},
}
