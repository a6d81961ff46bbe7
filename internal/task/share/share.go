// Package share provides the task share-request state machine.
package share

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/taskhub/internal/id"
	apperrors "github.com/louisbranch/taskhub/internal/platform/errors"
	"github.com/louisbranch/taskhub/internal/task"
)

var (
	// ErrNotOwner indicates the sharer does not own the task.
	ErrNotOwner = apperrors.New(apperrors.CodeShareNotOwner, "only the task owner can share it")
	// ErrSelfTarget indicates an attempt to share a task with its owner.
	ErrSelfTarget = apperrors.New(apperrors.CodeShareSelfTarget, "cannot share a task with its owner")
	// ErrEmptyTargetEmail indicates a missing target email.
	ErrEmptyTargetEmail = apperrors.New(apperrors.CodeShareEmptyTargetEmail, "target email is required")
	// ErrInvalidPermission indicates a missing or invalid permission level.
	ErrInvalidPermission = apperrors.New(apperrors.CodeShareInvalidPermission, "permission level is required")
	// ErrInvalidDecision indicates a response that is neither accept nor reject.
	ErrInvalidDecision = apperrors.New(apperrors.CodeShareInvalidDecision, "decision must accept or reject")
)

// Permission represents the access level granted by a share.
type Permission int

const (
	// PermissionUnspecified represents an invalid permission value.
	PermissionUnspecified Permission = iota
	// PermissionView grants read-only visibility.
	PermissionView
	// PermissionEdit grants content modification.
	PermissionEdit
	// PermissionAdmin grants content modification and re-sharing.
	PermissionAdmin
)

// AllowsEdit reports whether the permission level permits content edits.
func (p Permission) AllowsEdit() bool {
	return p == PermissionEdit || p == PermissionAdmin
}

// AllowsReshare reports whether the permission level permits re-sharing.
func (p Permission) AllowsReshare() bool {
	return p == PermissionAdmin
}

// PermissionLabel returns the string label for a permission level.
func PermissionLabel(permission Permission) string {
	switch permission {
	case PermissionView:
		return "VIEW"
	case PermissionEdit:
		return "EDIT"
	case PermissionAdmin:
		return "ADMIN"
	default:
		return "UNSPECIFIED"
	}
}

// PermissionFromLabel converts a permission label to a Permission value.
func PermissionFromLabel(label string) Permission {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "VIEW":
		return PermissionView
	case "EDIT":
		return PermissionEdit
	case "ADMIN":
		return PermissionAdmin
	default:
		return PermissionUnspecified
	}
}

// Status represents the lifecycle status of a share request.
type Status int

const (
	// StatusUnspecified represents an invalid share request status.
	StatusUnspecified Status = iota
	// StatusPending indicates a request awaiting the target's decision.
	StatusPending
	// StatusAccepted indicates the target accepted the request.
	StatusAccepted
	// StatusRejected indicates the target rejected the request.
	StatusRejected
)

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// StatusLabel returns the string label for a share request status.
func StatusLabel(status Status) string {
	switch status {
	case StatusPending:
		return "PENDING"
	case StatusAccepted:
		return "ACCEPTED"
	case StatusRejected:
		return "REJECTED"
	default:
		return "UNSPECIFIED"
	}
}

// StatusFromLabel converts a status label to a Status value.
func StatusFromLabel(label string) Status {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "PENDING":
		return StatusPending
	case "ACCEPTED":
		return StatusAccepted
	case "REJECTED":
		return StatusRejected
	default:
		return StatusUnspecified
	}
}

// Decision represents the target user's response to a pending request.
type Decision int

const (
	// DecisionUnspecified represents an invalid decision value.
	DecisionUnspecified Decision = iota
	// DecisionAccept accepts the share request.
	DecisionAccept
	// DecisionReject rejects the share request.
	DecisionReject
)

// DecisionLabel returns the string label for a decision.
func DecisionLabel(decision Decision) string {
	switch decision {
	case DecisionAccept:
		return "ACCEPT"
	case DecisionReject:
		return "REJECT"
	default:
		return "UNSPECIFIED"
	}
}

// DecisionFromLabel converts a decision label to a Decision value.
func DecisionFromLabel(label string) Decision {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "ACCEPT":
		return DecisionAccept
	case "REJECT":
		return DecisionReject
	default:
		return DecisionUnspecified
	}
}

// Request represents one share offer from a task owner to a target email.
//
// RespondedAt is set if and only if Status is not pending. TargetID is
// resolved once the target account is known.
type Request struct {
	ID          string
	TaskID      string
	OwnerID     string
	OwnerEmail  string
	TargetEmail string
	TargetID    string
	Permission  Permission
	Status      Status
	Message     string
	CreatedAt   time.Time
	RespondedAt *time.Time
}

// CreateInput describes the metadata needed to create a share request.
type CreateInput struct {
	Task        task.Task
	OwnerID     string
	TargetEmail string
	Permission  Permission
	Message     string
}

// Create creates a pending share request with a generated ID and timestamp.
// It fails when the sharer does not own the task or targets the owner's own
// email.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Request, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateInput(input)
	if err != nil {
		return Request{}, err
	}

	requestID, err := idGenerator()
	if err != nil {
		return Request{}, fmt.Errorf("generate share request id: %w", err)
	}

	return Request{
		ID:          requestID,
		TaskID:      normalized.Task.ID,
		OwnerID:     normalized.OwnerID,
		OwnerEmail:  normalized.Task.OwnerEmail,
		TargetEmail: normalized.TargetEmail,
		Permission:  normalized.Permission,
		Status:      StatusPending,
		Message:     normalized.Message,
		CreatedAt:   now().UTC(),
	}, nil
}

// NormalizeCreateInput trims and validates share request input metadata.
func NormalizeCreateInput(input CreateInput) (CreateInput, error) {
	input.OwnerID = strings.TrimSpace(input.OwnerID)
	if input.OwnerID == "" || input.OwnerID != input.Task.OwnerID {
		return CreateInput{}, ErrNotOwner
	}
	input.TargetEmail = strings.TrimSpace(input.TargetEmail)
	if input.TargetEmail == "" {
		return CreateInput{}, ErrEmptyTargetEmail
	}
	if strings.EqualFold(input.TargetEmail, strings.TrimSpace(input.Task.OwnerEmail)) {
		return CreateInput{}, ErrSelfTarget
	}
	if input.Permission == PermissionUnspecified {
		return CreateInput{}, ErrInvalidPermission
	}
	input.Message = strings.TrimSpace(input.Message)
	return input, nil
}

// Respond applies the target's decision to a pending request. It fails when
// the request is already in a terminal status; accepted and rejected requests
// never transition again.
func Respond(request Request, decision Decision, targetID string, now func() time.Time) (Request, error) {
	if now == nil {
		now = time.Now
	}

	if request.Status != StatusPending {
		return Request{}, apperrors.WithMetadata(
			apperrors.CodeShareRequestNotPending,
			fmt.Sprintf("share request %s is %s", request.ID, StatusLabel(request.Status)),
			map[string]string{"Status": strings.ToLower(StatusLabel(request.Status))},
		)
	}

	switch decision {
	case DecisionAccept:
		request.Status = StatusAccepted
	case DecisionReject:
		request.Status = StatusRejected
	default:
		return Request{}, ErrInvalidDecision
	}

	request.TargetID = strings.TrimSpace(targetID)
	respondedAt := now().UTC()
	request.RespondedAt = &respondedAt
	return request, nil
}
