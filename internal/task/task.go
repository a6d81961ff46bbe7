package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/taskhub/internal/id"
	apperrors "github.com/louisbranch/taskhub/internal/platform/errors"
)

var (
	// ErrEmptyTitle indicates a missing task title.
	ErrEmptyTitle = apperrors.New(apperrors.CodeTaskTitleEmpty, "task title is required")
	// ErrEmptyOwnerID indicates a missing task owner.
	ErrEmptyOwnerID = apperrors.New(apperrors.CodeTaskEmptyOwnerID, "task owner id is required")
	// ErrEmptyTaskID indicates a missing task ID.
	ErrEmptyTaskID = apperrors.New(apperrors.CodeTaskEmptyID, "task id is required")
	// ErrEditForbidden indicates the editor is neither owner nor shared with.
	ErrEditForbidden = apperrors.New(apperrors.CodeTaskEditForbidden, "user cannot edit this task")
)

// Priority represents the urgency of a task.
type Priority int

const (
	// PriorityUnspecified represents an invalid priority value.
	PriorityUnspecified Priority = iota
	// PriorityLow indicates a low-urgency task.
	PriorityLow
	// PriorityMedium indicates the default task urgency.
	PriorityMedium
	// PriorityHigh indicates a high-urgency task.
	PriorityHigh
)

// Rank returns the ordering weight of a priority (high sorts above medium
// above low).
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// PriorityLabel returns the string label for a priority.
func PriorityLabel(priority Priority) string {
	switch priority {
	case PriorityLow:
		return "LOW"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityHigh:
		return "HIGH"
	default:
		return "UNSPECIFIED"
	}
}

// PriorityFromLabel converts a priority label to a Priority value.
func PriorityFromLabel(label string) Priority {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "LOW":
		return PriorityLow
	case "MEDIUM":
		return PriorityMedium
	case "HIGH":
		return PriorityHigh
	default:
		return PriorityUnspecified
	}
}

// Task represents one task owned by a user and optionally shared with others.
//
// SharedWith holds user identities granted access; the owner is never a
// member of it. UpdatedAt never precedes CreatedAt.
type Task struct {
	ID             string
	Title          string
	Description    string
	Completed      bool
	OwnerID        string
	OwnerEmail     string
	SharedWith     []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastModifiedBy string
	Priority       Priority
	DueDate        *time.Time
	Tags           []string
}

// IsOverdue reports whether the task has a due date in the past and is not
// completed. The value is derived and never persisted.
func (t Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && !t.Completed
}

// CanEdit reports whether a user may modify the task's content.
func (t Task) CanEdit(userID string) bool {
	if userID == "" {
		return false
	}
	if t.OwnerID == userID {
		return true
	}
	return t.SharesWith(userID)
}

// SharesWith reports whether a user is a member of the task's sharing set.
func (t Task) SharesWith(userID string) bool {
	for _, shared := range t.SharedWith {
		if shared == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the task so callers can hand out snapshots
// without aliasing the canonical slices.
func (t Task) Clone() Task {
	clone := t
	if t.SharedWith != nil {
		clone.SharedWith = append([]string(nil), t.SharedWith...)
	}
	if t.Tags != nil {
		clone.Tags = append([]string(nil), t.Tags...)
	}
	if t.DueDate != nil {
		due := *t.DueDate
		clone.DueDate = &due
	}
	return clone
}

// CreateTaskInput describes the metadata needed to create a task.
type CreateTaskInput struct {
	Title       string
	Description string
	OwnerID     string
	OwnerEmail  string
	Priority    Priority
	DueDate     *time.Time
	Tags        []string
}

// CreateTask creates a new task with a generated ID and timestamps.
func CreateTask(input CreateTaskInput, now func() time.Time, idGenerator func() (string, error)) (Task, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateTaskInput(input)
	if err != nil {
		return Task{}, err
	}

	taskID, err := idGenerator()
	if err != nil {
		return Task{}, fmt.Errorf("generate task id: %w", err)
	}

	createdAt := now().UTC()
	return Task{
		ID:             taskID,
		Title:          normalized.Title,
		Description:    normalized.Description,
		OwnerID:        normalized.OwnerID,
		OwnerEmail:     normalized.OwnerEmail,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
		LastModifiedBy: normalized.OwnerID,
		Priority:       normalized.Priority,
		DueDate:        normalized.DueDate,
		Tags:           normalized.Tags,
	}, nil
}

// NormalizeCreateTaskInput trims and validates task input metadata.
func NormalizeCreateTaskInput(input CreateTaskInput) (CreateTaskInput, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return CreateTaskInput{}, ErrEmptyTitle
	}
	input.OwnerID = strings.TrimSpace(input.OwnerID)
	if input.OwnerID == "" {
		return CreateTaskInput{}, ErrEmptyOwnerID
	}
	input.OwnerEmail = strings.TrimSpace(input.OwnerEmail)
	if input.Priority == PriorityUnspecified {
		input.Priority = PriorityMedium
	}
	input.Tags = NormalizeTags(input.Tags)
	if input.DueDate != nil {
		due := input.DueDate.UTC()
		input.DueDate = &due
	}
	return input, nil
}

// EditTaskInput describes a content edit applied to an existing task.
type EditTaskInput struct {
	Title       string
	Description string
	Completed   bool
	Priority    Priority
	DueDate     *time.Time
	Tags        []string
	EditorID    string
}

// ApplyEdit returns a copy of the task with the edit applied. It fails when
// the editor is neither the owner nor a member of the sharing set. Identity,
// owner, and creation time never change.
func ApplyEdit(current Task, input EditTaskInput, now func() time.Time) (Task, error) {
	if now == nil {
		now = time.Now
	}

	editorID := strings.TrimSpace(input.EditorID)
	if !current.CanEdit(editorID) {
		return Task{}, ErrEditForbidden
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Task{}, ErrEmptyTitle
	}
	priority := input.Priority
	if priority == PriorityUnspecified {
		priority = PriorityMedium
	}

	updated := current.Clone()
	updated.Title = title
	updated.Description = strings.TrimSpace(input.Description)
	updated.Completed = input.Completed
	updated.Priority = priority
	updated.Tags = NormalizeTags(input.Tags)
	if input.DueDate != nil {
		due := input.DueDate.UTC()
		updated.DueDate = &due
	} else {
		updated.DueDate = nil
	}
	updated.LastModifiedBy = editorID

	updatedAt := now().UTC()
	if updatedAt.Before(updated.CreatedAt) {
		updatedAt = updated.CreatedAt
	}
	updated.UpdatedAt = updatedAt
	return updated, nil
}

// NormalizeTags trims tags, drops empty entries, and de-duplicates them
// case-insensitively while preserving the first-seen spelling and order.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		normalized = append(normalized, tag)
	}
	if len(normalized) == 0 {
		return nil
	}
	return normalized
}
