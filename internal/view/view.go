// Package view derives filtered, sorted, and searched projections plus
// aggregate analytics from a reconciled task set. All functions are pure:
// they never mutate their inputs and perform no I/O.
package view

import (
	"sort"
	"strings"
	"time"

	"github.com/louisbranch/taskhub/internal/task"
)

// Filter selects a subset of the combined task set.
type Filter int

const (
	// FilterUnspecified represents an invalid filter value.
	FilterUnspecified Filter = iota
	// FilterAll selects every task.
	FilterAll
	// FilterCompleted selects completed tasks.
	FilterCompleted
	// FilterPending selects tasks not yet completed.
	FilterPending
	// FilterOverdue selects overdue tasks.
	FilterOverdue
	// FilterHighPriority selects high-priority tasks.
	FilterHighPriority
)

// FilterLabel returns the string label for a filter.
func FilterLabel(filter Filter) string {
	switch filter {
	case FilterAll:
		return "ALL"
	case FilterCompleted:
		return "COMPLETED"
	case FilterPending:
		return "PENDING"
	case FilterOverdue:
		return "OVERDUE"
	case FilterHighPriority:
		return "HIGH_PRIORITY"
	default:
		return "UNSPECIFIED"
	}
}

// FilterFromLabel converts a filter label to a Filter value.
func FilterFromLabel(label string) Filter {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "ALL":
		return FilterAll
	case "COMPLETED":
		return FilterCompleted
	case "PENDING":
		return FilterPending
	case "OVERDUE":
		return FilterOverdue
	case "HIGH_PRIORITY":
		return FilterHighPriority
	default:
		return FilterUnspecified
	}
}

// SortField selects the task attribute projections are ordered by.
type SortField int

const (
	// SortUnspecified represents an invalid sort field value.
	SortUnspecified SortField = iota
	// SortCreatedAt orders by creation time.
	SortCreatedAt
	// SortUpdatedAt orders by last update time.
	SortUpdatedAt
	// SortTitle orders lexicographically by title.
	SortTitle
	// SortPriority orders high above medium above low.
	SortPriority
	// SortDueDate orders by due date; tasks without one always sort last.
	SortDueDate
)

// SortFieldLabel returns the string label for a sort field.
func SortFieldLabel(field SortField) string {
	switch field {
	case SortCreatedAt:
		return "CREATED_AT"
	case SortUpdatedAt:
		return "UPDATED_AT"
	case SortTitle:
		return "TITLE"
	case SortPriority:
		return "PRIORITY"
	case SortDueDate:
		return "DUE_DATE"
	default:
		return "UNSPECIFIED"
	}
}

// SortFieldFromLabel converts a sort field label to a SortField value.
func SortFieldFromLabel(label string) SortField {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "CREATED_AT":
		return SortCreatedAt
	case "UPDATED_AT":
		return SortUpdatedAt
	case "TITLE":
		return SortTitle
	case "PRIORITY":
		return SortPriority
	case "DUE_DATE":
		return SortDueDate
	default:
		return SortUnspecified
	}
}

// Query describes one projection over the combined task set.
//
// A non-empty Search replaces the filter as the candidate selector: search
// evaluates against the full combined set, not the filtered one. The most
// recent operation wins; filter and search are never composed.
type Query struct {
	Filter    Filter
	Sort      SortField
	Ascending bool
	Search    string
}

// Apply produces the projected task list for a query at a point in time.
func Apply(tasks []task.Task, query Query, now time.Time) []task.Task {
	var candidates []task.Task
	if search := strings.TrimSpace(query.Search); search != "" {
		candidates = make([]task.Task, 0, len(tasks))
		for _, t := range tasks {
			if MatchesSearch(t, search) {
				candidates = append(candidates, t)
			}
		}
	} else {
		candidates = make([]task.Task, 0, len(tasks))
		for _, t := range tasks {
			if matchesFilter(t, query.Filter, now) {
				candidates = append(candidates, t)
			}
		}
	}
	sortTasks(candidates, query.Sort, query.Ascending)
	return candidates
}

func matchesFilter(t task.Task, filter Filter, now time.Time) bool {
	switch filter {
	case FilterCompleted:
		return t.Completed
	case FilterPending:
		return !t.Completed
	case FilterOverdue:
		return t.IsOverdue(now)
	case FilterHighPriority:
		return t.Priority == task.PriorityHigh
	default:
		return true
	}
}

// MatchesSearch reports whether a task matches a case-insensitive substring
// query across its title, description, and tags.
func MatchesSearch(t task.Task, query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	if strings.Contains(strings.ToLower(t.Title), query) {
		return true
	}
	if strings.Contains(strings.ToLower(t.Description), query) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}

// sortTasks orders tasks in place. The sort is stable so ties preserve
// insertion order. Tasks without a due date sort after dated tasks in both
// directions; the direction flag never flips that placement.
func sortTasks(tasks []task.Task, field SortField, ascending bool) {
	if field == SortUnspecified {
		field = SortCreatedAt
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		switch field {
		case SortTitle:
			if ascending {
				return a.Title < b.Title
			}
			return a.Title > b.Title
		case SortPriority:
			if ascending {
				return a.Priority.Rank() < b.Priority.Rank()
			}
			return a.Priority.Rank() > b.Priority.Rank()
		case SortDueDate:
			if a.DueDate == nil || b.DueDate == nil {
				return a.DueDate != nil && b.DueDate == nil
			}
			if ascending {
				return a.DueDate.Before(*b.DueDate)
			}
			return b.DueDate.Before(*a.DueDate)
		case SortUpdatedAt:
			if ascending {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
			return b.UpdatedAt.Before(a.UpdatedAt)
		default:
			if ascending {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return b.CreatedAt.Before(a.CreatedAt)
		}
	})
}

// Analytics aggregates counters over the combined task set.
type Analytics struct {
	Total          int
	Completed      int
	Pending        int
	Overdue        int
	Shared         int
	CompletionRate float64
}

// Compute recalculates analytics from scratch. sharedCount is the size of
// the shared-with-me collection, which is not derivable from the combined
// set alone.
func Compute(tasks []task.Task, sharedCount int, now time.Time) Analytics {
	analytics := Analytics{
		Total:  len(tasks),
		Shared: sharedCount,
	}
	for _, t := range tasks {
		if t.Completed {
			analytics.Completed++
		}
		if t.IsOverdue(now) {
			analytics.Overdue++
		}
	}
	analytics.Pending = analytics.Total - analytics.Completed
	if analytics.Total > 0 {
		analytics.CompletionRate = float64(analytics.Completed) / float64(analytics.Total) * 100
	}
	return analytics
}

// TagIndex returns the distinct tags across the task set in lexicographic
// order.
func TagIndex(tasks []task.Task) []string {
	seen := make(map[string]struct{})
	var tags []string
	for _, t := range tasks {
		for _, tag := range t.Tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}
