// Package task defines the collaborative task domain model: users, tasks,
// priorities, and the ownership/sharing predicates that gate edits.
package task
