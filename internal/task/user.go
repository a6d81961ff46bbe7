package task

import "time"

// User represents an account known to the task service.
//
// Identity is immutable after creation; equality is by ID only.
type User struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
	CreatedAt time.Time
	LastSeen  time.Time
	Online    bool
}

// Equal reports whether two users share the same identity.
func (u User) Equal(other User) bool {
	return u.ID == other.ID
}
