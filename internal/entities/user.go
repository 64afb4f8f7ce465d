package entities

// Status is a user's presence.
type Status string

const (
	// StatusOnline marks a connected, active user.
	StatusOnline Status = "ONLINE"
	// StatusOffline marks a disconnected user.
	StatusOffline Status = "OFFLINE"
	// StatusAway marks an idle user.
	StatusAway Status = "AWAY"
)

// Statuses lists every accepted presence value.
var Statuses = []Status{StatusOnline, StatusOffline, StatusAway}

// User is a member of the directory. Users are seeded at startup and never deleted.
type User struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Status        Status  `json:"status"`
	ActiveChannel *string `json:"activeChannel"`
}

// UserSummary is the public projection of a user.
type UserSummary struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Summary returns the public projection of u.
func (u User) Summary() UserSummary {
	return UserSummary{Name: u.Name, ID: u.ID}
}

// Clone returns a copy of u that shares no memory with it.
func (u User) Clone() User {
	if u.ActiveChannel != nil {
		ch := *u.ActiveChannel
		u.ActiveChannel = &ch
	}
	return u
}
