package domain

// DefaultDisplayName is the name attached to every login; credentials are
// never checked so there is no directory to resolve a real name from.
const DefaultDisplayName = "Admin User"

// User is the persisted session payload.
type User struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}
