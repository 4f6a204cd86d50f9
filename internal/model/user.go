package model

// User is a record of the backend "users" collection. The backend owns and
// validates it; the application only reads it.
type User struct {
	ID             string `json:"id"`
	CollectionID   string `json:"collectionId,omitempty"`
	CollectionName string `json:"collectionName,omitempty"`
	Email          string `json:"email"`
	Username       string `json:"username"`
	Name           string `json:"name"`
	Verified       bool   `json:"verified"`
	Created        string `json:"created"`
	Updated        string `json:"updated"`
}
