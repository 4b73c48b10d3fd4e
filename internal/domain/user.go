package domain

// User carries the fields needed for notification content.
type User struct {
	ID    string
	Name  string
	Email string
}
