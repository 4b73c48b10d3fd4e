package domain

// Book is the read-mostly catalog view this core needs: identity plus copy
// counts. AvailableCopies is owned by the external checkout subsystem; the
// reservation core only ever reads it.
type Book struct {
	ID              string
	Title           string
	Author          string
	TotalCopies     int
	AvailableCopies int
}
