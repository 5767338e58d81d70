package identity

// Account describes an actor permissions are computed for.
type Account struct {
	ID        int64
	Email     string
	Name      string
	SuperUser bool
	IsActive  bool
}

// Anonymous is the ambient account before any session is established.
var Anonymous = Account{ID: 0, Name: "anonymous"}

// IsAnonymous reports whether the account is the unauthenticated placeholder.
func (a Account) IsAnonymous() bool {
	return a.ID == 0
}
