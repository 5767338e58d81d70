package accounts

import (
	"time"

	"github.com/gatehouse-labs/gatehouse/internal/identity"
)

// Account is the persisted account record, including credentials.
type Account struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	SuperUser    bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity strips persistence-only fields for use in permission calculations.
func (a Account) Identity() identity.Account {
	return identity.Account{
		ID:        a.ID,
		Email:     a.Email,
		Name:      a.Name,
		SuperUser: a.SuperUser,
		IsActive:  a.IsActive,
	}
}
