package identity

import (
	"errors"
	"sync"
)

// ErrNoSwitchedAccount indicates SwitchBack was called without a matching SwitchTo.
var ErrNoSwitchedAccount = errors.New("identity: no switched account to restore")

// Switcher tracks the ambient active account for the process. Callers that
// need calculations to run as a different account push it with SwitchTo and
// must restore the previous account with SwitchBack, in strict stack order.
type Switcher struct {
	mu      sync.RWMutex
	current Account
	stack   []Account
}

// NewSwitcher constructs a Switcher with the given initial active account.
func NewSwitcher(initial Account) *Switcher {
	return &Switcher{current: initial}
}

// Current returns the active account.
func (s *Switcher) Current() Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SwitchTo makes account the active account, remembering the previous one.
func (s *Switcher) SwitchTo(account Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stack = append(s.stack, s.current)
	s.current = account
}

// SwitchBack undoes the most recent SwitchTo.
func (s *Switcher) SwitchBack() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stack) == 0 {
		return ErrNoSwitchedAccount
	}
	s.current = s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return nil
}
