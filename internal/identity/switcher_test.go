package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwitcherStackDiscipline(t *testing.T) {
	alice := Account{ID: 1, Name: "Alice"}
	bob := Account{ID: 2, Name: "Bob"}

	s := NewSwitcher(Anonymous)
	assert.Equal(t, Anonymous, s.Current())

	s.SwitchTo(alice)
	assert.Equal(t, alice, s.Current())

	s.SwitchTo(bob)
	assert.Equal(t, bob, s.Current())

	require.NoError(t, s.SwitchBack())
	assert.Equal(t, alice, s.Current(), "SwitchBack undoes the most recent SwitchTo")

	require.NoError(t, s.SwitchBack())
	assert.Equal(t, Anonymous, s.Current())
}

func TestSwitcherSwitchBackWithoutSwitchTo(t *testing.T) {
	s := NewSwitcher(Anonymous)
	assert.ErrorIs(t, s.SwitchBack(), ErrNoSwitchedAccount)
	assert.Equal(t, Anonymous, s.Current())
}

func TestAnonymous(t *testing.T) {
	assert.True(t, Anonymous.IsAnonymous())
	assert.False(t, Account{ID: 3}.IsAnonymous())
}
