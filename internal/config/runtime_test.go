package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetGetPresenter(t *testing.T) {
	globalRuntime.presenter = ""

	SetPresenter("alice")
	assert.Equal(t, "alice", GetPresenter())

	SetPresenter("bob")
	assert.Equal(t, "bob", GetPresenter())
}

func TestSetPresenterDefaultsToUser(t *testing.T) {
	globalRuntime.presenter = ""
	t.Setenv("USER", "testuser")

	SetPresenter("")
	assert.Equal(t, "testuser", GetPresenter())
}

func TestNoJournal(t *testing.T) {
	defer SetNoJournal(false)

	assert.False(t, IsJournalDisabled())
	SetNoJournal(true)
	assert.True(t, IsJournalDisabled())
}
