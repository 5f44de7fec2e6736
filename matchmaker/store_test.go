package matchmaker

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndFindUser(t *testing.T) {
	store := newTestStore(t)

	id, err := store.CreateUser("Alice", "I like Bob")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	user, err := store.FindUserByName("Alice")
	require.NoError(t, err)
	assert.Equal(t, id, user.UUID)
	assert.Equal(t, "Alice", user.Name)
	// Stored as a hash, never cleartext.
	assert.NotEqual(t, "I like Bob", user.Password)
	assert.NoError(t, verifyPassword(user.Password, "I like Bob"))
}

func TestFindUnknownUser(t *testing.T) {
	store := newTestStore(t)

	_, err := store.FindUserByName("Mallory")
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestDuplicateUsernameRejected(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateUser("Alice", "one")
	require.NoError(t, err)
	_, err = store.CreateUser("Alice", "two")
	assert.Error(t, err)
}

func TestDeleteUser(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateUser("Alice", "pw")
	require.NoError(t, err)
	require.NoError(t, store.DeleteUser("Alice"))

	_, err = store.FindUserByName("Alice")
	assert.ErrorIs(t, err, ErrUnknownUser)

	// Deleting again is fine.
	assert.NoError(t, store.DeleteUser("Alice"))
}

func TestSetPassword(t *testing.T) {
	store := newTestStore(t)

	id, err := store.CreateUser("Alice", "old")
	require.NoError(t, err)
	require.NoError(t, store.SetPassword(id, "new"))

	user, err := store.FindUserByName("Alice")
	require.NoError(t, err)
	assert.Error(t, verifyPassword(user.Password, "old"))
	assert.NoError(t, verifyPassword(user.Password, "new"))
}

func TestListUsersOrdered(t *testing.T) {
	store := newTestStore(t)

	for _, name := range []string{"Carol", "Alice", "Bob"} {
		_, err := store.CreateUser(name, "pw")
		require.NoError(t, err)
	}

	users, err := store.ListUsers()
	require.NoError(t, err)
	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.Name
	}
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, names)
}
