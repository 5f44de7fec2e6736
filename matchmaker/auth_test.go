package matchmaker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrectPasswordVerifies(t *testing.T) {
	hash, err := hashPassword("hallo")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$"))

	require.NoError(t, verifyPassword(hash, "hallo"))
}

func TestWrongPasswordIsRejected(t *testing.T) {
	hash, err := hashPassword("hallo")
	require.NoError(t, err)

	assert.ErrorIs(t, verifyPassword(hash, "there"), ErrAuthFailed)
}

func TestHashesAreSalted(t *testing.T) {
	first, err := hashPassword("hallo")
	require.NoError(t, err)
	second, err := hashPassword("hallo")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVerifyRejectsForeignHashFormats(t *testing.T) {
	assert.Error(t, verifyPassword("$2b$12$notanargonhash", "x"))
	assert.Error(t, verifyPassword("", "x"))
}

func TestValidateCredentials(t *testing.T) {
	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	id, err := store.CreateUser("Alice", "I like Bob")
	require.NoError(t, err)

	got, err := validateCredentials(store, Credentials{Username: "Alice", Password: "I like Bob"})
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = validateCredentials(store, Credentials{Username: "Alice", Password: "wrong"})
	assert.ErrorIs(t, err, ErrAuthFailed)

	_, err = validateCredentials(store, Credentials{Username: "Mallory", Password: "whatever"})
	assert.ErrorIs(t, err, ErrAuthFailed)
}
