package local

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	hash, err := hashPassword("correct horse", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	ok, err := checkPassword("correct horse", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = checkPassword("wrong horse", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPassword_TooLong(t *testing.T) {
	_, err := hashPassword(strings.Repeat("a", 73), bcrypt.MinCost)
	assert.ErrorIs(t, err, errPasswordTooLong)
}

func TestCheckPassword_MalformedHash(t *testing.T) {
	ok, err := checkPassword("anything", "not-a-bcrypt-hash")
	assert.Error(t, err)
	assert.False(t, ok)
}
