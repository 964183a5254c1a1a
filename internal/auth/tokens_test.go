package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	i := NewIssuer("secret", time.Minute)

	token, err := i.Issue("1234", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.NoError(t, i.Verify(token, "1234", "alice"))
	assert.ErrorIs(t, i.Verify(token, "1234", "bob"), ErrTokenMismatch)
	assert.ErrorIs(t, i.Verify(token, "9999", "alice"), ErrTokenMismatch)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	token, err := NewIssuer("other", time.Minute).Issue("1234", "alice")
	require.NoError(t, err)

	assert.Error(t, NewIssuer("secret", time.Minute).Verify(token, "1234", "alice"))
}

func TestVerifyRejectsExpired(t *testing.T) {
	i := NewIssuer("secret", time.Minute)
	i.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := i.Issue("1234", "alice")
	require.NoError(t, err)

	assert.Error(t, i.Verify(token, "1234", "alice"))
}

func TestVerifyRejectsEmpty(t *testing.T) {
	assert.Error(t, NewIssuer("secret", 0).Verify("", "1234", "alice"))
}
