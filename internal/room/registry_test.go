package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryAttachDetach(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.IsEmpty())

	r.Attach("s1", "alice")
	r.Attach("s2", "bob")
	assert.Equal(t, 2, r.Len())
	assert.True(t, r.Online("alice"))

	user, ok := r.UserOf("s2")
	assert.True(t, ok)
	assert.Equal(t, "bob", user)

	s, ok := r.Detach("s1")
	assert.True(t, ok)
	assert.Equal(t, Session{ID: "s1", UserID: "alice"}, s)
	assert.False(t, r.Online("alice"))

	_, ok = r.Detach("s1")
	assert.False(t, ok, "double detach must be a no-op")

	r.Detach("s2")
	assert.True(t, r.IsEmpty())
}

func TestRegistryAttachSameIDUpdatesUser(t *testing.T) {
	r := NewRegistry()
	r.Attach("s1", "alice")
	r.Attach("s1", "carol")

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []string{"s1"}, r.IDs())
	assert.Len(t, r.SessionsOf("carol"), 1)
	assert.Empty(t, r.SessionsOf("alice"))
}
