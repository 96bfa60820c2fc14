package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAllowlisted(t *testing.T) {
	list := "example.com, *.test.org, webmail.*"

	assert.True(t, IsAllowlisted("example.com", list))
	assert.True(t, IsAllowlisted("www.example.com", list))
	assert.True(t, IsAllowlisted("sub.test.org", list))
	assert.True(t, IsAllowlisted("webmail.corp.net", list))

	assert.False(t, IsAllowlisted("other.com", list))
	assert.False(t, IsAllowlisted("example.com", ""))
	assert.False(t, IsAllowlisted("example.com", " , , "))
}

func TestIsAllowlistedOrderIndependent(t *testing.T) {
	a := "example.com, *.test.org, webmail.*"
	b := "webmail.*, example.com, *.test.org"
	for _, h := range []string{"example.com", "sub.test.org", "webmail.x.y", "unrelated.net"} {
		assert.Equal(t, IsAllowlisted(h, a), IsAllowlisted(h, b), "host %s", h)
	}
}

func TestAddAllowlistDomain(t *testing.T) {
	assert.Equal(t, "*.example.com", AddAllowlistDomain("example.com", ""))
	assert.Equal(t, "foo.com, *.example.com", AddAllowlistDomain("example.com", "foo.com"))

	// Idempotent when already present in either form.
	assert.Equal(t, "*.example.com", AddAllowlistDomain("example.com", "*.example.com"))
	assert.Equal(t, "example.com", AddAllowlistDomain("example.com", "example.com"))
	assert.Equal(t, "*.Example.COM", AddAllowlistDomain("example.com", "*.Example.COM"))
}

func TestRemoveAllowlistDomain(t *testing.T) {
	assert.Equal(t, "foo.com", RemoveAllowlistDomain("example.com", "foo.com, *.example.com"))
	assert.Equal(t, "foo.com", RemoveAllowlistDomain("example.com", "example.com, foo.com, *.example.com"))
	assert.Equal(t, "foo.com, bar.org", RemoveAllowlistDomain("missing.net", "foo.com, bar.org"))
}

func TestAddThenRemoveRestoresOriginalSet(t *testing.T) {
	original := "foo.com, *.bar.org"
	added := AddAllowlistDomain("example.com", original)
	restored := RemoveAllowlistDomain("example.com", added)
	assert.Equal(t, original, restored)
}
