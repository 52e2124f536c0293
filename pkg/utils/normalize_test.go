package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanList(t *testing.T) {
	got := CleanList([]string{" C@x.com ", "", "c@X.com", "Jane Doe", "  "})
	assert.Equal(t, []string{"C@x.com", "Jane Doe"}, got)
	assert.Empty(t, CleanList(nil))
}

func TestContainsFold(t *testing.T) {
	list := []string{"c@x.com", "Jane Doe"}
	assert.True(t, ContainsFold(list, "C@X.COM"))
	assert.True(t, ContainsFold(list, " jane doe "))
	assert.False(t, ContainsFold(list, "d@x.com"))
	assert.False(t, ContainsFold(list, ""))
}

func TestRemoveFold(t *testing.T) {
	out, removed := RemoveFold([]string{"a@x.com", "B@x.com"}, "b@X.com")
	assert.True(t, removed)
	assert.Equal(t, []string{"a@x.com"}, out)

	out, removed = RemoveFold(out, "zzz")
	assert.False(t, removed)
	assert.Equal(t, []string{"a@x.com"}, out)
}
