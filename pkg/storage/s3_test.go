package storage

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestLogoExtension(t *testing.T) {
	ext, ok := LogoExtension("IMAGE/PNG")
	assert.True(t, ok)
	assert.Equal(t, ".png", ext)

	_, ok = LogoExtension("application/pdf")
	assert.False(t, ok)
}

func TestLogoKeyIsUniquePerUpload(t *testing.T) {
	userID := uuid.New()
	a := LogoKey(userID, ".png")
	b := LogoKey(userID, ".png")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "sponsors/"+userID.String()+"/"))
	assert.True(t, strings.HasSuffix(a, ".png"))
}

func TestKeyFromURL(t *testing.T) {
	key := "sponsors/abc/logo.png"
	url := publicURL("logos", "us-east-1", key)

	got, ok := keyFromURL("logos", "us-east-1", url)
	assert.True(t, ok)
	assert.Equal(t, key, got)

	_, ok = keyFromURL("logos", "us-east-1", "https://cdn.example.com/sponsors/abc/logo.png")
	assert.False(t, ok)

	_, ok = keyFromURL("logos", "us-east-1", publicURL("logos", "us-east-1", "other/logo.png"))
	assert.False(t, ok)
}
