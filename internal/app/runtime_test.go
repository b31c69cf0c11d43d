package app

import (
	"mime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTestMode(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", " t "} {
		assert.True(t, parseTestMode(v), v)
	}
	for _, v := range []string{"", "0", "false", "yes", "on"} {
		assert.False(t, parseTestMode(v), v)
	}
}

func TestServedTypesRegistered(t *testing.T) {
	registerServedTypes()

	for _, tt := range []struct{ ext, prefix string }{
		{".css", "text/css"},
		{".js", "javascript"},
		{".woff2", "woff2"},
		{".webp", "image/webp"},
		{".jpeg", "image/jpeg"},
		{".pdf", "application/pdf"},
		{".zip", "zip"},
	} {
		got := mime.TypeByExtension(tt.ext)
		assert.True(t, strings.Contains(got, tt.prefix), "%s resolved to %q", tt.ext, got)
	}
}
