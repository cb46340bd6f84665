package controllers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeSymbology(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty defaults to code128", input: "", want: "code128"},
		{name: "whitespace only defaults to code128", input: "   ", want: "code128"},
		{name: "uppercase is lowered", input: "EAN13", want: "ean13"},
		{name: "surrounding whitespace is trimmed", input: " code39 ", want: "code39"},
		{name: "path characters are stripped", input: "../etc/passwd", want: "etcpasswd"},
		{name: "quotes are stripped", input: `code"128`, want: "code128"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, sanitizeSymbology(tc.input))
		})
	}
}
