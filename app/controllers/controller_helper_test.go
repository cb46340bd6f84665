package controllers

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatTimePtr(t *testing.T) {
	assert.Nil(t, formatTimePtr(nil))

	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local)
	formatted := formatTimePtr(&now)
	assert.IsType(t, "", formatted)

	expected := now.UTC().Format(time.RFC3339)
	assert.Equal(t, expected, formatted)
}

func TestHead(t *testing.T) {
	short := []byte("hello")
	assert.Equal(t, short, head(short))

	long := bytes.Repeat([]byte{0xAB}, 1024)
	assert.Len(t, head(long), 512)
	assert.Equal(t, long[:512], head(long))
}
