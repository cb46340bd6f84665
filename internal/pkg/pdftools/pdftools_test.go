package pdftools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePageSpecAll(t *testing.T) {
	got, err := ParsePageSpec("all", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, got)

	got, err = ParsePageSpec("", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, got)
}

func TestParsePageSpecRangesAndSingles(t *testing.T) {
	got, err := ParsePageSpec("1-3,5,7-9", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"1-3", "5", "7-9"}, got)
}

func TestParsePageSpecErrors(t *testing.T) {
	tests := []struct {
		name  string
		pages string
		total int
	}{
		{name: "out of range", pages: "5", total: 3},
		{name: "zero page", pages: "0", total: 3},
		{name: "inverted range", pages: "3-1", total: 3},
		{name: "garbage", pages: "abc", total: 3},
		{name: "empty selection", pages: ",,,", total: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePageSpec(tt.pages, tt.total)
			assert.Error(t, err)
		})
	}
}

func TestOperationsRejectEmptyInput(t *testing.T) {
	_, err := Merge(nil)
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = Merge([][]byte{{}})
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = Split(nil, "all")
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = Compress(nil)
	assert.ErrorIs(t, err, ErrNoInput)
}
