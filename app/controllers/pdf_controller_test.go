package controllers

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZipParts(t *testing.T) {
	parts := [][]byte{
		[]byte("%PDF-1.7 first"),
		[]byte("%PDF-1.7 second"),
	}

	out, err := zipParts("report.pdf", parts)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)

	assert.Equal(t, "report_part1.pdf", zr.File[0].Name)
	assert.Equal(t, "report_part2.pdf", zr.File[1].Name)

	rc, err := zr.File[1].Open()
	require.NoError(t, err)
	defer rc.Close()

	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, parts[1], content)
}

func TestZipPartsEmptySourceName(t *testing.T) {
	out, err := zipParts(".pdf", [][]byte{[]byte("x")})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "split_part1.pdf", zr.File[0].Name)
}
