package controllers

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/quicktoolshq/quicktools/internal/pkg/entitlements"
	"github.com/quicktoolshq/quicktools/internal/pkg/pdftools"
	"github.com/quicktoolshq/quicktools/internal/pkg/upload"
)

// HandlePDFMerge concatenates the uploaded PDFs in order and charges one credit.
func HandlePDFMerge(c *fiber.Ctx) error {
	started := time.Now()
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := entitlements.RequireCredits(user); err != nil {
		return respondError(c, err)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return badRequest(c, "multipart form with PDF files is required")
	}
	files := form.File["files"]
	if len(files) < 2 {
		return badRequest(c, "merging needs at least two PDF files")
	}

	var inputs [][]byte
	var totalIn int64
	var firstName string
	for _, fileHeader := range files {
		if fileHeader.Size > upload.MaxFileSize {
			return badRequest(c, "file exceeds the 25 MB upload limit: "+fileHeader.Filename)
		}
		f, err := fileHeader.Open()
		if err != nil {
			return respondError(c, err)
		}
		data, readErr := io.ReadAll(f)
		f.Close()
		if readErr != nil {
			return respondError(c, readErr)
		}
		if _, err := upload.ValidatePDFBySniff(fileHeader.Filename, head(data)); err != nil {
			return badRequest(c, err.Error())
		}
		if firstName == "" {
			firstName = fileHeader.Filename
		}
		totalIn += fileHeader.Size
		inputs = append(inputs, data)
	}

	out, err := pdftools.Merge(inputs)
	if err != nil {
		return respondError(c, err)
	}

	if err := getLedger().Spend(c.Context(), user.ID); err != nil {
		return respondError(c, err)
	}

	RecordUsage(user.ID, ToolPDFMerge, firstName, "", "pdf", totalIn, int64(len(out)), started)

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="merged.pdf"`)
	return c.Send(out)
}

// HandlePDFSplit extracts page selections into separate PDFs, returned as a
// zip archive. Charges one credit.
func HandlePDFSplit(c *fiber.Ctx) error {
	started := time.Now()
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := entitlements.RequireCredits(user); err != nil {
		return respondError(c, err)
	}

	filename, data, err := readUploadedPDF(c, "file")
	if err != nil {
		return badRequest(c, err.Error())
	}

	pages := strings.TrimSpace(c.FormValue("pages", "all"))
	parts, err := pdftools.Split(data, pages)
	if err != nil {
		return badRequest(c, err.Error())
	}

	zipped, err := zipParts(filename, parts)
	if err != nil {
		return respondError(c, err)
	}

	if err := getLedger().Spend(c.Context(), user.ID); err != nil {
		return respondError(c, err)
	}

	RecordUsage(user.ID, ToolPDFSplit, filename, "", "zip", int64(len(data)), int64(len(zipped)), started)

	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="split.zip"`)
	return c.Send(zipped)
}

// HandlePDFCompress optimizes the PDF structure and charges one credit.
func HandlePDFCompress(c *fiber.Ctx) error {
	started := time.Now()
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := entitlements.RequireCredits(user); err != nil {
		return respondError(c, err)
	}

	filename, data, err := readUploadedPDF(c, "file")
	if err != nil {
		return badRequest(c, err.Error())
	}

	out, err := pdftools.Compress(data)
	if err != nil {
		return respondError(c, err)
	}

	if err := getLedger().Spend(c.Context(), user.ID); err != nil {
		return respondError(c, err)
	}

	RecordUsage(user.ID, ToolPDFCompress, filename, "", "pdf", int64(len(data)), int64(len(out)), started)

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="compressed.pdf"`)
	return c.Send(out)
}

func zipParts(sourceName string, parts [][]byte) ([]byte, error) {
	base := strings.TrimSuffix(sourceName, ".pdf")
	if base == "" {
		base = "split"
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, part := range parts {
		w, err := zw.Create(fmt.Sprintf("%s_part%d.pdf", base, i+1))
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(part); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
