package pdftools

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNoInput is returned when an operation receives no PDF bytes.
var ErrNoInput = errors.New("no pdf input provided")

func conf() *model.Configuration {
	c := model.NewDefaultConfiguration()
	c.ValidationMode = model.ValidationRelaxed
	return c
}

// Merge concatenates the given PDFs in order.
func Merge(pdfs [][]byte) ([]byte, error) {
	if len(pdfs) == 0 {
		return nil, ErrNoInput
	}

	readers := make([]io.ReadSeeker, 0, len(pdfs))
	for _, data := range pdfs {
		if len(data) == 0 {
			return nil, ErrNoInput
		}
		readers = append(readers, bytes.NewReader(data))
	}

	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, conf()); err != nil {
		return nil, fmt.Errorf("pdf merge failed: %w", err)
	}
	return out.Bytes(), nil
}

// Split cuts a PDF into the requested page selections. The spec "all" yields
// one PDF per page; otherwise a comma-separated list of pages and ranges
// ("1-3,5,7-9") yields one PDF per selection.
func Split(data []byte, pages string) ([][]byte, error) {
	if len(data) == 0 {
		return nil, ErrNoInput
	}

	rs := bytes.NewReader(data)
	total, err := api.PageCount(rs, conf())
	if err != nil {
		return nil, fmt.Errorf("pdf page count failed: %w", err)
	}

	selections, err := ParsePageSpec(pages, total)
	if err != nil {
		return nil, err
	}

	results := make([][]byte, 0, len(selections))
	for _, sel := range selections {
		if _, err := rs.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		var out bytes.Buffer
		if err := api.Trim(rs, &out, []string{sel}, conf()); err != nil {
			return nil, fmt.Errorf("pdf split failed for pages %s: %w", sel, err)
		}
		results = append(results, out.Bytes())
	}
	return results, nil
}

// Compress rewrites a PDF with pdfcpu's optimizer.
func Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrNoInput
	}

	var out bytes.Buffer
	if err := api.Optimize(bytes.NewReader(data), &out, conf()); err != nil {
		return nil, fmt.Errorf("pdf optimization failed: %w", err)
	}
	return out.Bytes(), nil
}

// ParsePageSpec expands a page specification into pdfcpu page selections,
// validated against the document's page count. 1-based, inclusive ranges.
func ParsePageSpec(pages string, total int) ([]string, error) {
	spec := strings.ToLower(strings.TrimSpace(pages))
	if spec == "" || spec == "all" {
		out := make([]string, 0, total)
		for i := 1; i <= total; i++ {
			out = append(out, strconv.Itoa(i))
		}
		return out, nil
	}

	var out []string
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if start, end, ok := strings.Cut(part, "-"); ok {
			from, err := parsePage(start, total)
			if err != nil {
				return nil, err
			}
			to, err := parsePage(end, total)
			if err != nil {
				return nil, err
			}
			if from > to {
				return nil, fmt.Errorf("invalid page range %q", part)
			}
			out = append(out, fmt.Sprintf("%d-%d", from, to))
			continue
		}

		page, err := parsePage(part, total)
		if err != nil {
			return nil, err
		}
		out = append(out, strconv.Itoa(page))
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("page specification %q selects nothing", pages)
	}
	return out, nil
}

func parsePage(s string, total int) (int, error) {
	page, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid page number %q", s)
	}
	if page < 1 || page > total {
		return 0, fmt.Errorf("page %d out of range 1-%d", page, total)
	}
	return page, nil
}
