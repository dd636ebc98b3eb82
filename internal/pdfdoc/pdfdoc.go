// Package pdfdoc reads text and embedded images from PDF files using pdfcpu.
// It is the only place in the repository that touches PDF internals; callers
// see plain strings and image byte slices.
package pdfdoc

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/unicode/norm"
)

// Document is an open PDF file. Close must be called exactly once per
// successful Open, including on error paths after Open returned.
type Document struct {
	f   *os.File
	ctx *model.Context
}

// Open reads and validates the PDF at path.
func Open(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	return &Document{f: f, ctx: ctx}, nil
}

// Close releases the underlying file.
func (d *Document) Close() error {
	return d.f.Close()
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return d.ctx.PageCount
}

// PageText returns the text of the zero-based page index. Extraction is
// best-effort: a page whose content stream cannot be read or decoded yields
// an empty string, never an error. Output is NFC-normalized so Hangul
// matches literal patterns regardless of how the producer composed it.
func (d *Document) PageText(index int) string {
	r, err := pdfcpu.ExtractPageContent(d.ctx, index+1)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return norm.NFC.String(decodeContentText(data))
}

// AllText concatenates the text of every page in order with no separator
// inserted between pages. A match in downstream rule evaluation may
// therefore span a page boundary; that is accepted behavior.
func (d *Document) AllText() string {
	var b strings.Builder
	for i := 0; i < d.ctx.PageCount; i++ {
		b.WriteString(d.PageText(i))
	}
	return b.String()
}

// Image is one embedded image extracted from a page.
type Image struct {
	ObjNr    int
	FileType string
	Data     []byte
}

// PageImages returns the embedded images of the zero-based page index in
// ascending object-number order.
func (d *Document) PageImages(index int) ([]Image, error) {
	found, err := pdfcpu.ExtractPageImages(d.ctx, index+1, false)
	if err != nil {
		return nil, fmt.Errorf("extract page images: %w", err)
	}
	objNrs := make([]int, 0, len(found))
	for nr := range found {
		objNrs = append(objNrs, nr)
	}
	sort.Ints(objNrs)

	out := make([]Image, 0, len(objNrs))
	for _, nr := range objNrs {
		img := found[nr]
		data, err := io.ReadAll(img)
		if err != nil {
			return nil, fmt.Errorf("read image object %d: %w", nr, err)
		}
		out = append(out, Image{ObjNr: nr, FileType: img.FileType, Data: data})
	}
	return out, nil
}
