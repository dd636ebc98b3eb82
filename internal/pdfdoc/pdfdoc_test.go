package pdfdoc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}

// writeFixturePDF renders one page per entry in pages, one text line per
// string. Compression is disabled so the content streams stay inspectable.
func writeFixturePDF(t *testing.T, path string, pages [][]string) {
	t.Helper()
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(false)
	pdf.SetFont("Helvetica", "", 12)
	for _, lines := range pages {
		pdf.AddPage()
		for _, line := range lines {
			pdf.CellFormat(0, 6, line, "", 1, "L", false, 0, "")
		}
	}
	if err := pdf.OutputFileAndClose(path); err != nil {
		t.Fatalf("write fixture pdf: %v", err)
	}
}

func TestOpen_PageCountAndText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.pdf")
	writeFixturePDF(t, path, [][]string{
		{"first page line one", "first page line two"},
		{"second page"},
	})

	doc, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer doc.Close()

	if got := doc.PageCount(); got != 2 {
		t.Fatalf("expected 2 pages, got %d", got)
	}
	p0 := doc.PageText(0)
	if !strings.Contains(p0, "first page line one") || !strings.Contains(p0, "first page line two") {
		t.Fatalf("page 0 text missing lines: %q", p0)
	}
	if strings.Contains(p0, "second page") {
		t.Fatalf("page 0 leaked page 1 text: %q", p0)
	}
	if p1 := doc.PageText(1); !strings.Contains(p1, "second page") {
		t.Fatalf("page 1 text missing: %q", p1)
	}
}

func TestAllText_ConcatenatesWithoutSeparator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.pdf")
	writeFixturePDF(t, path, [][]string{
		{"alpha"},
		{"beta"},
	})

	doc, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer doc.Close()

	all := doc.AllText()
	if all != doc.PageText(0)+doc.PageText(1) {
		t.Fatalf("AllText is not the plain concatenation of page texts: %q", all)
	}
	if !strings.Contains(all, "alpha") || !strings.Contains(all, "beta") {
		t.Fatalf("AllText missing page content: %q", all)
	}
}

func TestOpen_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not.pdf")
	writeFile(t, path, "this is not a pdf")
	if _, err := Open(path); err == nil {
		t.Fatal("expected error for non-PDF input")
	}
}

func TestOpen_MissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "absent.pdf")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPageImages_NoneInTextOnlyPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.pdf")
	writeFixturePDF(t, path, [][]string{{"text only"}})

	doc, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer doc.Close()

	imgs, err := doc.PageImages(0)
	if err != nil {
		t.Fatalf("page images: %v", err)
	}
	if len(imgs) != 0 {
		t.Fatalf("expected no images, got %d", len(imgs))
	}
}
