package testutil

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/avoswald/folio/internal/events"
)

// NewTestLogger creates a logger for testing.
func NewTestLogger() *events.Logger {
	var buf bytes.Buffer
	return events.NewTestLogger(events.DebugLevel, "json", &buf)
}

// PDFOptions controls the synthesized test document.
type PDFOptions struct {
	Pages  int
	Width  float64 // points, 0 means US Letter width
	Height float64 // points, 0 means US Letter height
	Rotate int     // applied to every page
	Text   string  // optional text drawn on every page
}

// BuildPDF writes a small but structurally valid PDF. Object offsets
// and the cross-reference table are computed from the actual buffer
// positions, so the output parses with strict readers.
func BuildPDF(opt PDFOptions) []byte {
	pages := opt.Pages
	if pages < 1 {
		pages = 1
	}
	width := opt.Width
	if width <= 0 {
		width = 612
	}
	height := opt.Height
	if height <= 0 {
		height = 792
	}

	// Object layout: 1 catalog, 2 pages node, 3..2+n page dicts,
	// then optionally one shared content stream and one font dict.
	contentObj := 0
	fontObj := 0
	if opt.Text != "" {
		contentObj = 3 + pages
		fontObj = 4 + pages
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")

	offsets := []int{0}
	addObj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets)-1, body)
	}

	addObj("<< /Type /Catalog /Pages 2 0 R >>")

	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", 3+i)
	}
	addObj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 %g %g] >>",
		strings.Join(kids, " "), pages, width, height))

	for i := 0; i < pages; i++ {
		page := "<< /Type /Page /Parent 2 0 R"
		if opt.Rotate != 0 {
			page += fmt.Sprintf(" /Rotate %d", opt.Rotate)
		}
		if contentObj != 0 {
			page += fmt.Sprintf(" /Contents %d 0 R /Resources << /Font << /F1 %d 0 R >> >>",
				contentObj, fontObj)
		}
		page += " >>"
		addObj(page)
	}

	if contentObj != 0 {
		stream := fmt.Sprintf("BT /F1 12 Tf 72 %g Td (%s) Tj ET",
			height-72, escapePDFString(opt.Text))
		addObj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
		addObj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	}

	xrefOff := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets))
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets[1:] {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets), xrefOff)

	return buf.Bytes()
}

// MinimalPDF builds a blank US Letter document with the given number
// of pages.
func MinimalPDF(pages int) []byte {
	return BuildPDF(PDFOptions{Pages: pages})
}

// TextPDF builds a document with a one-line text layer on every page.
func TextPDF(pages int, text string) []byte {
	return BuildPDF(PDFOptions{Pages: pages, Text: text})
}

func escapePDFString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
