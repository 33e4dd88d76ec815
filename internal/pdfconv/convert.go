// Package pdfconv converts rendered certificate markup into a PDF document.
package pdfconv

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kylejryan/course-certificate-generator/internal/storage"

	"github.com/go-pdf/fpdf"
	"golang.org/x/net/html"
)

// ErrConvert marks markup parsing or PDF writing failures.
var ErrConvert = errors.New("convert certificate")

// Converter turns rendered markup into another document format.
type Converter interface {
	Convert(markup []byte) ([]byte, error)
	ContentType() string
	Extension() string
}

const defaultAccent = "#4A90E2"

// sections are the certificate elements placed on the page, keyed by CSS class.
var sections = []string{
	"organization",
	"title",
	"subtitle",
	"this-certifies",
	"recipient-name",
	"achievement-text",
	"course-title",
	"tier-badge",
	"completion-date",
	"signature-title",
	"certificate-number",
	"copyright",
}

// Document is the certificate content recovered from markup.
type Document struct {
	Title    string
	Accent   string
	Sections map[string]string
}

// Parse extracts the certificate sections and accent colour from markup.
func Parse(markup []byte) (Document, error) {
	root, err := html.Parse(bytes.NewReader(markup))
	if err != nil {
		return Document{}, fmt.Errorf("%w: parse markup: %w", ErrConvert, err)
	}
	doc := Document{Accent: defaultAccent, Sections: map[string]string{}}
	wanted := make(map[string]bool, len(sections))
	for _, s := range sections {
		wanted[s] = true
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "title":
				doc.Title = textOf(n)
			case n.Data == "meta" && attr(n, "name") == "theme-color":
				if c := attr(n, "content"); isHexColor(c) {
					doc.Accent = c
				}
			default:
				for _, class := range strings.Fields(attr(n, "class")) {
					if wanted[class] {
						if _, seen := doc.Sections[class]; !seen {
							doc.Sections[class] = textOf(n)
						}
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	// An empty name is laid out blank; only a template without the element is broken.
	if _, ok := doc.Sections["recipient-name"]; !ok {
		return Document{}, fmt.Errorf("%w: markup has no recipient-name section", ErrConvert)
	}
	return doc, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textOf returns the whitespace-collapsed text content of n.
func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func isHexColor(s string) bool {
	_, _, _, ok := hexRGB(s)
	return ok
}

func hexRGB(s string) (r, g, b int, ok bool) {
	if len(s) != 7 || s[0] != '#' {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff), true
}

// PDF lays certificate markup out on a single Letter landscape page.
type PDF struct {
	Creator string
}

// ContentType implements Converter.
func (PDF) ContentType() string { return storage.ContentTypePDF }

// Extension implements Converter.
func (PDF) Extension() string { return storage.ExtPDF }

// Convert implements Converter.
func (p PDF) Convert(markup []byte) ([]byte, error) {
	doc, err := Parse(markup)
	if err != nil {
		return nil, err
	}
	return p.Write(doc)
}

// Write renders doc as a PDF.
func (p PDF) Write(doc Document) ([]byte, error) {
	const margin = 36.0 // 0.5in
	pdf := fpdf.New("L", "pt", "Letter", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	// Core fonts are cp1252: runes outside it (CJK, Cyrillic) are not representable
	// and come out as substitutes.
	// TODO: embed a UTF-8 TTF via AddUTF8FontFromBytes once a licensed font ships with the templates.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if doc.Title != "" {
		pdf.SetTitle(doc.Title, true)
	}
	if p.Creator != "" {
		pdf.SetCreator(p.Creator, true)
	}
	pdf.AddPage()

	w, h := pdf.GetPageSize()
	ar, ag, ab, _ := hexRGB(doc.Accent)

	pdf.SetDrawColor(ar, ag, ab)
	pdf.SetLineWidth(3)
	pdf.Rect(margin, margin, w-2*margin, h-2*margin, "D")
	pdf.SetLineWidth(1)
	pdf.Rect(margin+8, margin+8, w-2*margin-16, h-2*margin-16, "D")

	line := func(class, family, style string, size float64, rgb [3]int, gap float64) {
		txt, ok := doc.Sections[class]
		if !ok {
			return
		}
		if txt == "" {
			pdf.Ln(size*1.2 + gap)
			return
		}
		pdf.SetFont(family, style, size)
		pdf.SetTextColor(rgb[0], rgb[1], rgb[2])
		pdf.MultiCell(0, size*1.2, tr(txt), "", "C", false)
		pdf.Ln(gap)
	}
	accent := [3]int{ar, ag, ab}
	dark := [3]int{0x2c, 0x3e, 0x50}
	muted := [3]int{0x7f, 0x8c, 0x8d}
	body := [3]int{0x34, 0x49, 0x5e}

	pdf.SetY(margin + 40)
	line("organization", "Helvetica", "B", 16, accent, 6)
	line("title", "Times", "B", 36, dark, 2)
	line("subtitle", "Times", "I", 14, muted, 18)
	line("this-certifies", "Times", "I", 16, body, 8)
	line("recipient-name", "Times", "B", 40, dark, 8)
	line("achievement-text", "Times", "", 16, body, 4)
	line("course-title", "Times", "B", 26, accent, 10)

	if badge := doc.Sections["tier-badge"]; badge != "" {
		pdf.SetFont("Helvetica", "B", 13)
		label := tr(strings.ToUpper(badge))
		bw := pdf.GetStringWidth(label) + 40
		pdf.SetFillColor(ar, ag, ab)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetX((w - bw) / 2)
		pdf.CellFormat(bw, 26, label, "", 1, "C", true, 0, "")
		pdf.Ln(12)
	}
	line("completion-date", "Times", "I", 15, body, 0)

	footerY := h - margin - 70
	pdf.SetDrawColor(0xbd, 0xc3, 0xc7)
	pdf.Line(margin+40, footerY, margin+220, footerY)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetTextColor(muted[0], muted[1], muted[2])
	pdf.SetXY(margin+40, footerY+6)
	pdf.CellFormat(180, 14, tr(doc.Sections["signature-title"]), "", 0, "L", false, 0, "")

	pdf.SetFont("Courier", "", 10)
	pdf.SetXY(w-margin-300, footerY-8)
	pdf.CellFormat(260, 14, tr(doc.Sections["certificate-number"]), "", 2, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(260, 12, tr(doc.Sections["copyright"]), "", 0, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: write pdf: %w", ErrConvert, err)
	}
	return buf.Bytes(), nil
}
