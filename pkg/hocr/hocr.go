// Package hocr renders one column's OCR text blocks to hOCR HTML, for
// operators inspecting a failed or partial extraction.
//
// This is a retyped, much-reduced descendant of the teacher's hOCR
// package: the teacher models the full hOCR hierarchy (document → page →
// area → paragraph → line → word) parsed from and rendered to Document
// AI's own hOCR output. This pipeline never needs to parse hOCR and
// never has line/paragraph grouping — only a flat list of
// ocrengine.TextBlock per column — so the hierarchy collapses to a
// single ocr_page containing one ocrx_word span per block, and parsing
// is dropped entirely.
package hocr

import (
	"fmt"
	"html"
	"strings"
	"text/template"

	"github.com/twoLoop-40/problem-cutter/pkg/ocrengine"
)

const documentTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
<title>{{.Title}}</title>
<meta http-equiv="Content-Type" content="text/html;charset=utf-8" />
<meta name="ocr-system" content="problem-cutter" />
<meta name="ocr-capabilities" content="ocr_page ocrx_word" />
</head>
<body>
<div class="ocr_page" id="page_1" title="bbox 0 0 {{.PageW}} {{.PageH}}">
{{range .Words}}<span class="ocrx_word" id="{{.ID}}" title="bbox {{.X0}} {{.Y0}} {{.X1}} {{.Y1}}; x_wconf {{.Conf}}">{{.Text}}</span>
{{end}}</div>
</body>
</html>
`

var tmpl = template.Must(template.New("hocr").Parse(documentTemplate))

type wordView struct {
	ID   string
	X0   int
	Y0   int
	X1   int
	Y1   int
	Conf int
	Text string
}

type documentView struct {
	Title string
	PageW int
	PageH int
	Words []wordView
}

// RenderColumn renders blocks (one column's OCR output) as a minimal
// hOCR HTML document, with pixel boxes relative to a page of pageW x
// pageH.
func RenderColumn(blocks []ocrengine.TextBlock, pageW, pageH int, title string) (string, error) {
	view := documentView{Title: title, PageW: pageW, PageH: pageH}
	for i, b := range blocks {
		view.Words = append(view.Words, wordView{
			ID:   fmt.Sprintf("word_%d", i+1),
			X0:   b.BBox.X,
			Y0:   b.BBox.Y,
			X1:   b.BBox.X + b.BBox.W,
			Y1:   b.BBox.Y + b.BBox.H,
			Conf: int(b.Confidence * 100),
			Text: html.EscapeString(strings.TrimSpace(b.Text)),
		})
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("hocr: rendering document: %w", err)
	}
	return buf.String(), nil
}
