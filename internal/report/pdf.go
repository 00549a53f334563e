package report

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rotisserie/eris"
)

// A4 portrait in points, text laid out from the upper left.
const (
	pdfTop        = 50
	pdfLeft       = 40
	pdfLineHeight = 15
	pdfLinesPage  = 48
	pdfTitleSize  = 16
	pdfBodySize   = 9
)

type pdfFont struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

type pdfText struct {
	Value string    `json:"value"`
	Pos   []float64 `json:"pos"`
	Font  pdfFont   `json:"font"`
}

type pdfContent struct {
	Text []pdfText `json:"text"`
}

type pdfPage struct {
	Content pdfContent `json:"content"`
}

type pdfDoc struct {
	Paper  string             `json:"paper"`
	Origin string             `json:"origin"`
	Pages  map[string]pdfPage `json:"pages"`
}

// WritePDF renders r as a paginated text PDF.
func (r *Report) WritePDF(w io.Writer) error {
	doc, err := json.Marshal(pdfLayout(r.lines()))
	if err != nil {
		return eris.Wrap(err, "report: encode pdf layout")
	}
	if err := api.Create(nil, bytes.NewReader(doc), w, nil); err != nil {
		return eris.Wrap(err, "report: create pdf")
	}
	return nil
}

func pdfLayout(lines []string) pdfDoc {
	doc := pdfDoc{Paper: "A4P", Origin: "UpperLeft", Pages: map[string]pdfPage{}}

	page := 0
	for i := 0; i < len(lines) || i == 0; i += pdfLinesPage {
		page++
		end := min(i+pdfLinesPage, len(lines))

		var texts []pdfText
		for j, line := range lines[i:end] {
			line = pdfSafe(line)
			if strings.TrimSpace(line) == "" {
				continue
			}
			size := pdfBodySize
			if i == 0 && j == 0 {
				size = pdfTitleSize
			}
			texts = append(texts, pdfText{
				Value: line,
				Pos:   []float64{pdfLeft, float64(pdfTop + j*pdfLineHeight)},
				Font:  pdfFont{Name: "Courier", Size: size},
			})
		}
		doc.Pages[strconv.Itoa(page)] = pdfPage{Content: pdfContent{Text: texts}}
	}
	return doc
}

// pdfSafe replaces characters the standard Type 1 fonts cannot show.
func pdfSafe(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return '?'
		}
		return r
	}, s)
}
