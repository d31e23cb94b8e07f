package extraction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrMalformedPDF is returned when a file named as a PDF cannot be parsed.
var ErrMalformedPDF = errors.New("malformed pdf")

// pageSeparator joins the text of consecutive non-empty pages.
const pageSeparator = "\n\n"

// Kind identifies how a file's bytes are interpreted.
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindText Kind = "text"
)

// KindOf classifies a filename. Only the extension is consulted.
func KindOf(filename string) Kind {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return KindPDF
	}
	return KindText
}

// Extractor converts file bytes into plain text. The zero value is ready to use.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract returns the text content of data. The filename selects the
// decoding strategy; see KindOf.
func (e *Extractor) Extract(ctx context.Context, data []byte, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if KindOf(filename) == KindPDF {
		return extractPDF(ctx, data)
	}
	return decodeText(data), nil
}

// decodeText decodes data as UTF-8, honouring a UTF-8 or UTF-16 BOM.
func decodeText(data []byte) string {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		// The replacing decoder only errors on broken transformer chains;
		// fall back to Go's own replacement of invalid sequences.
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(out)
}

func extractPDF(ctx context.Context, data []byte) (text string, err error) {
	// The parser panics on some corrupt inputs.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrMalformedPDF, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPDF, err)
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", ErrMalformedPDF, i, err)
		}
		if content = strings.TrimSpace(content); content != "" {
			pages = append(pages, content)
		}
	}
	return strings.Join(pages, pageSeparator), nil
}
