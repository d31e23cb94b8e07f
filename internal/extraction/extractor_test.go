package extraction

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF writes a minimal single-font PDF with one text run per page.
func buildPDF(pages ...string) []byte {
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	for i, text := range pages {
		stream := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, obj := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		filename string
		want     Kind
	}{
		{"report.pdf", KindPDF},
		{"REPORT.PDF", KindPDF},
		{"archive.Pdf", KindPDF},
		{"notes.txt", KindText},
		{"pdf", KindText},
		{"notes.pdf.txt", KindText},
		{"", KindText},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.filename))
		})
	}
}

func TestExtract_Text(t *testing.T) {
	e := New()
	ctx := context.Background()

	t.Run("plain utf8", func(t *testing.T) {
		got, err := e.Extract(ctx, []byte("hello, wörld"), "a.txt")
		require.NoError(t, err)
		assert.Equal(t, "hello, wörld", got)
	})

	t.Run("invalid bytes are replaced", func(t *testing.T) {
		got, err := e.Extract(ctx, []byte("abc\xffdef"), "a.md")
		require.NoError(t, err)
		assert.Equal(t, "abc�def", got)
	})

	t.Run("utf8 bom is dropped", func(t *testing.T) {
		got, err := e.Extract(ctx, []byte("\xEF\xBB\xBFhello"), "a.txt")
		require.NoError(t, err)
		assert.Equal(t, "hello", got)
	})

	t.Run("utf16 little endian with bom", func(t *testing.T) {
		got, err := e.Extract(ctx, []byte{0xFF, 0xFE, 'h', 0, 'i', 0}, "a.txt")
		require.NoError(t, err)
		assert.Equal(t, "hi", got)
	})

	t.Run("empty", func(t *testing.T) {
		got, err := e.Extract(ctx, nil, "empty.txt")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestExtract_PDF(t *testing.T) {
	e := New()
	data := buildPDF("First page text", "   ", "Second page text")

	got, err := e.Extract(context.Background(), data, "doc.PDF")
	require.NoError(t, err)
	assert.Equal(t, "First page text\n\nSecond page text", got)
}

func TestExtract_PDFWithoutText(t *testing.T) {
	e := New()
	got, err := e.Extract(context.Background(), buildPDF(" "), "blank.pdf")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExtract_MalformedPDF(t *testing.T) {
	e := New()
	tests := map[string][]byte{
		"not a pdf": []byte("plain text pretending to be a pdf"),
		"empty":     {},
		"truncated": buildPDF("content")[:40],
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := e.Extract(context.Background(), data, "bad.pdf")
			assert.ErrorIs(t, err, ErrMalformedPDF)
		})
	}
}

func TestExtract_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Extract(ctx, []byte("text"), "a.txt")
	assert.ErrorIs(t, err, context.Canceled)
}
